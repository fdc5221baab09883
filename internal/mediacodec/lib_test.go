//go:build linux

package mediacodec

import (
	"errors"
	"testing"
	"unsafe"
)

func TestLoadLibraryMissing(t *testing.T) {
	if IsLoaded() {
		t.Skip("libmediandk already loaded")
	}
	t.Setenv("MEDIANDK_LIB_PATH", "/nonexistent/libmediandk.so")
	if err := LoadLibrary(); err == nil {
		t.Skip("libmediandk available on this host")
	} else if !errors.Is(err, ErrLibraryNotFound) {
		t.Errorf("LoadLibrary() error = %v, want %v", err, ErrLibraryNotFound)
	}
	if IsLoaded() {
		t.Error("IsLoaded() = true after failed load")
	}
	if _, err := Open("OMX.qcom.video.encoder.avc"); !errors.Is(err, ErrLibraryNotFound) {
		t.Errorf("Open() error = %v, want %v", err, ErrLibraryNotFound)
	}
}

func TestLibraryPathsHonorEnv(t *testing.T) {
	t.Setenv("MEDIANDK_LIB_PATH", "/vendor/lib64/libmediandk.so")
	paths := libraryPaths()
	if len(paths) == 0 || paths[0] != "/vendor/lib64/libmediandk.so" {
		t.Errorf("libraryPaths()[0] = %v, want env override first", paths)
	}
	if paths[len(paths)-1] != "/system/lib/libmediandk.so" {
		t.Errorf("libraryPaths() last = %q, want /system/lib/libmediandk.so", paths[len(paths)-1])
	}
}

func TestBufferInfoLayout(t *testing.T) {
	// AMediaCodecBufferInfo: int32 offset, int32 size, int64 pts, uint32 flags.
	var info bufferInfo
	if got := unsafe.Sizeof(info); got != 24 {
		t.Errorf("sizeof(bufferInfo) = %d, want 24", got)
	}
	if got := unsafe.Offsetof(info.PresentationUs); got != 8 {
		t.Errorf("offsetof(PresentationUs) = %d, want 8", got)
	}
	if got := unsafe.Offsetof(info.Flags); got != 16 {
		t.Errorf("offsetof(Flags) = %d, want 16", got)
	}
}
