//go:build linux

package mediacodec

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/ebitengine/purego"
)

var (
	libHandle uintptr
	libLoaded atomic.Bool
	libMu     sync.Mutex
)

// bufferInfo mirrors AMediaCodecBufferInfo.
type bufferInfo struct {
	Offset         int32
	Size           int32
	PresentationUs int64
	Flags          uint32
	_              uint32
}

// libmediandk function pointers
var (
	mediaCodecCreateByName        func(name string) uintptr
	mediaCodecCreateEncoderByType func(mime string) uintptr
	mediaCodecConfigure           func(codec, format, surface, crypto uintptr, flags uint32) int32
	mediaCodecStart               func(codec uintptr) int32
	mediaCodecStop                func(codec uintptr) int32
	mediaCodecDelete              func(codec uintptr) int32
	mediaCodecDequeueInput        func(codec uintptr, timeoutUs int64) int64
	mediaCodecGetInputBuffer      func(codec uintptr, idx uint64, outSize *uint64) uintptr
	mediaCodecQueueInput          func(codec uintptr, idx uint64, offset int64, size uint64, timeUs uint64, flags uint32) int32
	mediaCodecDequeueOutput       func(codec uintptr, info *bufferInfo, timeoutUs int64) int64
	mediaCodecGetOutputBuffer     func(codec uintptr, idx uint64, outSize *uint64) uintptr
	mediaCodecReleaseOutput       func(codec uintptr, idx uint64, render bool) int32

	// API 26+; zero when the platform lacks it.
	mediaCodecSetParameters func(codec, format uintptr) int32

	mediaFormatNew       func() uintptr
	mediaFormatDelete    func(format uintptr) int32
	mediaFormatSetInt32  func(format uintptr, name string, value int32)
	mediaFormatSetString func(format uintptr, name, value string)
)

// LoadLibrary loads libmediandk.so. It searches in the following locations:
// 1. Path specified by the MEDIANDK_LIB_PATH environment variable
// 2. The dynamic linker search path
// 3. The platform system library directories
func LoadLibrary() error {
	libMu.Lock()
	defer libMu.Unlock()

	if libLoaded.Load() {
		return nil
	}

	var lastErr error
	for _, path := range libraryPaths() {
		handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err != nil {
			lastErr = err
			continue
		}
		if err := registerFunctions(handle); err != nil {
			_ = purego.Dlclose(handle)
			lastErr = err
			continue
		}
		libHandle = handle
		libLoaded.Store(true)
		return nil
	}

	if lastErr != nil {
		return fmt.Errorf("%w: %w", ErrLibraryNotFound, lastErr)
	}
	return ErrLibraryNotFound
}

// IsLoaded returns true if libmediandk is loaded.
func IsLoaded() bool {
	return libLoaded.Load()
}

func libraryPaths() []string {
	var paths []string
	if path := os.Getenv("MEDIANDK_LIB_PATH"); path != "" {
		paths = append(paths, path)
	}
	paths = append(paths, "libmediandk.so")
	if runtime.GOARCH == "arm64" || runtime.GOARCH == "amd64" {
		paths = append(paths, "/system/lib64/libmediandk.so")
	}
	return append(paths, "/system/lib/libmediandk.so")
}

var errMissingSymbol = errors.New("missing symbol")

func registerFunctions(handle uintptr) (err error) {
	// RegisterLibFunc panics on a missing symbol.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errMissingSymbol, r)
		}
	}()

	purego.RegisterLibFunc(&mediaCodecCreateByName, handle, "AMediaCodec_createCodecByName")
	purego.RegisterLibFunc(&mediaCodecCreateEncoderByType, handle, "AMediaCodec_createEncoderByType")
	purego.RegisterLibFunc(&mediaCodecConfigure, handle, "AMediaCodec_configure")
	purego.RegisterLibFunc(&mediaCodecStart, handle, "AMediaCodec_start")
	purego.RegisterLibFunc(&mediaCodecStop, handle, "AMediaCodec_stop")
	purego.RegisterLibFunc(&mediaCodecDelete, handle, "AMediaCodec_delete")
	purego.RegisterLibFunc(&mediaCodecDequeueInput, handle, "AMediaCodec_dequeueInputBuffer")
	purego.RegisterLibFunc(&mediaCodecGetInputBuffer, handle, "AMediaCodec_getInputBuffer")
	purego.RegisterLibFunc(&mediaCodecQueueInput, handle, "AMediaCodec_queueInputBuffer")
	purego.RegisterLibFunc(&mediaCodecDequeueOutput, handle, "AMediaCodec_dequeueOutputBuffer")
	purego.RegisterLibFunc(&mediaCodecGetOutputBuffer, handle, "AMediaCodec_getOutputBuffer")
	purego.RegisterLibFunc(&mediaCodecReleaseOutput, handle, "AMediaCodec_releaseOutputBuffer")

	purego.RegisterLibFunc(&mediaFormatNew, handle, "AMediaFormat_new")
	purego.RegisterLibFunc(&mediaFormatDelete, handle, "AMediaFormat_delete")
	purego.RegisterLibFunc(&mediaFormatSetInt32, handle, "AMediaFormat_setInt32")
	purego.RegisterLibFunc(&mediaFormatSetString, handle, "AMediaFormat_setString")

	if sym, symErr := purego.Dlsym(handle, "AMediaCodec_setParameters"); symErr == nil {
		purego.RegisterFunc(&mediaCodecSetParameters, sym)
	}
	return nil
}
