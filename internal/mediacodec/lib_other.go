//go:build !linux

package mediacodec

import "github.com/thesyncim/hwvideo/pkg/codec"

// Codec is unavailable off Android.
type Codec struct{}

// LoadLibrary always fails: libmediandk only exists on Android.
func LoadLibrary() error { return ErrLibraryNotFound }

// IsLoaded returns false.
func IsLoaded() bool { return false }

// Open always fails: libmediandk only exists on Android.
func Open(string) (*Codec, error) { return nil, ErrLibraryNotFound }

// OpenEncoder always fails: libmediandk only exists on Android.
func OpenEncoder(codec.Type) (*Codec, error) { return nil, ErrLibraryNotFound }
