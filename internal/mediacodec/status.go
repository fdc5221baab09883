// Package mediacodec binds the Android NDK AMediaCodec API from
// libmediandk.so using purego, providing an encoder.HardwareCodec.
package mediacodec

import (
	"errors"
	"fmt"
)

var (
	// ErrLibraryNotLoaded is returned when libmediandk hasn't been loaded.
	ErrLibraryNotLoaded = errors.New("libmediandk library not loaded")

	// ErrLibraryNotFound is returned when libmediandk cannot be opened.
	ErrLibraryNotFound = errors.New("libmediandk library not found")

	// ErrCodecClosed is returned after Release.
	ErrCodecClosed = errors.New("media codec is released")

	// ErrCreateFailed is returned when no codec could be created.
	ErrCreateFailed = errors.New("media codec create failed")

	// ErrNoBuffer is returned when a buffer index has no backing memory.
	ErrNoBuffer = errors.New("media codec buffer unavailable")

	// media_status_t sentinels - support errors.Is().
	ErrUnknown          = errors.New("media error unknown")
	ErrMalformed        = errors.New("media error malformed")
	ErrUnsupported      = errors.New("media error unsupported")
	ErrInvalidObject    = errors.New("media error invalid object")
	ErrInvalidParameter = errors.New("media error invalid parameter")
	ErrInvalidOperation = errors.New("media error invalid operation")
	ErrEndOfStream      = errors.New("media error end of stream")
	ErrIO               = errors.New("media error io")
	ErrWouldBlock       = errors.New("media error would block")
)

// media_status_t values from NdkMediaError.h (int32 to match C int)
const (
	statusOK               int32 = 0
	statusUnknown          int32 = -10000
	statusMalformed        int32 = -10001
	statusUnsupported      int32 = -10002
	statusInvalidObject    int32 = -10003
	statusInvalidParameter int32 = -10004
	statusInvalidOperation int32 = -10005
	statusEndOfStream      int32 = -10006
	statusIO               int32 = -10007
	statusWouldBlock       int32 = -10008
)

// AMediaCodec constants from NdkMediaCodec.h.
const (
	configureFlagEncode uint32 = 1

	infoTryAgainLater        = -1
	infoOutputFormatChanged  = -2
	infoOutputBuffersChanged = -3
)

// AMediaFormat keys used by the encoder.
const (
	keyMime             = "mime"
	keyWidth            = "width"
	keyHeight           = "height"
	keyBitRate          = "bitrate"
	keyBitrateMode      = "bitrate-mode"
	keyColorFormat      = "color-format"
	keyFrameRate        = "frame-rate"
	keyIFrameInterval   = "i-frame-interval"
	keyVideoBitrate     = "video-bitrate"
	keyRequestSyncFrame = "request-sync"
)

// StatusError converts a media_status_t to a Go error.
func StatusError(code int32) error {
	switch code {
	case statusOK:
		return nil
	case statusUnknown:
		return ErrUnknown
	case statusMalformed:
		return ErrMalformed
	case statusUnsupported:
		return ErrUnsupported
	case statusInvalidObject:
		return ErrInvalidObject
	case statusInvalidParameter:
		return ErrInvalidParameter
	case statusInvalidOperation:
		return ErrInvalidOperation
	case statusEndOfStream:
		return ErrEndOfStream
	case statusIO:
		return ErrIO
	case statusWouldBlock:
		return ErrWouldBlock
	default:
		return fmt.Errorf("unknown media status: %d", code)
	}
}

// call wraps a failed status with the operation name.
func call(op string, status int32) error {
	if err := StatusError(status); err != nil {
		return fmt.Errorf("AMediaCodec_%s: %w", op, err)
	}
	return nil
}
