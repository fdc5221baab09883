//go:build linux

package mediacodec

import (
	"fmt"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/thesyncim/hwvideo/pkg/codec"
	"github.com/thesyncim/hwvideo/pkg/encoder"
)

// Codec is an AMediaCodec encoder instance.
//
// Input methods are called from the encoding goroutine and output methods
// from the output goroutine; each side owns its out-parameter storage.
// Out-parameters are heap-allocated for purego to work correctly on arm64.
type Codec struct {
	name   string
	handle uintptr
	closed atomic.Bool

	inSize  *uint64
	outSize *uint64
	outInfo *bufferInfo
}

var _ encoder.HardwareCodec = (*Codec)(nil)

// Open creates the codec called name, e.g. "OMX.qcom.video.encoder.avc".
func Open(name string) (*Codec, error) {
	if err := LoadLibrary(); err != nil {
		return nil, err
	}
	handle := mediaCodecCreateByName(name)
	if handle == 0 {
		return nil, fmt.Errorf("%w: %s", ErrCreateFailed, name)
	}
	return newCodec(name, handle), nil
}

// OpenEncoder creates the platform's preferred encoder for t.
func OpenEncoder(t codec.Type) (*Codec, error) {
	if err := LoadLibrary(); err != nil {
		return nil, err
	}
	mime := t.MimeType()
	if mime == "" {
		return nil, fmt.Errorf("%w: codec %s", ErrUnsupported, t)
	}
	handle := mediaCodecCreateEncoderByType(mime)
	if handle == 0 {
		return nil, fmt.Errorf("%w: %s", ErrCreateFailed, mime)
	}
	return newCodec(mime, handle), nil
}

func newCodec(name string, handle uintptr) *Codec {
	return &Codec{
		name:    name,
		handle:  handle,
		inSize:  new(uint64),
		outSize: new(uint64),
		outInfo: new(bufferInfo),
	}
}

// Name returns the name the codec was opened with.
func (c *Codec) Name() string { return c.name }

// withFormat builds an AMediaFormat, passes it to fn and deletes it.
func withFormat(set func(format uintptr), fn func(format uintptr) int32) int32 {
	format := mediaFormatNew()
	defer mediaFormatDelete(format)
	set(format)
	return fn(format)
}

func (c *Codec) Configure(f encoder.Format) error {
	if c.closed.Load() {
		return ErrCodecClosed
	}
	status := withFormat(func(format uintptr) {
		mediaFormatSetString(format, keyMime, f.Mime)
		mediaFormatSetInt32(format, keyWidth, int32(f.Width))
		mediaFormatSetInt32(format, keyHeight, int32(f.Height))
		mediaFormatSetInt32(format, keyBitRate, int32(f.BitrateBps))
		mediaFormatSetInt32(format, keyBitrateMode, int32(f.BitrateMode))
		mediaFormatSetInt32(format, keyColorFormat, int32(f.ColorFormat))
		mediaFormatSetInt32(format, keyFrameRate, int32(f.FrameRate))
		mediaFormatSetInt32(format, keyIFrameInterval, int32(f.KeyFrameIntervalSec))
	}, func(format uintptr) int32 {
		return mediaCodecConfigure(c.handle, format, 0, 0, configureFlagEncode)
	})
	return call("configure", status)
}

func (c *Codec) Start() error {
	if c.closed.Load() {
		return ErrCodecClosed
	}
	return call("start", mediaCodecStart(c.handle))
}

func (c *Codec) Stop() error {
	if c.closed.Load() {
		return ErrCodecClosed
	}
	return call("stop", mediaCodecStop(c.handle))
}

// Release deletes the codec. Further calls return ErrCodecClosed.
func (c *Codec) Release() error {
	if !c.closed.CompareAndSwap(false, true) {
		return ErrCodecClosed
	}
	return call("delete", mediaCodecDelete(c.handle))
}

func (c *Codec) DequeueInputBuffer(timeout time.Duration) (int, error) {
	if c.closed.Load() {
		return 0, ErrCodecClosed
	}
	index := mediaCodecDequeueInput(c.handle, timeout.Microseconds())
	switch {
	case index >= 0:
		return int(index), nil
	case index == infoTryAgainLater:
		return encoder.InfoTryAgainLater, nil
	default:
		return 0, call("dequeueInputBuffer", int32(index))
	}
}

func (c *Codec) InputBuffer(index int) ([]byte, error) {
	if c.closed.Load() {
		return nil, ErrCodecClosed
	}
	ptr := mediaCodecGetInputBuffer(c.handle, uint64(index), c.inSize)
	if ptr == 0 {
		return nil, fmt.Errorf("%w: input %d", ErrNoBuffer, index)
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(ptr)), int(*c.inSize)), nil
}

func (c *Codec) QueueInputBuffer(index, offset, size int, presentationUs int64, flags codec.BufferFlags) error {
	if c.closed.Load() {
		return ErrCodecClosed
	}
	status := mediaCodecQueueInput(c.handle, uint64(index), int64(offset), uint64(size), uint64(presentationUs), uint32(flags))
	return call("queueInputBuffer", status)
}

func (c *Codec) DequeueOutputBuffer(timeout time.Duration) (int, encoder.BufferInfo, error) {
	if c.closed.Load() {
		return 0, encoder.BufferInfo{}, ErrCodecClosed
	}
	index := mediaCodecDequeueOutput(c.handle, c.outInfo, timeout.Microseconds())
	switch {
	case index >= 0:
		return int(index), encoder.BufferInfo{
			Offset:         int(c.outInfo.Offset),
			Size:           int(c.outInfo.Size),
			PresentationUs: c.outInfo.PresentationUs,
			Flags:          codec.BufferFlags(c.outInfo.Flags),
		}, nil
	case index == infoTryAgainLater:
		return encoder.InfoTryAgainLater, encoder.BufferInfo{}, nil
	case index == infoOutputFormatChanged:
		return encoder.InfoOutputFormatChanged, encoder.BufferInfo{}, nil
	case index == infoOutputBuffersChanged:
		return encoder.InfoOutputBuffersChanged, encoder.BufferInfo{}, nil
	default:
		return 0, encoder.BufferInfo{}, call("dequeueOutputBuffer", int32(index))
	}
}

func (c *Codec) OutputBuffer(index int) ([]byte, error) {
	if c.closed.Load() {
		return nil, ErrCodecClosed
	}
	ptr := mediaCodecGetOutputBuffer(c.handle, uint64(index), c.outSize)
	if ptr == 0 {
		return nil, fmt.Errorf("%w: output %d", ErrNoBuffer, index)
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(ptr)), int(*c.outSize)), nil
}

func (c *Codec) ReleaseOutputBuffer(index int) error {
	if c.closed.Load() {
		return ErrCodecClosed
	}
	return call("releaseOutputBuffer", mediaCodecReleaseOutput(c.handle, uint64(index), false))
}

// SetParameters requires API level 26.
func (c *Codec) SetParameters(p encoder.Parameters) error {
	if c.closed.Load() {
		return ErrCodecClosed
	}
	if mediaCodecSetParameters == nil {
		return fmt.Errorf("AMediaCodec_setParameters: %w", ErrUnsupported)
	}
	status := withFormat(func(format uintptr) {
		if p.VideoBitrateBps > 0 {
			mediaFormatSetInt32(format, keyVideoBitrate, int32(p.VideoBitrateBps))
		}
		if p.RequestSyncFrame {
			mediaFormatSetInt32(format, keyRequestSyncFrame, 0)
		}
	}, func(format uintptr) int32 {
		return mediaCodecSetParameters(c.handle, format)
	})
	return call("setParameters", status)
}
