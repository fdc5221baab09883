package encoder

import (
	"time"

	"github.com/thesyncim/hwvideo/pkg/codec"
)

// Negative buffer indexes returned by the dequeue calls of a HardwareCodec.
const (
	InfoTryAgainLater        = -1
	InfoOutputFormatChanged  = -2
	InfoOutputBuffersChanged = -3
)

// HardwareCodec is an asynchronous hardware encoder modelled on Android's
// MediaCodec. Input and output buffers are addressed by index; a negative
// index from a dequeue call means no buffer is ready.
//
// Input calls come from the encoding goroutine and output calls from the
// output goroutine, so implementations must allow the two to overlap.
type HardwareCodec interface {
	Configure(f Format) error
	Start() error
	Stop() error
	Release() error

	DequeueInputBuffer(timeout time.Duration) (int, error)
	InputBuffer(index int) ([]byte, error)
	QueueInputBuffer(index, offset, size int, presentationUs int64, flags codec.BufferFlags) error

	DequeueOutputBuffer(timeout time.Duration) (int, BufferInfo, error)
	OutputBuffer(index int) ([]byte, error)
	ReleaseOutputBuffer(index int) error

	// SetParameters changes parameters of a running codec.
	SetParameters(p Parameters) error
}

// Format is the configuration passed to HardwareCodec.Configure.
type Format struct {
	Mime                string
	Width               int
	Height              int
	BitrateBps          int
	BitrateMode         codec.BitrateMode
	ColorFormat         codec.ColorFormat
	FrameRate           int
	KeyFrameIntervalSec int
}

// Parameters are live updates for a running codec. Zero values are not sent.
type Parameters struct {
	VideoBitrateBps int

	// RequestSyncFrame asks for a key frame soon. Codecs treat it as a hint.
	RequestSyncFrame bool
}

// BufferInfo describes a dequeued output buffer.
type BufferInfo struct {
	Offset         int
	Size           int
	PresentationUs int64
	Flags          codec.BufferFlags
}
