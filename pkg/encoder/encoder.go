// Package encoder drives asynchronous hardware video encoders.
//
// Frames are submitted from the caller's goroutine and encoded images are
// delivered from a dedicated output goroutine. Metadata the codec cannot
// carry is joined back to each output in submission order.
package encoder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/kataras/golog"
	pkgerrors "github.com/pkg/errors"

	"github.com/thesyncim/hwvideo/pkg/codec"
	"github.com/thesyncim/hwvideo/pkg/frame"
	"github.com/thesyncim/hwvideo/pkg/rateadjust"
	"github.com/thesyncim/hwvideo/pkg/yuv"
)

// Common errors
var (
	ErrUninitialized          = errors.New("encoder not initialized")
	ErrAlreadyInitialized     = errors.New("encoder already initialized")
	ErrInvalidFrame           = errors.New("invalid frame")
	ErrInvalidSettings        = errors.New("invalid encoder settings")
	ErrNilCodec               = errors.New("hardware codec is nil")
	ErrUnsupportedCodec       = errors.New("unsupported codec")
	ErrUnsupportedColorFormat = errors.New("unsupported color format")
	ErrReleaseTimeout         = errors.New("media encoder release timeout")
	ErrReleaseFailed          = errors.New("media encoder release failed")
)

const (
	// maxPendingFrames is the number of submitted frames awaiting output
	// above which new frames are dropped.
	maxPendingFrames = 2

	// DefaultReleaseTimeout bounds how long Release waits for the codec to stop.
	DefaultReleaseTimeout = 5 * time.Second
	// DefaultOutputPollTimeout is how long each output dequeue may block.
	DefaultOutputPollTimeout = 10 * time.Millisecond
)

// State is the lifecycle state of an Encoder.
type State int32

const (
	StateUninitialized State = iota // Created, InitEncode not yet called
	StateRunning                    // Accepting frames
	StateReleasing                  // Release in progress or timed out
	StateReleased                   // Codec released, terminal
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateRunning:
		return "running"
	case StateReleasing:
		return "releasing"
	case StateReleased:
		return "released"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Options configures an Encoder.
type Options struct {
	// Name identifies the hardware codec, e.g. "OMX.qcom.video.encoder.avc".
	Name        string
	Codec       codec.Type
	ColorFormat codec.ColorFormat

	// KeyFrameInterval is the codec's periodic key-frame interval.
	// Zero selects codec.DefaultKeyFrameInterval.
	KeyFrameInterval time.Duration

	// ForcedKeyFrameInterval makes the encoder request a sync frame when this
	// much presentation time has passed since the last one. Zero disables it.
	ForcedKeyFrameInterval time.Duration

	// Adjuster shapes the bitrate handed to the codec. Nil means no adjustment.
	Adjuster rateadjust.Adjuster

	Logger *golog.Logger

	ReleaseTimeout    time.Duration
	OutputPollTimeout time.Duration
}

// DefaultOptions returns options for an H.264 encoder with semi-planar input.
func DefaultOptions() Options {
	return Options{
		Codec:             codec.H264,
		ColorFormat:       codec.ColorFormatYUV420SemiPlanar,
		KeyFrameInterval:  codec.DefaultKeyFrameInterval(codec.H264),
		ReleaseTimeout:    DefaultReleaseTimeout,
		OutputPollTimeout: DefaultOutputPollTimeout,
	}
}

// Settings are supplied by the application when the encoder is initialized.
type Settings struct {
	Width           int
	Height          int
	StartBitrateBps int
	MaxFramerate    int
	NumberOfCores   int
}

func (s Settings) validate() error {
	if s.Width <= 0 || s.Height <= 0 {
		return fmt.Errorf("%w: size %dx%d", ErrInvalidSettings, s.Width, s.Height)
	}
	if s.StartBitrateBps <= 0 {
		return fmt.Errorf("%w: start bitrate %d", ErrInvalidSettings, s.StartBitrateBps)
	}
	if s.MaxFramerate <= 0 {
		return fmt.Errorf("%w: max framerate %d", ErrInvalidSettings, s.MaxFramerate)
	}
	return nil
}

// EncodeInfo carries per-frame encode requests.
type EncodeInfo struct {
	// FrameTypes requests frame types per stream. Any Key entry forces a
	// key frame.
	FrameTypes []frame.FrameType
}

func (i EncodeInfo) keyFrameRequested() bool {
	for _, t := range i.FrameTypes {
		if t == frame.FrameTypeKey {
			return true
		}
	}
	return false
}

// CodecSpecificInfo accompanies every delivered image.
type CodecSpecificInfo struct {
	Codec codec.Type
}

// Callback receives encoded images on the output goroutine.
type Callback func(img frame.EncodedImage, info CodecSpecificInfo)

type rateUpdate struct {
	bitrateBps int
	framerate  int
}

// Encoder feeds raw frames to a HardwareCodec and delivers encoded images.
type Encoder struct {
	hw   HardwareCodec
	opts Options
	log  *golog.Logger

	state  atomic.Int32
	initMu sync.Mutex

	// Set by InitEncode, read-only afterwards.
	id       string
	width    int
	height   int
	callback Callback

	// Encoding goroutine.
	encodeMu       sync.Mutex
	lastKeyFrameMs int64

	// Output goroutine after InitEncode.
	adjuster        rateadjust.Adjuster
	adjustedBitrate int
	configData      []byte

	pending pendingQueue
	rates   chan rateUpdate
	ratesMu sync.Mutex

	cancel      context.CancelFunc
	done        chan struct{}
	shutdownErr error

	stats counters
}

// New creates an encoder around hw. The codec is configured by InitEncode.
func New(hw HardwareCodec, opts Options) (*Encoder, error) {
	if hw == nil {
		return nil, ErrNilCodec
	}
	if !opts.Codec.IsSupported() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCodec, opts.Codec)
	}
	if !opts.ColorFormat.Supported() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedColorFormat, opts.ColorFormat)
	}
	if opts.KeyFrameInterval <= 0 {
		opts.KeyFrameInterval = codec.DefaultKeyFrameInterval(opts.Codec)
	}
	if opts.ReleaseTimeout <= 0 {
		opts.ReleaseTimeout = DefaultReleaseTimeout
	}
	if opts.OutputPollTimeout <= 0 {
		opts.OutputPollTimeout = DefaultOutputPollTimeout
	}
	if opts.Adjuster == nil {
		opts.Adjuster, _ = rateadjust.New(rateadjust.NoAdjustment)
	}
	log := opts.Logger
	if log == nil {
		log = logger
	}

	return &Encoder{
		hw:             hw,
		opts:           opts,
		log:            log,
		adjuster:       opts.Adjuster,
		lastKeyFrameMs: -1,
		rates:          make(chan rateUpdate, 1),
	}, nil
}

// ImplementationName identifies the encoder in stats reports.
func (e *Encoder) ImplementationName() string {
	return "HardwareVideoEncoder: " + e.opts.Name
}

// State returns the current lifecycle state.
func (e *Encoder) State() State {
	return State(e.state.Load())
}

// InitEncode configures and starts the codec and the output goroutine.
func (e *Encoder) InitEncode(s Settings, cb Callback) error {
	if err := s.validate(); err != nil {
		return err
	}
	if cb == nil {
		return fmt.Errorf("%w: nil callback", ErrInvalidSettings)
	}

	e.initMu.Lock()
	defer e.initMu.Unlock()
	if e.State() != StateUninitialized {
		return ErrAlreadyInitialized
	}

	e.id = uuid.NewString()
	e.width, e.height = s.Width, s.Height
	e.callback = cb
	e.lastKeyFrameMs = -1

	e.adjuster.SetRates(s.StartBitrateBps, s.MaxFramerate)
	e.adjustedBitrate = e.adjuster.BitrateBps()

	e.log.Debugf("initEncode %s: %s %dx%d, bitrate %d bps, adjusted %d bps, fps %d",
		e.id, e.opts.Name, s.Width, s.Height, s.StartBitrateBps, e.adjustedBitrate, e.adjuster.Framerate())

	format := Format{
		Mime:                e.opts.Codec.MimeType(),
		Width:               s.Width,
		Height:              s.Height,
		BitrateBps:          e.adjustedBitrate,
		BitrateMode:         codec.BitrateModeConstant,
		ColorFormat:         e.opts.ColorFormat,
		FrameRate:           e.adjuster.Framerate(),
		KeyFrameIntervalSec: int(e.opts.KeyFrameInterval / time.Second),
	}
	if err := e.hw.Configure(format); err != nil {
		e.abortInit()
		return fmt.Errorf("configure %s encoder: %w", e.opts.Codec, err)
	}
	if err := e.hw.Start(); err != nil {
		e.abortInit()
		return fmt.Errorf("start %s encoder: %w", e.opts.Codec, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.done = make(chan struct{})
	e.state.Store(int32(StateRunning))
	go e.runOutput(ctx)
	return nil
}

func (e *Encoder) abortInit() {
	if err := e.hw.Release(); err != nil {
		e.log.Errorf("%s: release after failed init: %v", e.id, err)
	}
	e.state.Store(int32(StateReleased))
}

// Encode submits a frame. It never blocks on the codec: when the codec is
// busy the frame is dropped and nil is returned.
func (e *Encoder) Encode(f *frame.VideoFrame, info EncodeInfo) error {
	if e.State() != StateRunning {
		return ErrUninitialized
	}
	if f == nil || f.Buffer == nil {
		return ErrInvalidFrame
	}
	if f.Width() != e.width || f.Height() != e.height {
		return fmt.Errorf("%w: frame %dx%d, encoder %dx%d",
			ErrInvalidFrame, f.Width(), f.Height(), e.width, e.height)
	}

	e.encodeMu.Lock()
	defer e.encodeMu.Unlock()
	if e.State() != StateRunning {
		return ErrUninitialized
	}
	e.stats.submitted.Add(1)

	// Checked before taking an input slot so a dropped frame never holds one.
	if n := e.pending.len(); n > maxPendingFrames {
		e.drop("too many frames in the encoder: %d", n)
		return nil
	}

	index, err := e.hw.DequeueInputBuffer(0)
	if err != nil {
		e.drop("dequeue input buffer: %v", err)
		return nil
	}
	if index < 0 {
		e.drop("no input buffers available")
		return nil
	}

	ptsUs := f.TimestampNs / 1000
	n, err := e.fillInputBuffer(index, f)
	if err != nil {
		e.returnInputBuffer(index, ptsUs)
		e.drop("fill input buffer %d: %v", index, err)
		return nil
	}

	if info.keyFrameRequested() || e.keyFrameDue(ptsUs) {
		e.requestKeyFrame(ptsUs)
	}

	e.pending.push(pendingFrame{
		timestampMs: f.TimestampNs / int64(time.Millisecond),
		width:       e.width,
		height:      e.height,
		rotation:    f.Rotation,
	})
	if err := e.hw.QueueInputBuffer(index, 0, n, ptsUs, 0); err != nil {
		e.pending.popBack()
		e.drop("queue input buffer %d: %v", index, err)
		return nil
	}
	return nil
}

func (e *Encoder) fillInputBuffer(index int, f *frame.VideoFrame) (int, error) {
	dst, err := e.hw.InputBuffer(index)
	if err != nil {
		return 0, err
	}
	i420, err := f.Buffer.ToI420()
	if err != nil {
		return 0, err
	}
	defer i420.Release()
	return yuv.Convert(dst, i420, e.opts.ColorFormat)
}

// returnInputBuffer hands a dequeued slot back to the codec empty. A slot
// stays owned by the caller until it is queued.
func (e *Encoder) returnInputBuffer(index int, ptsUs int64) {
	if err := e.hw.QueueInputBuffer(index, 0, 0, ptsUs, 0); err != nil {
		e.log.Errorf("%s: return input buffer %d: %v", e.id, index, err)
	}
}

func (e *Encoder) keyFrameDue(ptsUs int64) bool {
	forcedMs := e.opts.ForcedKeyFrameInterval.Milliseconds()
	return forcedMs > 0 && ptsUs > (e.lastKeyFrameMs+forcedMs)*1000
}

// requestKeyFrame asks the codec for a sync frame. The request is advisory;
// the codec emits the key frame shortly after.
func (e *Encoder) requestKeyFrame(ptsUs int64) {
	if err := e.hw.SetParameters(Parameters{RequestSyncFrame: true}); err != nil {
		e.log.Errorf("%s: request key frame: %v", e.id, err)
		return
	}
	e.lastKeyFrameMs = (ptsUs + 500) / 1000
	e.stats.keyFrameRequests.Add(1)
}

func (e *Encoder) drop(format string, args ...any) {
	e.stats.dropped.Add(1)
	e.log.Warnf("%s: dropped frame, "+format, append([]any{e.id}, args...)...)
}

// SetRateAllocation updates the target bitrate and framerate. The update is
// applied by the output goroutine; only the latest pending update is kept.
func (e *Encoder) SetRateAllocation(bitrateBps, framerate int) error {
	if e.State() != StateRunning {
		return ErrUninitialized
	}
	if framerate > codec.MaxFramerate {
		framerate = codec.MaxFramerate
	}

	e.ratesMu.Lock()
	defer e.ratesMu.Unlock()
	select {
	case <-e.rates:
	default:
	}
	e.rates <- rateUpdate{bitrateBps: bitrateBps, framerate: framerate}
	return nil
}

// Release stops the output goroutine, which stops and releases the codec.
// It waits at most Options.ReleaseTimeout.
func (e *Encoder) Release() error {
	if !e.state.CompareAndSwap(int32(StateRunning), int32(StateReleasing)) {
		return nil
	}
	e.log.Debugf("%s: release", e.id)

	// Wait out an Encode call already past its state check.
	e.encodeMu.Lock()
	e.encodeMu.Unlock()
	e.cancel()

	timer := time.NewTimer(e.opts.ReleaseTimeout)
	defer timer.Stop()
	select {
	case <-e.done:
	case <-timer.C:
		e.log.Errorf("%s: %v after %v", e.id, ErrReleaseTimeout, e.opts.ReleaseTimeout)
		return ErrReleaseTimeout
	}

	e.state.Store(int32(StateReleased))
	if e.shutdownErr != nil {
		return pkgerrors.WithStack(fmt.Errorf("%w: %w", ErrReleaseFailed, e.shutdownErr))
	}
	e.log.Debugf("%s: release done", e.id)
	return nil
}
