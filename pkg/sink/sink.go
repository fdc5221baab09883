// Package sink forwards encoded images to pion sample writers such as
// *webrtc.TrackLocalStaticSample.
package sink

import (
	"errors"
	"sync"
	"time"

	"github.com/kataras/golog"
	"github.com/pion/webrtc/v4/pkg/media"

	"github.com/thesyncim/hwvideo/pkg/encoder"
	"github.com/thesyncim/hwvideo/pkg/frame"
)

var logger = golog.Child("[hwvideo-sink]")

// ErrNilWriter is returned by New when no writer is given.
var ErrNilWriter = errors.New("sample writer is nil")

// DefaultFrameDuration is used for the first sample and whenever timestamps
// do not advance.
const DefaultFrameDuration = time.Second / 30

// SampleWriter accepts encoded media samples.
type SampleWriter interface {
	WriteSample(media.Sample) error
}

// Stats counts samples handled by a Sink.
type Stats struct {
	Samples       uint64
	Bytes         uint64
	KeyFrames     uint64
	WaitingDrops  uint64 // delta frames dropped before the first key frame
	WriteFailures uint64
}

// Sink converts encoder callbacks into samples. Delta frames that arrive
// before the first key frame are dropped since they cannot be decoded.
type Sink struct {
	w   SampleWriter
	log *golog.Logger

	mu           sync.Mutex
	lastTsMs     int64
	started      bool
	prevDropped  uint16
	stats        Stats
	lastWriteErr error
}

// New returns a sink writing to w. A nil log uses the package logger.
func New(w SampleWriter, log *golog.Logger) (*Sink, error) {
	if w == nil {
		return nil, ErrNilWriter
	}
	if log == nil {
		log = logger
	}
	return &Sink{w: w, log: log}, nil
}

// OnEncodedImage has the signature of encoder.Callback.
func (s *Sink) OnEncodedImage(img frame.EncodedImage, info encoder.CodecSpecificInfo) {
	if len(img.Buffer) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started && !img.IsKeyFrame() {
		s.stats.WaitingDrops++
		s.prevDropped++
		return
	}

	duration := DefaultFrameDuration
	if s.started {
		if d := time.Duration(img.TimestampMs-s.lastTsMs) * time.Millisecond; d > 0 {
			duration = d
		}
	}
	s.started = true
	s.lastTsMs = img.TimestampMs

	err := s.w.WriteSample(media.Sample{
		Data:               img.Buffer,
		Timestamp:          time.UnixMilli(img.CaptureTimeMs),
		Duration:           duration,
		PrevDroppedPackets: s.prevDropped,
	})
	if err != nil {
		s.stats.WriteFailures++
		s.lastWriteErr = err
		s.log.Warnf("write %s sample (%d bytes): %v", info.Codec, len(img.Buffer), err)
		return
	}
	s.prevDropped = 0
	s.stats.Samples++
	s.stats.Bytes += uint64(len(img.Buffer))
	if img.IsKeyFrame() {
		s.stats.KeyFrames++
	}
}

// Stats returns a snapshot of the sink counters.
func (s *Sink) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Err returns the most recent write error.
func (s *Sink) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastWriteErr
}

var _ encoder.Callback = (*Sink)(nil).OnEncodedImage
