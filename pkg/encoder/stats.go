package encoder

import "sync/atomic"

// Stats contains encoder runtime statistics.
type Stats struct {
	FramesSubmitted  uint64 // Frames passed to Encode
	FramesDropped    uint64 // Frames dropped before reaching the codec
	FramesEncoded    uint64 // Images delivered to the callback
	KeyFrames        uint64 // Delivered key frames
	KeyFrameRequests uint64 // Sync frames requested from the codec
	ConfigFrames     uint64 // Codec-config outputs seen
	BitrateUpdates   uint64 // Bitrate changes pushed to the codec
	BytesEncoded     uint64 // Bytes delivered, including prepended config
}

type counters struct {
	submitted        atomic.Uint64
	dropped          atomic.Uint64
	encoded          atomic.Uint64
	keyFrames        atomic.Uint64
	keyFrameRequests atomic.Uint64
	configFrames     atomic.Uint64
	bitrateUpdates   atomic.Uint64
	bytes            atomic.Uint64
}

// Stats returns a snapshot of the encoder counters.
func (e *Encoder) Stats() Stats {
	return Stats{
		FramesSubmitted:  e.stats.submitted.Load(),
		FramesDropped:    e.stats.dropped.Load(),
		FramesEncoded:    e.stats.encoded.Load(),
		KeyFrames:        e.stats.keyFrames.Load(),
		KeyFrameRequests: e.stats.keyFrameRequests.Load(),
		ConfigFrames:     e.stats.configFrames.Load(),
		BitrateUpdates:   e.stats.bitrateUpdates.Load(),
		BytesEncoded:     e.stats.bytes.Load(),
	}
}
