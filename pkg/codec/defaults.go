package codec

import "time"

// MaxFramerate is the highest framerate passed on to a hardware encoder.
const MaxFramerate = 30

// DefaultKeyFrameInterval returns the periodic key-frame interval a hardware
// encoder of this type is configured with.
func DefaultKeyFrameInterval(t Type) time.Duration {
	switch t {
	case VP8, VP9:
		return 100 * time.Second
	case H264:
		return 20 * time.Second
	default:
		return 0
	}
}
