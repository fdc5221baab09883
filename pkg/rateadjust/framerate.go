package rateadjust

// InitialFramerate is the framerate a framerate-adjusted codec is assumed to
// budget bits for.
const InitialFramerate = 30

// framerate scales the bitrate by InitialFramerate/fps so that codecs which
// budget bits per frame at a fixed framerate hit the target at other rates.
type framerate struct {
	bitrateBps int
	fps        int
}

func (a *framerate) SetRates(targetBitrateBps, targetFps int) {
	switch {
	case a.fps == 0:
		// The codec is always configured with the initial framerate first.
		a.fps = InitialFramerate
	case targetFps > 0:
		a.fps = targetFps
	}
	a.bitrateBps = int(int64(targetBitrateBps) * InitialFramerate / int64(a.fps))
}

func (a *framerate) ReportEncodedFrame(int) bool { return false }
func (a *framerate) BitrateBps() int             { return a.bitrateBps }
func (a *framerate) Framerate() int              { return a.fps }
