package rateadjust

import "math"

const (
	// Adjustment runs once per window of frame time.
	correctionWindowSec = 3.0

	// The bitrate is never scaled by more than this factor in either direction.
	correctionMaxScale = 4.0

	// Number of exponent steps needed to reach correctionMaxScale.
	correctionSteps = 20
)

// dynamic tracks how far the produced stream deviates from the target and
// moves a geometric correction exponent when the deviation exceeds one
// second's worth of bytes.
type dynamic struct {
	targetBitrateBps int
	fps              int

	// Accumulated bytes above (positive) or below the target.
	deviationBytes float64
	// One second's worth of target bytes.
	deviationThresholdBytes float64
	timeSinceAdjustmentMs   float64
	scaleExp                int
}

func (a *dynamic) SetRates(targetBitrateBps, targetFps int) {
	a.deviationThresholdBytes = float64(targetBitrateBps) / 8
	if a.targetBitrateBps > 0 && targetBitrateBps < a.targetBitrateBps {
		// Rescale the accumulator when its cap shrinks. Increases keep it as is.
		a.deviationBytes = a.deviationBytes * float64(targetBitrateBps) / float64(a.targetBitrateBps)
	}
	a.targetBitrateBps = targetBitrateBps
	a.fps = targetFps
}

func (a *dynamic) ReportEncodedFrame(size int) bool {
	if a.fps <= 0 {
		return false
	}

	expectedBytesPerFrame := float64(a.targetBitrateBps) / (8 * float64(a.fps))
	a.deviationBytes += float64(size) - expectedBytesPerFrame
	a.timeSinceAdjustmentMs += 1000 / float64(a.fps)

	// Bound the history so old data cannot drive more than a few steps per window.
	deviationCap := correctionWindowSec * a.deviationThresholdBytes
	a.deviationBytes = math.Max(-deviationCap, math.Min(a.deviationBytes, deviationCap))

	if a.timeSinceAdjustmentMs <= 1000*correctionWindowSec {
		return false
	}
	a.timeSinceAdjustmentMs = 0

	prev := a.scaleExp
	switch {
	case a.deviationBytes > a.deviationThresholdBytes:
		// Too many bits: lower the scale.
		a.scaleExp -= int(a.deviationBytes/a.deviationThresholdBytes + 0.5)
		a.deviationBytes = a.deviationThresholdBytes
	case a.deviationBytes < -a.deviationThresholdBytes:
		a.scaleExp += int(-a.deviationBytes/a.deviationThresholdBytes + 0.5)
		a.deviationBytes = -a.deviationThresholdBytes
	}
	a.scaleExp = min(max(a.scaleExp, -correctionSteps), correctionSteps)
	return a.scaleExp != prev
}

func (a *dynamic) BitrateBps() int {
	scale := math.Pow(correctionMaxScale, float64(a.scaleExp)/correctionSteps)
	return int(float64(a.targetBitrateBps) * scale)
}

func (a *dynamic) Framerate() int { return a.fps }
