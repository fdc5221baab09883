// Package testutil provides shared test utilities for hwvideo tests.
package testutil

import (
	"testing"
	"time"

	"github.com/thesyncim/hwvideo/pkg/frame"
)

// CreateTestVideoFrame creates an I420 video frame with a gradient pattern.
// The pattern allows checking plane layout after color conversion.
func CreateTestVideoFrame(width, height int, timestampNs int64) *frame.VideoFrame {
	b := frame.NewI420Buffer(width, height)

	for row := 0; row < height; row++ {
		for col := 0; col < width; col++ {
			// Diagonal gradient
			b.Y[row*b.StrideY+col] = byte((col + row) % 256)
		}
	}

	cw, ch := frame.ChromaSize(width, height)
	for row := 0; row < ch; row++ {
		for col := 0; col < cw; col++ {
			b.U[row*b.StrideU+col] = 64
			b.V[row*b.StrideV+col] = 192
		}
	}

	return frame.NewVideoFrame(b, 0, timestampNs)
}

// CreateGrayVideoFrame creates a uniform gray I420 video frame.
func CreateGrayVideoFrame(width, height int, timestampNs int64) *frame.VideoFrame {
	b := frame.NewI420Buffer(width, height)
	for _, plane := range [][]byte{b.Y, b.U, b.V} {
		for i := range plane {
			plane[i] = 128
		}
	}
	return frame.NewVideoFrame(b, 0, timestampNs)
}

// Eventually polls cond every millisecond until it returns true or timeout
// elapses, failing the test on timeout.
func Eventually(tb testing.TB, timeout time.Duration, cond func() bool, msg string) {
	tb.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			tb.Fatalf("timed out after %v: %s", timeout, msg)
		}
		time.Sleep(time.Millisecond)
	}
}
