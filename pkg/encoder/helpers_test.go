package encoder_test

import (
	"sync"
	"testing"
	"time"

	"github.com/kataras/golog"

	"github.com/thesyncim/hwvideo/internal/testutil"
	"github.com/thesyncim/hwvideo/pkg/encoder"
	"github.com/thesyncim/hwvideo/pkg/frame"
)

const (
	testWidth  = 640
	testHeight = 480
	frameGap   = 33 * time.Millisecond
	waitLimit  = 5 * time.Second
)

// collector records every image delivered to an encoder callback.
type collector struct {
	mu     sync.Mutex
	images []frame.EncodedImage
	infos  []encoder.CodecSpecificInfo
}

func (c *collector) callback(img frame.EncodedImage, info encoder.CodecSpecificInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.images = append(c.images, img)
	c.infos = append(c.infos, info)
}

func (c *collector) snapshot() []frame.EncodedImage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]frame.EncodedImage(nil), c.images...)
}

func (c *collector) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.images)
}

func quietLogger() *golog.Logger {
	l := golog.New()
	l.SetLevel("disable")
	return l
}

func newTestEncoder(t *testing.T, hw *testutil.FakeCodec, modify func(*encoder.Options)) *encoder.Encoder {
	t.Helper()
	opts := encoder.DefaultOptions()
	opts.Name = "OMX.fake.video.encoder"
	opts.OutputPollTimeout = time.Millisecond
	opts.Logger = quietLogger()
	if modify != nil {
		modify(&opts)
	}
	enc, err := encoder.New(hw, opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = enc.Release() })
	return enc
}

func defaultSettings() encoder.Settings {
	return encoder.Settings{
		Width:           testWidth,
		Height:          testHeight,
		StartBitrateBps: 300_000,
		MaxFramerate:    30,
		NumberOfCores:   1,
	}
}

func startEncoder(t *testing.T, enc *encoder.Encoder, s encoder.Settings) *collector {
	t.Helper()
	c := &collector{}
	if err := enc.InitEncode(s, c.callback); err != nil {
		t.Fatalf("InitEncode() error = %v", err)
	}
	return c
}

func frameAt(i int) *frame.VideoFrame {
	return testutil.CreateTestVideoFrame(testWidth, testHeight, int64(i)*int64(frameGap))
}

// encodeAndWait submits f and waits until the encoder has either delivered
// or dropped it.
func encodeAndWait(t *testing.T, enc *encoder.Encoder, f *frame.VideoFrame, info encoder.EncodeInfo) {
	t.Helper()
	if err := enc.Encode(f, info); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	testutil.Eventually(t, waitLimit, func() bool {
		s := enc.Stats()
		return s.FramesEncoded+s.FramesDropped >= s.FramesSubmitted
	}, "frame not delivered")
}
