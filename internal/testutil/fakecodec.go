package testutil

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/thesyncim/hwvideo/pkg/codec"
	"github.com/thesyncim/hwvideo/pkg/encoder"
)

var (
	ErrNotConfigured = errors.New("fake codec: not configured")
	ErrBadIndex      = errors.New("fake codec: bad buffer index")
)

// H264Config is the codec-config payload emitted by a fake H.264 codec:
// an SPS followed by a PPS in Annex-B framing.
var H264Config = []byte{
	0, 0, 0, 1, 0x67, 0x42, 0xc0, 0x1f, 0xda, 0x01, 0x40,
	0, 0, 0, 1, 0x68, 0xce, 0x3c, 0x80,
}

// PayloadTrailer is the number of bytes at the end of every fake output that
// hold the presentation time of the input it was produced from.
const PayloadTrailer = 8

// PresentationUs extracts the presentation time written into a fake output.
func PresentationUs(payload []byte) int64 {
	if len(payload) < PayloadTrailer {
		return -1
	}
	return int64(binary.BigEndian.Uint64(payload[len(payload)-PayloadTrailer:]))
}

// QueuedInput records a buffer submitted to the fake codec.
type QueuedInput struct {
	Size           int
	PresentationUs int64
	Data           []byte
	SyncRequested  bool
}

type inFlight struct {
	slot    int
	ptsUs   int64
	key     bool
	readyAt time.Time
}

// FakeCodec is a scriptable encoder.HardwareCodec. Inputs are turned into
// outputs in submission order once their latency has elapsed.
type FakeCodec struct {
	// InputSlots is the number of input buffers. Defaults to 4.
	InputSlots int
	// OutputSize returns the size of the n-th output (0-based). At least
	// PayloadTrailer+5 bytes are always produced. Defaults to 1000.
	OutputSize func(n int) int
	// Latency returns the processing time of the n-th input.
	Latency func(n int) time.Duration
	// QueueError fails the n-th call (0-based) to QueueInputBuffer.
	QueueError func(n int) error
	// StopBlock makes Stop wait until it is closed.
	StopBlock chan struct{}

	ConfigureErr error
	StartErr     error
	StopErr      error
	ReleaseErr   error

	mu            sync.Mutex
	format        encoder.Format
	codecType     codec.Type
	configured    bool
	started       bool
	stopped       bool
	released      bool
	inputBufs     [][]byte
	free          []int
	inFlight      []inFlight
	outputs       map[int][]byte
	nextOutput    int
	queueCalls    int
	returned      int
	produced      int
	configSent    bool
	syncRequested bool
	lastReadyAt   time.Time
	inputs        []QueuedInput
	params        []encoder.Parameters
}

var _ encoder.HardwareCodec = (*FakeCodec)(nil)

// NewFakeCodec returns a fake codec with default scripting.
func NewFakeCodec() *FakeCodec {
	return &FakeCodec{InputSlots: 4}
}

func (c *FakeCodec) Configure(f encoder.Format) error {
	if c.ConfigureErr != nil {
		return c.ConfigureErr
	}
	t, err := codec.ParseType(f.Mime)
	if err != nil {
		return err
	}
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("fake codec: bad size %dx%d", f.Width, f.Height)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.format = f
	c.codecType = t
	c.configured = true

	slots := c.InputSlots
	if slots <= 0 {
		slots = 4
	}
	c.inputBufs = make([][]byte, slots)
	c.free = c.free[:0]
	for i := range c.inputBufs {
		c.inputBufs[i] = make([]byte, f.Width*f.Height*3/2)
		c.free = append(c.free, i)
	}
	c.outputs = make(map[int][]byte)
	return nil
}

func (c *FakeCodec) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.configured {
		return ErrNotConfigured
	}
	if c.StartErr != nil {
		return c.StartErr
	}
	c.started = true
	return nil
}

func (c *FakeCodec) Stop() error {
	if c.StopBlock != nil {
		<-c.StopBlock
	}
	c.mu.Lock()
	c.stopped = true
	c.mu.Unlock()
	return c.StopErr
}

func (c *FakeCodec) Release() error {
	c.mu.Lock()
	c.released = true
	c.mu.Unlock()
	return c.ReleaseErr
}

func (c *FakeCodec) DequeueInputBuffer(time.Duration) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return 0, ErrNotConfigured
	}
	if len(c.free) == 0 {
		return encoder.InfoTryAgainLater, nil
	}
	slot := c.free[0]
	c.free = c.free[1:]
	return slot, nil
}

func (c *FakeCodec) InputBuffer(index int) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if index < 0 || index >= len(c.inputBufs) {
		return nil, ErrBadIndex
	}
	return c.inputBufs[index], nil
}

func (c *FakeCodec) QueueInputBuffer(index, offset, size int, presentationUs int64, flags codec.BufferFlags) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.queueCalls
	c.queueCalls++
	if c.QueueError != nil {
		if err := c.QueueError(n); err != nil {
			c.free = append(c.free, index)
			return err
		}
	}
	if index < 0 || index >= len(c.inputBufs) || offset+size > len(c.inputBufs[index]) {
		return ErrBadIndex
	}
	if size == 0 && !flags.Has(codec.FlagEndOfStream) {
		// Empty input: the slot comes straight back without producing output.
		c.free = append(c.free, index)
		c.returned++
		return nil
	}

	var latency time.Duration
	if c.Latency != nil {
		latency = c.Latency(len(c.inputs))
	}
	readyAt := time.Now().Add(latency)
	if readyAt.Before(c.lastReadyAt) {
		readyAt = c.lastReadyAt
	}
	c.lastReadyAt = readyAt

	key := c.syncRequested || len(c.inputs) == 0
	c.inputs = append(c.inputs, QueuedInput{
		Size:           size,
		PresentationUs: presentationUs,
		Data:           append([]byte(nil), c.inputBufs[index][offset:offset+size]...),
		SyncRequested:  c.syncRequested,
	})
	c.syncRequested = false
	c.inFlight = append(c.inFlight, inFlight{slot: index, ptsUs: presentationUs, key: key, readyAt: readyAt})
	return nil
}

func (c *FakeCodec) DequeueOutputBuffer(timeout time.Duration) (int, encoder.BufferInfo, error) {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return 0, encoder.BufferInfo{}, ErrNotConfigured
	}

	if c.codecType == codec.H264 && !c.configSent && len(c.inFlight) > 0 {
		c.configSent = true
		index := c.addOutput(append([]byte(nil), H264Config...))
		c.mu.Unlock()
		return index, encoder.BufferInfo{Size: len(H264Config), Flags: codec.FlagCodecConfig}, nil
	}

	wait := timeout
	if len(c.inFlight) > 0 {
		head := c.inFlight[0]
		if until := time.Until(head.readyAt); until <= 0 {
			c.inFlight = c.inFlight[1:]
			c.free = append(c.free, head.slot)
			payload := c.payload(head)
			index := c.addOutput(payload)
			info := encoder.BufferInfo{Size: len(payload), PresentationUs: head.ptsUs}
			if head.key {
				info.Flags |= codec.FlagKeyFrame
			}
			c.mu.Unlock()
			return index, info, nil
		} else if until < wait {
			wait = until
		}
	}
	c.mu.Unlock()

	time.Sleep(wait)
	return encoder.InfoTryAgainLater, encoder.BufferInfo{}, nil
}

func (c *FakeCodec) addOutput(b []byte) int {
	index := c.nextOutput
	c.nextOutput++
	c.outputs[index] = b
	return index
}

// payload builds an output: an Annex-B NAL header, filler and the
// presentation time trailer.
func (c *FakeCodec) payload(f inFlight) []byte {
	size := 1000
	if c.OutputSize != nil {
		size = c.OutputSize(c.produced)
	}
	c.produced++
	if size < PayloadTrailer+5 {
		size = PayloadTrailer + 5
	}

	b := make([]byte, size)
	b[3] = 1
	b[4] = 0x41 // non-IDR slice
	if f.key {
		b[4] = 0x65 // IDR slice
	}
	for i := 5; i < size-PayloadTrailer; i++ {
		b[i] = 0xAA
	}
	binary.BigEndian.PutUint64(b[size-PayloadTrailer:], uint64(f.ptsUs))
	return b
}

func (c *FakeCodec) OutputBuffer(index int) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.outputs[index]
	if !ok {
		return nil, ErrBadIndex
	}
	return b, nil
}

func (c *FakeCodec) ReleaseOutputBuffer(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.outputs[index]; !ok {
		return ErrBadIndex
	}
	// Scribble so callers holding on to codec memory are caught.
	b := c.outputs[index]
	for i := range b {
		b[i] = 0xFF
	}
	delete(c.outputs, index)
	return nil
}

func (c *FakeCodec) SetParameters(p encoder.Parameters) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.params = append(c.params, p)
	if p.RequestSyncFrame {
		c.syncRequested = true
	}
	return nil
}

// Format returns the format passed to Configure.
func (c *FakeCodec) Format() encoder.Format {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.format
}

// Inputs returns the buffers queued so far.
func (c *FakeCodec) Inputs() []QueuedInput {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]QueuedInput(nil), c.inputs...)
}

// Parameters returns every SetParameters call so far.
func (c *FakeCodec) Parameters() []encoder.Parameters {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]encoder.Parameters(nil), c.params...)
}

// BitrateUpdates returns the bitrates pushed through SetParameters.
func (c *FakeCodec) BitrateUpdates() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []int
	for _, p := range c.params {
		if p.VideoBitrateBps > 0 {
			out = append(out, p.VideoBitrateBps)
		}
	}
	return out
}

// ReturnedInputs returns the number of slots queued back empty.
func (c *FakeCodec) ReturnedInputs() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.returned
}

// FreeInputSlots returns the number of input buffers not held by the
// caller or the codec.
func (c *FakeCodec) FreeInputSlots() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.free)
}

// Stopped reports whether Stop has returned.
func (c *FakeCodec) Stopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

// Released reports whether Release was called.
func (c *FakeCodec) Released() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.released
}
