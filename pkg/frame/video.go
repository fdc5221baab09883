// Package frame provides the raw video frame types fed into the hardware
// encoder and the encoded image type it produces.
package frame

import (
	"errors"
	"sync"
	"sync/atomic"
)

var (
	// ErrInvalidDimensions is returned when a buffer is created with a
	// non-positive width or height.
	ErrInvalidDimensions = errors.New("invalid frame dimensions")
	// ErrInvalidPlanes is returned when a plane is too short for its stride
	// and the picture size, or a stride is narrower than the plane.
	ErrInvalidPlanes = errors.New("invalid frame planes")
)

// Buffer is a reference-counted picture buffer that can be converted to
// planar YUV. Producers and consumers on different goroutines call Retain
// before handing a buffer over and Release when they are done with it.
type Buffer interface {
	Width() int
	Height() int

	// ToI420 returns a retained I420 view of the buffer. The caller must
	// Release the returned buffer.
	ToI420() (*I420Buffer, error)

	Retain()
	Release()
}

// refCount implements Retain/Release with an optional release hook.
type refCount struct {
	n         atomic.Int32
	onRelease func()
}

func (r *refCount) init(onRelease func()) {
	r.n.Store(1)
	r.onRelease = onRelease
}

func (r *refCount) Retain() {
	r.n.Add(1)
}

func (r *refCount) Release() {
	if r.n.Add(-1) == 0 && r.onRelease != nil {
		r.onRelease()
	}
}

// RefCount returns the current number of references. Intended for tests.
func (r *refCount) RefCount() int {
	return int(r.n.Load())
}

// ChromaSize returns the dimensions of a 4:2:0 chroma plane.
func ChromaSize(width, height int) (int, int) {
	return (width + 1) / 2, (height + 1) / 2
}

// I420Buffer holds a planar YUV 4:2:0 picture.
// Y is full resolution, U and V are subsampled by two in both directions.
type I420Buffer struct {
	width  int
	height int

	Y, U, V                   []byte
	StrideY, StrideU, StrideV int

	refCount
}

// NewI420Buffer allocates a tightly packed I420 buffer with one reference.
func NewI420Buffer(width, height int) *I420Buffer {
	cw, ch := ChromaSize(width, height)
	b := &I420Buffer{
		width:   width,
		height:  height,
		Y:       make([]byte, width*height),
		U:       make([]byte, cw*ch),
		V:       make([]byte, cw*ch),
		StrideY: width,
		StrideU: cw,
		StrideV: cw,
	}
	b.init(nil)
	return b
}

// WrapI420Buffer wraps existing planes. onRelease runs when the last
// reference is released and may be nil.
func WrapI420Buffer(width, height int, y []byte, strideY int, u []byte, strideU int,
	v []byte, strideV int, onRelease func()) (*I420Buffer, error) {
	if width <= 0 || height <= 0 {
		return nil, ErrInvalidDimensions
	}
	b := &I420Buffer{
		width:   width,
		height:  height,
		Y:       y,
		U:       u,
		V:       v,
		StrideY: strideY,
		StrideU: strideU,
		StrideV: strideV,
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	b.init(onRelease)
	return b, nil
}

// Validate checks that every plane holds width x height samples at its stride.
func (b *I420Buffer) Validate() error {
	if b.width <= 0 || b.height <= 0 {
		return ErrInvalidDimensions
	}
	cw, ch := ChromaSize(b.width, b.height)
	if !planeFits(b.Y, b.StrideY, b.width, b.height) ||
		!planeFits(b.U, b.StrideU, cw, ch) ||
		!planeFits(b.V, b.StrideV, cw, ch) {
		return ErrInvalidPlanes
	}
	return nil
}

func planeFits(plane []byte, stride, width, height int) bool {
	return stride >= width && len(plane) >= (height-1)*stride+width
}

func (b *I420Buffer) Width() int  { return b.width }
func (b *I420Buffer) Height() int { return b.height }

// ToI420 returns b itself with an extra reference.
func (b *I420Buffer) ToI420() (*I420Buffer, error) {
	b.Retain()
	return b, nil
}

// NV12Buffer holds a semi-planar YUV 4:2:0 picture: a Y plane followed by
// interleaved U/V samples. Common on camera capture paths.
type NV12Buffer struct {
	width  int
	height int

	Y, UV             []byte
	StrideY, StrideUV int

	refCount
}

// NewNV12Buffer allocates a tightly packed NV12 buffer with one reference.
func NewNV12Buffer(width, height int) *NV12Buffer {
	cw, ch := ChromaSize(width, height)
	b := &NV12Buffer{
		width:    width,
		height:   height,
		Y:        make([]byte, width*height),
		UV:       make([]byte, cw*ch*2),
		StrideY:  width,
		StrideUV: cw * 2,
	}
	b.init(nil)
	return b
}

func (b *NV12Buffer) Width() int  { return b.width }
func (b *NV12Buffer) Height() int { return b.height }

// ToI420 de-interleaves the chroma plane into a newly allocated I420 buffer.
func (b *NV12Buffer) ToI420() (*I420Buffer, error) {
	if b.width <= 0 || b.height <= 0 {
		return nil, ErrInvalidDimensions
	}
	out := NewI420Buffer(b.width, b.height)
	for row := 0; row < b.height; row++ {
		copy(out.Y[row*out.StrideY:row*out.StrideY+b.width], b.Y[row*b.StrideY:])
	}
	cw, ch := ChromaSize(b.width, b.height)
	for row := 0; row < ch; row++ {
		src := b.UV[row*b.StrideUV:]
		u := out.U[row*out.StrideU:]
		v := out.V[row*out.StrideV:]
		for col := 0; col < cw; col++ {
			u[col] = src[2*col]
			v[col] = src[2*col+1]
		}
	}
	return out, nil
}

// VideoFrame is a raw frame submitted to an encoder.
type VideoFrame struct {
	Buffer Buffer

	// Rotation in degrees (0, 90, 180, 270) to apply when rendering.
	Rotation int

	// TimestampNs is the capture timestamp in nanoseconds.
	TimestampNs int64
}

// NewVideoFrame creates a frame that takes over the caller's reference to buf.
func NewVideoFrame(buf Buffer, rotation int, timestampNs int64) *VideoFrame {
	return &VideoFrame{Buffer: buf, Rotation: rotation, TimestampNs: timestampNs}
}

// Width returns the unrotated buffer width.
func (f *VideoFrame) Width() int { return f.Buffer.Width() }

// Height returns the unrotated buffer height.
func (f *VideoFrame) Height() int { return f.Buffer.Height() }

// Retain adds a reference to the underlying buffer.
func (f *VideoFrame) Retain() { f.Buffer.Retain() }

// Release drops a reference to the underlying buffer.
func (f *VideoFrame) Release() { f.Buffer.Release() }

// I420Pool manages reusable I420 buffers to reduce allocations.
// A buffer obtained from Get returns to the pool when its last reference is released.
type I420Pool struct {
	mu      sync.Mutex
	buffers []*I420Buffer
	maxSize int
	width   int
	height  int
}

// NewI420Pool creates a pool of I420 buffers of a fixed size.
func NewI420Pool(width, height, poolSize int) *I420Pool {
	p := &I420Pool{
		maxSize: poolSize,
		width:   width,
		height:  height,
		buffers: make([]*I420Buffer, 0, poolSize),
	}
	for i := 0; i < poolSize; i++ {
		p.buffers = append(p.buffers, p.alloc())
	}
	return p
}

// Get returns a buffer with one reference, allocating if the pool is empty.
func (p *I420Pool) Get() *I420Buffer {
	p.mu.Lock()
	defer p.mu.Unlock()

	var b *I420Buffer
	if n := len(p.buffers); n > 0 {
		b = p.buffers[n-1]
		p.buffers = p.buffers[:n-1]
	} else {
		b = p.alloc()
	}
	b.init(func() { p.put(b) })
	return b
}

// Available returns the number of idle buffers.
func (p *I420Pool) Available() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.buffers)
}

func (p *I420Pool) put(b *I420Buffer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.buffers) < p.maxSize {
		p.buffers = append(p.buffers, b)
	}
	// Otherwise let GC handle it
}

func (p *I420Pool) alloc() *I420Buffer {
	return NewI420Buffer(p.width, p.height)
}
