package yuv

import (
	"bytes"
	"errors"
	"testing"

	"github.com/thesyncim/hwvideo/pkg/codec"
	"github.com/thesyncim/hwvideo/pkg/frame"
)

// newPatternBuffer returns a 4x4 I420 buffer with Y=0..15, U=100.., V=200..
func newPatternBuffer() *frame.I420Buffer {
	b := frame.NewI420Buffer(4, 4)
	for i := range b.Y {
		b.Y[i] = byte(i)
	}
	for i := range b.U {
		b.U[i] = byte(100 + i)
		b.V[i] = byte(200 + i)
	}
	return b
}

func TestSize(t *testing.T) {
	tests := []struct {
		w, h, want int
	}{
		{640, 480, 640 * 480 * 3 / 2},
		{4, 4, 24},
		{3, 3, 9 + 2*4},
	}
	for _, tt := range tests {
		if got := Size(tt.w, tt.h); got != tt.want {
			t.Errorf("Size(%d, %d) = %d, want %d", tt.w, tt.h, got, tt.want)
		}
	}
}

func TestConvertPlanar(t *testing.T) {
	src := newPatternBuffer()
	dst := make([]byte, Size(4, 4))

	n, err := Convert(dst, src, codec.ColorFormatYUV420Planar)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if n != 24 {
		t.Errorf("n = %d, want 24", n)
	}

	want := append(append(append([]byte{}, src.Y...), src.U...), src.V...)
	if !bytes.Equal(dst, want) {
		t.Errorf("dst = %v, want %v", dst, want)
	}
}

func TestConvertSemiPlanar(t *testing.T) {
	formats := []codec.ColorFormat{
		codec.ColorFormatYUV420SemiPlanar,
		codec.ColorFormatQCOMYUV420SemiPlanar,
		codec.ColorFormatQCOMYUV420PackedSemiPlanar32m,
	}

	for _, f := range formats {
		t.Run(f.String(), func(t *testing.T) {
			src := newPatternBuffer()
			dst := make([]byte, Size(4, 4))

			if _, err := Convert(dst, src, f); err != nil {
				t.Fatalf("Convert: %v", err)
			}
			if !bytes.Equal(dst[:16], src.Y) {
				t.Errorf("Y = %v, want %v", dst[:16], src.Y)
			}
			wantUV := []byte{100, 200, 101, 201, 102, 202, 103, 203}
			if !bytes.Equal(dst[16:], wantUV) {
				t.Errorf("UV = %v, want %v", dst[16:], wantUV)
			}
		})
	}
}

func TestConvertHonoursStrides(t *testing.T) {
	// 2x2 picture stored with padded rows.
	y := []byte{1, 2, 0xFF, 3, 4, 0xFF}
	u := []byte{5, 0xFF}
	v := []byte{6, 0xFF}
	src, err := frame.WrapI420Buffer(2, 2, y, 3, u, 2, v, 2, nil)
	if err != nil {
		t.Fatalf("WrapI420Buffer: %v", err)
	}

	dst := make([]byte, Size(2, 2))
	if _, err := Convert(dst, src, codec.ColorFormatYUV420Planar); err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if want := []byte{1, 2, 3, 4, 5, 6}; !bytes.Equal(dst, want) {
		t.Errorf("planar dst = %v, want %v", dst, want)
	}

	if _, err := Convert(dst, src, codec.ColorFormatYUV420SemiPlanar); err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if want := []byte{1, 2, 3, 4, 5, 6}; !bytes.Equal(dst, want) {
		t.Errorf("semi-planar dst = %v, want %v", dst, want)
	}
}

func TestConvertErrors(t *testing.T) {
	src := newPatternBuffer()

	if _, err := Convert(make([]byte, 10), src, codec.ColorFormatYUV420Planar); !errors.Is(err, ErrBufferTooSmall) {
		t.Errorf("short dst err = %v, want ErrBufferTooSmall", err)
	}
	if _, err := Convert(make([]byte, 24), src, codec.ColorFormat(0x15151515)); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("bad format err = %v, want ErrUnsupportedFormat", err)
	}
	if _, err := Convert(make([]byte, 24), nil, codec.ColorFormatYUV420Planar); !errors.Is(err, ErrInvalidSource) {
		t.Errorf("nil src err = %v, want ErrInvalidSource", err)
	}

	short := newPatternBuffer()
	short.U = short.U[:1]
	if _, err := Convert(make([]byte, 24), short, codec.ColorFormatYUV420Planar); !errors.Is(err, ErrInvalidSource) {
		t.Errorf("short plane err = %v, want ErrInvalidSource", err)
	}

	narrow := newPatternBuffer()
	narrow.StrideV = 1
	if _, err := Convert(make([]byte, 24), narrow, codec.ColorFormatYUV420SemiPlanar); !errors.Is(err, ErrInvalidSource) {
		t.Errorf("narrow stride err = %v, want ErrInvalidSource", err)
	}
}
