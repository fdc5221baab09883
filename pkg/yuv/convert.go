// Package yuv converts planar I420 pictures into the input layouts hardware
// encoders accept.
package yuv

import (
	"errors"
	"fmt"

	"github.com/thesyncim/hwvideo/pkg/codec"
	"github.com/thesyncim/hwvideo/pkg/frame"
)

var (
	ErrUnsupportedFormat = errors.New("yuv: unsupported color format")
	ErrBufferTooSmall    = errors.New("yuv: destination buffer too small")
	ErrInvalidSource     = errors.New("yuv: invalid source buffer")
)

// Size returns the number of bytes a tightly packed 4:2:0 picture occupies.
func Size(width, height int) int {
	cw, ch := frame.ChromaSize(width, height)
	return width*height + 2*cw*ch
}

// Convert writes src into dst in the layout required by format and returns
// the number of bytes written. Planar formats get Y, U and V one after the
// other; semi-planar formats get Y followed by U/V interleaved starting with U.
func Convert(dst []byte, src *frame.I420Buffer, format codec.ColorFormat) (int, error) {
	if !format.Supported() {
		return 0, fmt.Errorf("%w: %v", ErrUnsupportedFormat, format)
	}
	if src == nil {
		return 0, ErrInvalidSource
	}
	if err := src.Validate(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidSource, err)
	}

	w, h := src.Width(), src.Height()
	cw, ch := frame.ChromaSize(w, h)
	n := Size(w, h)
	if len(dst) < n {
		return 0, fmt.Errorf("%w: have %d, need %d", ErrBufferTooSmall, len(dst), n)
	}

	copyPlane(dst[:w*h], w, src.Y, src.StrideY, w, h)
	chroma := dst[w*h : n]

	if format.SemiPlanar() {
		interleavePlanes(chroma, src.U, src.StrideU, src.V, src.StrideV, cw, ch)
	} else {
		copyPlane(chroma[:cw*ch], cw, src.U, src.StrideU, cw, ch)
		copyPlane(chroma[cw*ch:], cw, src.V, src.StrideV, cw, ch)
	}
	return n, nil
}

// copyPlane copies a width x height plane row by row.
func copyPlane(dst []byte, dstStride int, src []byte, srcStride, width, height int) {
	if srcStride == width && dstStride == width {
		copy(dst[:width*height], src[:width*height])
		return
	}
	for row := 0; row < height; row++ {
		copy(dst[row*dstStride:row*dstStride+width], src[row*srcStride:row*srcStride+width])
	}
}

// interleavePlanes writes U0 V0 U1 V1 ... for every chroma row.
func interleavePlanes(dst []byte, u []byte, strideU int, v []byte, strideV int, width, height int) {
	for row := 0; row < height; row++ {
		out := dst[row*width*2 : (row+1)*width*2]
		uRow := u[row*strideU : row*strideU+width]
		vRow := v[row*strideV : row*strideV+width]
		for col := 0; col < width; col++ {
			out[2*col] = uRow[col]
			out[2*col+1] = vRow[col]
		}
	}
}
