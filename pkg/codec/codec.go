// Package codec defines codec types, color formats and buffer flags shared by
// the hardware encoder pipeline.
package codec

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownCodec is returned when a codec name cannot be parsed.
var ErrUnknownCodec = errors.New("unknown codec")

// Type represents a video codec type.
type Type int

const (
	H264 Type = iota
	VP8
	VP9
)

// Android MediaCodec MIME types.
const (
	MimeTypeH264 = "video/avc"
	MimeTypeVP8  = "video/x-vnd.on2.vp8"
	MimeTypeVP9  = "video/x-vnd.on2.vp9"
)

// String returns the string representation of the codec type.
func (t Type) String() string {
	switch t {
	case H264:
		return "H264"
	case VP8:
		return "VP8"
	case VP9:
		return "VP9"
	default:
		return "Unknown"
	}
}

// MimeType returns the MIME type a hardware codec is configured with.
func (t Type) MimeType() string {
	switch t {
	case H264:
		return MimeTypeH264
	case VP8:
		return MimeTypeVP8
	case VP9:
		return MimeTypeVP9
	default:
		return ""
	}
}

// IsSupported reports whether the hardware pipeline can drive this codec.
func (t Type) IsSupported() bool {
	switch t {
	case H264, VP8, VP9:
		return true
	default:
		return false
	}
}

// NeedsConfigPrepend reports whether key frames must carry the codec-config
// payload (SPS/PPS) in front of the frame data.
func (t Type) NeedsConfigPrepend() bool {
	return t == H264
}

// ParseType accepts either the short name ("H264", "vp8") or the MIME type.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "h264", "avc", MimeTypeH264:
		return H264, nil
	case "vp8", MimeTypeVP8:
		return VP8, nil
	case "vp9", MimeTypeVP9:
		return VP9, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownCodec, s)
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Type) UnmarshalText(text []byte) error {
	parsed, err := ParseType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ColorFormat is the input color layout a hardware encoder is configured with.
// Values match MediaCodecInfo.CodecCapabilities.
type ColorFormat int32

const (
	ColorFormatYUV420Planar     ColorFormat = 19
	ColorFormatYUV420SemiPlanar ColorFormat = 21

	// Qualcomm NV12 variants, not declared by MediaCodec but reported by QCOM codecs.
	ColorFormatQCOMYUV420SemiPlanar          ColorFormat = 0x7FA30C00
	ColorFormatQCOMYUV420PackedSemiPlanar32m ColorFormat = 0x7FA30C04
)

// SupportedColorFormats lists the accepted formats in order of preference.
var SupportedColorFormats = []ColorFormat{
	ColorFormatYUV420Planar,
	ColorFormatYUV420SemiPlanar,
	ColorFormatQCOMYUV420SemiPlanar,
	ColorFormatQCOMYUV420PackedSemiPlanar32m,
}

// String returns the string representation of the color format.
func (f ColorFormat) String() string {
	switch f {
	case ColorFormatYUV420Planar:
		return "YUV420Planar"
	case ColorFormatYUV420SemiPlanar:
		return "YUV420SemiPlanar"
	case ColorFormatQCOMYUV420SemiPlanar:
		return "QCOMYUV420SemiPlanar"
	case ColorFormatQCOMYUV420PackedSemiPlanar32m:
		return "QCOMYUV420PackedSemiPlanar32m"
	default:
		return fmt.Sprintf("ColorFormat(0x%X)", int32(f))
	}
}

// Supported reports whether the color conversion step can produce this layout.
func (f ColorFormat) Supported() bool {
	for _, s := range SupportedColorFormats {
		if s == f {
			return true
		}
	}
	return false
}

// SemiPlanar reports whether chroma samples are interleaved (NV12-like).
func (f ColorFormat) SemiPlanar() bool {
	switch f {
	case ColorFormatYUV420SemiPlanar, ColorFormatQCOMYUV420SemiPlanar, ColorFormatQCOMYUV420PackedSemiPlanar32m:
		return true
	default:
		return false
	}
}

// BufferFlags are the per-buffer flags exchanged with a hardware codec.
// Values match AMEDIACODEC_BUFFER_FLAG_*.
type BufferFlags uint32

const (
	FlagKeyFrame    BufferFlags = 1
	FlagCodecConfig BufferFlags = 2
	FlagEndOfStream BufferFlags = 4
)

// Has reports whether all bits of flag are set.
func (f BufferFlags) Has(flag BufferFlags) bool {
	return f&flag == flag
}

// BitrateMode values match OMX_VIDEO_CONTROLRATETYPE.
type BitrateMode int32

const (
	BitrateModeVariable BitrateMode = 1
	BitrateModeConstant BitrateMode = 2
)
