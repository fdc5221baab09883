package frame

// FrameType classifies an encoded image.
type FrameType int

const (
	FrameTypeEmpty FrameType = iota
	FrameTypeKey
	FrameTypeDelta
)

// String returns the string representation of the frame type.
func (t FrameType) String() string {
	switch t {
	case FrameTypeEmpty:
		return "empty"
	case FrameTypeKey:
		return "key"
	case FrameTypeDelta:
		return "delta"
	default:
		return "unknown"
	}
}

// EncodedImage is one compressed frame produced by an encoder.
// It is not modified after being handed to a callback.
type EncodedImage struct {
	// Buffer holds the bitstream. For H.264 key frames it starts with the
	// codec-config NAL units.
	Buffer []byte

	EncodedWidth  int
	EncodedHeight int

	// CaptureTimeMs and TimestampMs carry the source frame timestamp.
	CaptureTimeMs int64
	TimestampMs   int64

	FrameType     FrameType
	Rotation      int
	CompleteFrame bool

	// QP is the quantization parameter, nil when the codec does not report it.
	QP *int
}

// IsKeyFrame reports whether the image is a key frame.
func (e *EncodedImage) IsKeyFrame() bool {
	return e.FrameType == FrameTypeKey
}
