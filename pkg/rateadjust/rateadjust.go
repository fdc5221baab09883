// Package rateadjust corrects the bitrate configured on hardware encoders
// whose produced bitrate drifts from the requested target.
//
// An Adjuster is not safe for concurrent use. The encoder pipeline confines
// each Adjuster to its output goroutine once encoding has started.
package rateadjust

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownType is returned for adjustment types outside the fixed set.
var ErrUnknownType = errors.New("rateadjust: unknown adjustment type")

// Adjuster maps a requested bitrate/framerate target plus feedback about
// produced frame sizes to the values actually configured on the codec.
type Adjuster interface {
	// SetRates sets the target bitrate in bits per second and framerate in
	// frames per second.
	SetRates(targetBitrateBps, targetFps int)

	// ReportEncodedFrame reports the size in bytes of an encoded frame.
	// It returns true when the codec bitrate must be updated.
	ReportEncodedFrame(size int) bool

	// BitrateBps returns the adjusted bitrate to configure on the codec.
	BitrateBps() int

	// Framerate returns the adjusted framerate to configure on the codec.
	Framerate() int
}

// Type selects one of the adjustment strategies.
type Type int

const (
	// NoAdjustment is for codecs that track the target bitrate accurately.
	NoAdjustment Type = iota

	// FramerateAdjustment is for codecs that derive the per-frame budget from
	// the initially configured framerate instead of frame timestamps.
	FramerateAdjustment

	// DynamicAdjustment is for codecs that use timestamps but whose output
	// bitrate deviates too much from the target.
	DynamicAdjustment
)

// String returns the string representation of the adjustment type.
func (t Type) String() string {
	switch t {
	case NoAdjustment:
		return "none"
	case FramerateAdjustment:
		return "framerate"
	case DynamicAdjustment:
		return "dynamic"
	default:
		return "unknown"
	}
}

// ParseType parses "none", "framerate" or "dynamic".
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "no_adjustment":
		return NoAdjustment, nil
	case "framerate", "framerate_adjustment":
		return FramerateAdjustment, nil
	case "dynamic", "dynamic_adjustment":
		return DynamicAdjustment, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownType, s)
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

// MarshalText implements encoding.TextMarshaler.
func (t Type) MarshalText() ([]byte, error) {
	if t < NoAdjustment || t > DynamicAdjustment {
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, int(t))
	}
	return []byte(t.String()), nil
}

// New returns a fresh Adjuster of the given type.
func New(t Type) (Adjuster, error) {
	switch t {
	case NoAdjustment:
		return &noOp{}, nil
	case FramerateAdjustment:
		return &framerate{}, nil
	case DynamicAdjustment:
		return &dynamic{}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, int(t))
	}
}

// noOp passes the target through unchanged.
type noOp struct {
	bitrateBps int
	fps        int
}

func (a *noOp) SetRates(targetBitrateBps, targetFps int) {
	a.bitrateBps = targetBitrateBps
	a.fps = targetFps
}

func (a *noOp) ReportEncodedFrame(int) bool { return false }
func (a *noOp) BitrateBps() int             { return a.bitrateBps }
func (a *noOp) Framerate() int              { return a.fps }
