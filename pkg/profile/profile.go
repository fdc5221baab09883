// Package profile maps hardware encoder names to encoder tuning: the rate
// adjustment strategy, forced key-frame interval and minimum platform level
// each vendor implementation needs.
package profile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/kataras/golog"
	"gopkg.in/yaml.v3"

	"github.com/thesyncim/hwvideo/pkg/codec"
	"github.com/thesyncim/hwvideo/pkg/encoder"
	"github.com/thesyncim/hwvideo/pkg/rateadjust"
)

var logger = golog.Child("[hwvideo-profile]")

var (
	ErrNoProfile        = errors.New("no encoder profile matches")
	ErrBlockedModel     = errors.New("device model has a blocked H.264 encoder")
	ErrInvalidProfile   = errors.New("invalid encoder profile")
	ErrNoColorFormat    = errors.New("no supported color format")
	ErrUnsupportedCodec = errors.New("codec not handled by profiles")
)

// Android API levels referenced by the default table.
const (
	SDKKitKat      = 19
	SDKLollipop    = 21
	SDKLollipopMR1 = 22
	SDKMarshmallow = 23
	SDKNougat      = 24

	DefaultSDKVersion = SDKNougat
)

// Vendor codec name prefixes.
const (
	PrefixQCOM   = "OMX.qcom."
	PrefixExynos = "OMX.Exynos."
	PrefixIntel  = "OMX.Intel."
)

// DefaultH264BlockedModels lists devices whose H.264 encoder misses the
// target bitrate too far to be usable.
var DefaultH264BlockedModels = []string{"SAMSUNG-SGH-I337", "Nexus 7", "Nexus 4"}

// Profile describes one vendor encoder implementation.
type Profile struct {
	Codec      codec.Type      `yaml:"codec"`
	Prefix     string          `yaml:"prefix"`
	MinSDK     int             `yaml:"min_sdk"`
	Adjustment rateadjust.Type `yaml:"adjustment"`

	// ForcedKeyFrameInterval makes the encoder request sync frames itself,
	// for codecs whose own key-frame interval is unreliable.
	ForcedKeyFrameInterval time.Duration `yaml:"forced_key_frame_interval"`
}

// Table is the set of profiles for one device.
type Table struct {
	SDKVersion        int       `yaml:"sdk_version"`
	Model             string    `yaml:"model"`
	IntelVP8          bool      `yaml:"intel_vp8"`
	H264BlockedModels []string  `yaml:"h264_blocked_models"`
	Profiles          []Profile `yaml:"profiles"`
}

// qcomVP8KeyFrameInterval is the forced key-frame interval QCOM VP8 encoders
// need on each platform level.
func qcomVP8KeyFrameInterval(sdk int) time.Duration {
	switch {
	case sdk == SDKLollipop || sdk == SDKLollipopMR1:
		return 15 * time.Second
	case sdk == SDKMarshmallow:
		return 20 * time.Second
	case sdk > SDKMarshmallow:
		return 15 * time.Second
	default:
		return 0
	}
}

// DefaultProfiles returns the built-in profiles for a platform level.
// The Intel VP8 encoder is only listed when intelVP8 is set.
func DefaultProfiles(sdk int, intelVP8 bool) []Profile {
	profiles := []Profile{
		{Codec: codec.VP8, Prefix: PrefixQCOM, MinSDK: SDKKitKat, Adjustment: rateadjust.NoAdjustment,
			ForcedKeyFrameInterval: qcomVP8KeyFrameInterval(sdk)},
		{Codec: codec.VP8, Prefix: PrefixExynos, MinSDK: SDKMarshmallow, Adjustment: rateadjust.DynamicAdjustment},
	}
	if intelVP8 {
		profiles = append(profiles,
			Profile{Codec: codec.VP8, Prefix: PrefixIntel, MinSDK: SDKLollipop, Adjustment: rateadjust.NoAdjustment})
	}
	return append(profiles,
		Profile{Codec: codec.VP9, Prefix: PrefixQCOM, MinSDK: SDKNougat, Adjustment: rateadjust.NoAdjustment},
		Profile{Codec: codec.VP9, Prefix: PrefixExynos, MinSDK: SDKNougat, Adjustment: rateadjust.FramerateAdjustment},
		Profile{Codec: codec.H264, Prefix: PrefixQCOM, MinSDK: SDKKitKat, Adjustment: rateadjust.NoAdjustment},
		Profile{Codec: codec.H264, Prefix: PrefixExynos, MinSDK: SDKLollipop, Adjustment: rateadjust.FramerateAdjustment},
	)
}

// Defaults returns the built-in table for a platform level.
func Defaults(sdk int) Table {
	return Table{
		SDKVersion:        sdk,
		H264BlockedModels: slices.Clone(DefaultH264BlockedModels),
		Profiles:          DefaultProfiles(sdk, false),
	}
}

// LoadFromFile loads a table from a YAML file.
func LoadFromFile(path string) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return Table{}, err
	}
	defer f.Close()
	return Load(f)
}

// Load reads a YAML table. Omitted fields keep their defaults; when no
// profiles are listed the built-in ones for the table's platform level are used.
func Load(r io.Reader) (Table, error) {
	t := Table{
		SDKVersion:        DefaultSDKVersion,
		H264BlockedModels: slices.Clone(DefaultH264BlockedModels),
	}
	if err := yaml.NewDecoder(r).Decode(&t); err != nil && !errors.Is(err, io.EOF) {
		return Table{}, fmt.Errorf("decode profiles: %w", err)
	}
	if len(t.Profiles) == 0 {
		t.Profiles = DefaultProfiles(t.SDKVersion, t.IntelVP8)
	}
	for i, p := range t.Profiles {
		if err := p.validate(); err != nil {
			return Table{}, fmt.Errorf("profile %d: %w", i, err)
		}
	}
	return t, nil
}

func (p Profile) validate() error {
	if p.Prefix == "" {
		return fmt.Errorf("%w: empty prefix", ErrInvalidProfile)
	}
	if !p.Codec.IsSupported() {
		return fmt.Errorf("%w: codec %s", ErrInvalidProfile, p.Codec)
	}
	if p.ForcedKeyFrameInterval < 0 {
		return fmt.Errorf("%w: negative forced key-frame interval", ErrInvalidProfile)
	}
	return nil
}

// Match returns the profile for the hardware codec called name encoding t.
func (t Table) Match(name string, ct codec.Type) (Profile, error) {
	if !ct.IsSupported() {
		return Profile{}, fmt.Errorf("%w: %s", ErrUnsupportedCodec, ct)
	}
	if ct == codec.H264 && slices.Contains(t.H264BlockedModels, t.Model) {
		logger.Warnf("model %s has a blocked H.264 encoder", t.Model)
		return Profile{}, fmt.Errorf("%w: %s", ErrBlockedModel, t.Model)
	}
	for _, p := range t.Profiles {
		if p.Codec != ct || !strings.HasPrefix(name, p.Prefix) {
			continue
		}
		if t.SDKVersion >= p.MinSDK {
			return p, nil
		}
		logger.Warnf("codec %s is disabled due to SDK version %d", name, t.SDKVersion)
	}
	return Profile{}, fmt.Errorf("%w: %s %s", ErrNoProfile, ct, name)
}

// Options builds encoder options for the hardware codec called name.
func (p Profile) Options(name string, colorFormat codec.ColorFormat) (encoder.Options, error) {
	adj, err := rateadjust.New(p.Adjustment)
	if err != nil {
		return encoder.Options{}, err
	}
	opts := encoder.DefaultOptions()
	opts.Name = name
	opts.Codec = p.Codec
	opts.ColorFormat = colorFormat
	opts.KeyFrameInterval = codec.DefaultKeyFrameInterval(p.Codec)
	opts.ForcedKeyFrameInterval = p.ForcedKeyFrameInterval
	opts.Adjuster = adj
	return opts, nil
}

// SelectColorFormat picks the first format, in order of preference, that the
// hardware codec advertises.
func SelectColorFormat(advertised []codec.ColorFormat) (codec.ColorFormat, error) {
	for _, f := range codec.SupportedColorFormats {
		if slices.Contains(advertised, f) {
			return f, nil
		}
	}
	return 0, ErrNoColorFormat
}
