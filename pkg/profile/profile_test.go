package profile

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/thesyncim/hwvideo/pkg/codec"
	"github.com/thesyncim/hwvideo/pkg/rateadjust"
)

func TestDefaultsMatch(t *testing.T) {
	tests := []struct {
		name       string
		sdk        int
		codecName  string
		ct         codec.Type
		adjustment rateadjust.Type
		forced     time.Duration
		wantErr    error
	}{
		{"qcom h264", SDKKitKat, "OMX.qcom.video.encoder.avc", codec.H264, rateadjust.NoAdjustment, 0, nil},
		{"exynos h264", SDKLollipop, "OMX.Exynos.AVC.Encoder", codec.H264, rateadjust.FramerateAdjustment, 0, nil},
		{"exynos h264 too old", SDKKitKat, "OMX.Exynos.AVC.Encoder", codec.H264, 0, 0, ErrNoProfile},
		{"qcom vp8 lollipop", SDKLollipop, "OMX.qcom.video.encoder.vp8", codec.VP8, rateadjust.NoAdjustment, 15 * time.Second, nil},
		{"qcom vp8 marshmallow", SDKMarshmallow, "OMX.qcom.video.encoder.vp8", codec.VP8, rateadjust.NoAdjustment, 20 * time.Second, nil},
		{"qcom vp8 nougat", SDKNougat, "OMX.qcom.video.encoder.vp8", codec.VP8, rateadjust.NoAdjustment, 15 * time.Second, nil},
		{"qcom vp8 kitkat", SDKKitKat, "OMX.qcom.video.encoder.vp8", codec.VP8, rateadjust.NoAdjustment, 0, nil},
		{"exynos vp8", SDKMarshmallow, "OMX.Exynos.VP8.Encoder", codec.VP8, rateadjust.DynamicAdjustment, 0, nil},
		{"intel vp8 off by default", SDKNougat, "OMX.Intel.VideoEncoder.VP8", codec.VP8, 0, 0, ErrNoProfile},
		{"exynos vp9", SDKNougat, "OMX.Exynos.VP9.Encoder", codec.VP9, rateadjust.FramerateAdjustment, 0, nil},
		{"qcom vp9 too old", SDKMarshmallow, "OMX.qcom.video.encoder.vp9", codec.VP9, 0, 0, ErrNoProfile},
		{"software", SDKNougat, "OMX.google.h264.encoder", codec.H264, 0, 0, ErrNoProfile},
		{"unknown codec", SDKNougat, "OMX.qcom.video.encoder.av1", codec.Type(42), 0, 0, ErrUnsupportedCodec},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Defaults(tt.sdk).Match(tt.codecName, tt.ct)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Match() error = %v, want %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if p.Adjustment != tt.adjustment {
				t.Errorf("Adjustment = %v, want %v", p.Adjustment, tt.adjustment)
			}
			if p.ForcedKeyFrameInterval != tt.forced {
				t.Errorf("ForcedKeyFrameInterval = %v, want %v", p.ForcedKeyFrameInterval, tt.forced)
			}
		})
	}
}

func TestBlockedH264Model(t *testing.T) {
	table := Defaults(SDKNougat)
	table.Model = "Nexus 7"

	if _, err := table.Match("OMX.qcom.video.encoder.avc", codec.H264); !errors.Is(err, ErrBlockedModel) {
		t.Errorf("Match(H264) error = %v, want %v", err, ErrBlockedModel)
	}
	if _, err := table.Match("OMX.qcom.video.encoder.vp8", codec.VP8); err != nil {
		t.Errorf("Match(VP8) error = %v, want nil", err)
	}
}

func TestLoad(t *testing.T) {
	const doc = `
sdk_version: 23
model: Pixel
profiles:
  - codec: vp8
    prefix: OMX.Vendor.
    min_sdk: 21
    adjustment: dynamic
    forced_key_frame_interval: 10s
  - codec: video/avc
    prefix: OMX.Vendor.
    adjustment: framerate
`
	table, err := Load(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if table.SDKVersion != 23 || table.Model != "Pixel" {
		t.Errorf("SDKVersion, Model = %d, %q, want 23, Pixel", table.SDKVersion, table.Model)
	}
	if len(table.H264BlockedModels) != len(DefaultH264BlockedModels) {
		t.Errorf("H264BlockedModels = %v, want defaults", table.H264BlockedModels)
	}

	vp8, err := table.Match("OMX.Vendor.vp8", codec.VP8)
	if err != nil {
		t.Fatalf("Match(VP8) error = %v", err)
	}
	if vp8.Adjustment != rateadjust.DynamicAdjustment || vp8.ForcedKeyFrameInterval != 10*time.Second {
		t.Errorf("VP8 profile = %+v", vp8)
	}
	h264, err := table.Match("OMX.Vendor.avc", codec.H264)
	if err != nil {
		t.Fatalf("Match(H264) error = %v", err)
	}
	if h264.Adjustment != rateadjust.FramerateAdjustment {
		t.Errorf("H264 Adjustment = %v, want %v", h264.Adjustment, rateadjust.FramerateAdjustment)
	}
	if _, err := table.Match("OMX.qcom.video.encoder.avc", codec.H264); !errors.Is(err, ErrNoProfile) {
		t.Errorf("Match(qcom) error = %v, want %v", err, ErrNoProfile)
	}
}

func TestLoadDefaultsWhenNoProfiles(t *testing.T) {
	table, err := Load(strings.NewReader("sdk_version: 22\nintel_vp8: true\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	p, err := table.Match("OMX.Intel.VideoEncoder.VP8", codec.VP8)
	if err != nil {
		t.Fatalf("Match(intel) error = %v", err)
	}
	if p.Adjustment != rateadjust.NoAdjustment {
		t.Errorf("Adjustment = %v, want %v", p.Adjustment, rateadjust.NoAdjustment)
	}
	qcom, err := table.Match("OMX.qcom.video.encoder.vp8", codec.VP8)
	if err != nil {
		t.Fatalf("Match(qcom) error = %v", err)
	}
	if qcom.ForcedKeyFrameInterval != 15*time.Second {
		t.Errorf("ForcedKeyFrameInterval = %v, want 15s", qcom.ForcedKeyFrameInterval)
	}
}

func TestLoadEmpty(t *testing.T) {
	table, err := Load(strings.NewReader(""))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if table.SDKVersion != DefaultSDKVersion || len(table.Profiles) != len(DefaultProfiles(DefaultSDKVersion, false)) {
		t.Errorf("Load(\"\") = %+v, want defaults", table)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown adjustment", "profiles:\n  - codec: vp8\n    prefix: OMX.x.\n    adjustment: magic\n"},
		{"unknown codec", "profiles:\n  - codec: av2\n    prefix: OMX.x.\n"},
		{"empty prefix", "profiles:\n  - codec: vp8\n"},
		{"negative interval", "profiles:\n  - codec: vp8\n    prefix: OMX.x.\n    forced_key_frame_interval: -1s\n"},
		{"bad yaml", "profiles: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(strings.NewReader(tt.doc)); err == nil {
				t.Error("Load() error = nil, want error")
			}
		})
	}
}

func TestProfileOptions(t *testing.T) {
	p := Profile{
		Codec:                  codec.VP8,
		Prefix:                 PrefixQCOM,
		Adjustment:             rateadjust.FramerateAdjustment,
		ForcedKeyFrameInterval: 15 * time.Second,
	}
	opts, err := p.Options("OMX.qcom.video.encoder.vp8", codec.ColorFormatQCOMYUV420SemiPlanar)
	if err != nil {
		t.Fatalf("Options() error = %v", err)
	}
	if opts.Name != "OMX.qcom.video.encoder.vp8" || opts.Codec != codec.VP8 {
		t.Errorf("Name, Codec = %q, %v", opts.Name, opts.Codec)
	}
	if opts.ColorFormat != codec.ColorFormatQCOMYUV420SemiPlanar {
		t.Errorf("ColorFormat = %v", opts.ColorFormat)
	}
	if opts.KeyFrameInterval != 100*time.Second || opts.ForcedKeyFrameInterval != 15*time.Second {
		t.Errorf("KeyFrameInterval, ForcedKeyFrameInterval = %v, %v", opts.KeyFrameInterval, opts.ForcedKeyFrameInterval)
	}

	// The framerate adjuster forces 30 fps on its first update.
	opts.Adjuster.SetRates(300_000, 15)
	if opts.Adjuster.Framerate() != 30 {
		t.Errorf("Adjuster.Framerate() = %d, want 30", opts.Adjuster.Framerate())
	}

	if _, err := (Profile{Adjustment: rateadjust.Type(9)}).Options("x", codec.ColorFormatYUV420Planar); !errors.Is(err, rateadjust.ErrUnknownType) {
		t.Errorf("Options() error = %v, want %v", err, rateadjust.ErrUnknownType)
	}
}

func TestSelectColorFormat(t *testing.T) {
	tests := []struct {
		name       string
		advertised []codec.ColorFormat
		want       codec.ColorFormat
		wantErr    error
	}{
		{"prefers planar", []codec.ColorFormat{codec.ColorFormatYUV420SemiPlanar, codec.ColorFormatYUV420Planar}, codec.ColorFormatYUV420Planar, nil},
		{"qcom only", []codec.ColorFormat{0x7f000789, codec.ColorFormatQCOMYUV420PackedSemiPlanar32m}, codec.ColorFormatQCOMYUV420PackedSemiPlanar32m, nil},
		{"none", []codec.ColorFormat{0x7f000789}, 0, ErrNoColorFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SelectColorFormat(tt.advertised)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("SelectColorFormat() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("SelectColorFormat() = %v, want %v", got, tt.want)
			}
		})
	}
}
