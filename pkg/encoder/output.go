package encoder

import (
	"context"

	"github.com/hashicorp/go-multierror"
	pkgerrors "github.com/pkg/errors"

	"github.com/thesyncim/hwvideo/pkg/codec"
	"github.com/thesyncim/hwvideo/pkg/frame"
)

// runOutput polls the codec until ctx is cancelled, then stops and releases
// it. The codec is only torn down here so it is never released while a
// dequeue is in progress.
func (e *Encoder) runOutput(ctx context.Context) {
	defer close(e.done)
	for {
		select {
		case <-ctx.Done():
			e.shutdownErr = e.releaseCodec()
			return
		case r := <-e.rates:
			e.applyRates(r)
		default:
			e.deliverEncodedImage()
		}
	}
}

func (e *Encoder) applyRates(r rateUpdate) {
	e.adjuster.SetRates(r.bitrateBps, r.framerate)
	e.updateBitrate()
}

func (e *Encoder) updateBitrate() {
	e.adjustedBitrate = e.adjuster.BitrateBps()
	if err := e.hw.SetParameters(Parameters{VideoBitrateBps: e.adjustedBitrate}); err != nil {
		e.log.Errorf("%s: update bitrate to %d: %v", e.id, e.adjustedBitrate, err)
		return
	}
	e.stats.bitrateUpdates.Add(1)
}

func (e *Encoder) deliverEncodedImage() {
	index, info, err := e.hw.DequeueOutputBuffer(e.opts.OutputPollTimeout)
	if err != nil {
		e.log.Errorf("%s: dequeue output buffer: %v", e.id, err)
		return
	}
	if index < 0 {
		if index == InfoOutputFormatChanged {
			e.log.Debugf("%s: output format changed", e.id)
		}
		return
	}
	defer func() {
		if err := e.hw.ReleaseOutputBuffer(index); err != nil {
			e.log.Errorf("%s: release output buffer %d: %v", e.id, index, err)
		}
	}()

	out, err := e.hw.OutputBuffer(index)
	if err != nil {
		e.log.Errorf("%s: output buffer %d: %v", e.id, index, err)
		return
	}
	if info.Offset < 0 || info.Size < 0 || info.Offset+info.Size > len(out) {
		e.log.Errorf("%s: output buffer %d: range [%d:%d] outside %d bytes",
			e.id, index, info.Offset, info.Offset+info.Size, len(out))
		return
	}
	payload := out[info.Offset : info.Offset+info.Size]

	if info.Flags.Has(codec.FlagCodecConfig) {
		e.configData = append(e.configData[:0], payload...)
		e.stats.configFrames.Add(1)
		if e.opts.Codec == codec.H264 {
			sps, pps, err := parameterSets(payload)
			e.log.Debugf("%s: config frame %d bytes, sps %d, pps %d, err %v", e.id, len(payload), sps, pps, err)
		} else {
			e.log.Debugf("%s: config frame %d bytes", e.id, len(payload))
		}
		return
	}

	if e.adjuster.ReportEncodedFrame(info.Size) {
		e.updateBitrate()
	}

	isKey := info.Flags.Has(codec.FlagKeyFrame)
	var data []byte
	if isKey && e.opts.Codec.NeedsConfigPrepend() {
		if len(e.configData) == 0 {
			e.log.Warnf("%s: key frame without codec config", e.id)
		}
		data = make([]byte, 0, len(e.configData)+len(payload))
		data = append(data, e.configData...)
		data = append(data, payload...)
	} else {
		data = append([]byte(nil), payload...)
	}

	p, ok := e.pending.pop()
	if !ok {
		e.log.Warnf("%s: output without a pending frame, dropped %d bytes", e.id, len(data))
		return
	}

	img := frame.EncodedImage{
		Buffer:        data,
		EncodedWidth:  p.width,
		EncodedHeight: p.height,
		CaptureTimeMs: p.timestampMs,
		TimestampMs:   p.timestampMs,
		FrameType:     frame.FrameTypeDelta,
		Rotation:      p.rotation,
		CompleteFrame: true,
	}
	if isKey {
		img.FrameType = frame.FrameTypeKey
	}

	e.callback(img, CodecSpecificInfo{Codec: e.opts.Codec})

	if isKey {
		e.stats.keyFrames.Add(1)
	}
	e.stats.bytes.Add(uint64(len(data)))
	e.stats.encoded.Add(1)
}

// releaseCodec stops and releases the hardware codec. Both steps are
// attempted; their failures are combined.
func (e *Encoder) releaseCodec() error {
	var result *multierror.Error
	if err := e.hw.Stop(); err != nil {
		e.log.Errorf("%s: stop codec: %v", e.id, err)
		result = multierror.Append(result, pkgerrors.Wrap(err, "stop codec"))
	}
	if err := e.hw.Release(); err != nil {
		e.log.Errorf("%s: release codec: %v", e.id, err)
		result = multierror.Append(result, pkgerrors.Wrap(err, "release codec"))
	}
	return result.ErrorOrNil()
}
