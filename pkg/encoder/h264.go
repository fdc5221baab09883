package encoder

import (
	"bytes"
	"errors"
	"io"

	"github.com/pion/webrtc/v4/pkg/media/h264reader"
)

// parameterSets counts the SPS and PPS NAL units in an Annex-B payload.
func parameterSets(payload []byte) (sps, pps int, err error) {
	r, err := h264reader.NewReader(bytes.NewReader(payload))
	if err != nil {
		return 0, 0, err
	}
	for {
		nal, err := r.NextNAL()
		if errors.Is(err, io.EOF) {
			return sps, pps, nil
		}
		if err != nil {
			return sps, pps, err
		}
		switch nal.UnitType {
		case h264reader.NalUnitTypeSPS:
			sps++
		case h264reader.NalUnitTypePPS:
			pps++
		}
	}
}
