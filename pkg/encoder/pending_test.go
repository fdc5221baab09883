package encoder

import (
	"testing"

	"github.com/thesyncim/hwvideo/pkg/frame"
)

func TestPendingQueueOrder(t *testing.T) {
	var q pendingQueue
	for i := int64(0); i < 3; i++ {
		q.push(pendingFrame{timestampMs: i * 33})
	}
	if q.len() != 3 {
		t.Fatalf("len() = %d, want 3", q.len())
	}
	for i := int64(0); i < 3; i++ {
		f, ok := q.pop()
		if !ok {
			t.Fatalf("pop() %d: queue empty", i)
		}
		if f.timestampMs != i*33 {
			t.Errorf("pop() timestampMs = %d, want %d", f.timestampMs, i*33)
		}
	}
	if _, ok := q.pop(); ok {
		t.Error("pop() on empty queue returned a record")
	}
}

func TestPendingQueuePopBack(t *testing.T) {
	var q pendingQueue
	q.push(pendingFrame{timestampMs: 1})
	q.push(pendingFrame{timestampMs: 2})
	q.popBack()

	f, ok := q.pop()
	if !ok || f.timestampMs != 1 {
		t.Errorf("pop() = %+v, %v, want timestampMs 1", f, ok)
	}
	q.popBack()
	if q.len() != 0 {
		t.Errorf("len() = %d, want 0", q.len())
	}
}

func TestParameterSets(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		sps     int
		pps     int
	}{
		{
			name:    "sps and pps",
			payload: []byte{0, 0, 0, 1, 0x67, 0x42, 0x00, 0x1f, 0, 0, 0, 1, 0x68, 0xce, 0x3c, 0x80},
			sps:     1,
			pps:     1,
		},
		{
			name:    "three byte start codes",
			payload: []byte{0, 0, 1, 0x67, 0x42, 0, 0, 1, 0x68, 0xce, 0, 0, 1, 0x68, 0xcf},
			sps:     1,
			pps:     2,
		},
		{
			name:    "slice only",
			payload: []byte{0, 0, 0, 1, 0x65, 0x88, 0x84},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sps, pps, err := parameterSets(tt.payload)
			if err != nil {
				t.Fatalf("parameterSets() error = %v", err)
			}
			if sps != tt.sps || pps != tt.pps {
				t.Errorf("parameterSets() = %d, %d, want %d, %d", sps, pps, tt.sps, tt.pps)
			}
		})
	}
}

func TestEncodeInfoKeyFrameRequested(t *testing.T) {
	tests := []struct {
		name  string
		types []frame.FrameType
		want  bool
	}{
		{"none", nil, false},
		{"delta", []frame.FrameType{frame.FrameTypeDelta}, false},
		{"key", []frame.FrameType{frame.FrameTypeKey}, true},
		{"any stream", []frame.FrameType{frame.FrameTypeDelta, frame.FrameTypeKey}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := (EncodeInfo{FrameTypes: tt.types}).keyFrameRequested(); got != tt.want {
				t.Errorf("keyFrameRequested() = %v, want %v", got, tt.want)
			}
		})
	}
}
