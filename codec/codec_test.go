package codec_test

import (
	"testing"
	"time"

	"github.com/xraph/mapsection/codec"
)

func TestGet(t *testing.T) {
	tests := []struct {
		name   string
		want   string
		binary bool
	}{
		{"json", codec.NameJSON, false},
		{"msgpack", codec.NameMsgpack, true},
		{"", codec.NameMsgpack, true},
		{"protobuf", codec.NameMsgpack, true},
	}
	for _, tt := range tests {
		c := codec.Get(tt.name)
		if c.Name() != tt.want {
			t.Errorf("Get(%q).Name() = %q, want %q", tt.name, c.Name(), tt.want)
		}
		if c.Binary() != tt.binary {
			t.Errorf("Get(%q).Binary() = %v, want %v", tt.name, c.Binary(), tt.binary)
		}
	}
}

func TestRecordEncoding(t *testing.T) {
	rec := codec.Record{
		ID:               "msec_01h2xcejqtf2nbrexx3vqjhp41",
		SubdivisionID:    "subdiv_01h2xcejqtf2nbrexx3vqjhp41",
		BlockX:           -3,
		BlockY:           7,
		Width:            2,
		Height:           2,
		TargetIterations: 400,
		Counts:           []uint32{1, 2, 3, 400},
		EscapeVelocities: []uint16{0, 10, 20, 30},
		CreatedAt:        time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	for _, c := range []codec.Codec{codec.JSON{}, codec.Msgpack{}} {
		t.Run(c.Name(), func(t *testing.T) {
			data, err := c.Marshal(rec)
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			var got codec.Record
			if err := c.Unmarshal(data, &got); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if got.SubdivisionID != rec.SubdivisionID || got.BlockX != -3 || got.BlockY != 7 {
				t.Errorf("key fields = %q (%d, %d)", got.SubdivisionID, got.BlockX, got.BlockY)
			}
			if len(got.Counts) != 4 || got.Counts[3] != 400 {
				t.Errorf("Counts = %v", got.Counts)
			}
			if !got.CreatedAt.Equal(rec.CreatedAt) {
				t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, rec.CreatedAt)
			}
		})
	}
}
