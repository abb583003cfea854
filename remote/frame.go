package remote

import (
	"fmt"
	"math/big"
	"time"

	"github.com/xraph/mapsection/id"
	"github.com/xraph/mapsection/section"
)

// FrameType identifies a frame.
type FrameType string

const (
	// FrameHello is the first frame a Handler sends on a new connection.
	FrameHello FrameType = "hello"
	// FrameGenerate asks the worker to generate one section.
	FrameGenerate FrameType = "generate"
	// FrameCancel abandons a generate frame with the same ID.
	FrameCancel FrameType = "cancel"
	// FrameResult carries generated values.
	FrameResult FrameType = "result"
	// FrameError reports a failed generation.
	FrameError FrameType = "error"
)

// Frame is the envelope for every message on a connection.
type Frame struct {
	ID       uint64           `json:"id" msgpack:"id"`
	Type     FrameType        `json:"type" msgpack:"type"`
	WorkerID string           `json:"worker_id,omitempty" msgpack:"worker_id,omitempty"`
	Request  *GenerateRequest `json:"request,omitempty" msgpack:"request,omitempty"`
	Result   *GenerateResult  `json:"result,omitempty" msgpack:"result,omitempty"`
	Error    string           `json:"error,omitempty" msgpack:"error,omitempty"`
}

// Value is an RValue on the wire; Mantissa is base 10.
type Value struct {
	Mantissa string `json:"m" msgpack:"m"`
	Exponent int    `json:"e" msgpack:"e"`
}

// GenerateRequest describes one section to generate.
type GenerateRequest struct {
	JobNumber     int                  `json:"job_number" msgpack:"job_number"`
	RequestNumber int                  `json:"request_number" msgpack:"request_number"`
	SubdivisionID string               `json:"subdivision_id" msgpack:"subdivision_id"`
	BaseX         Value                `json:"base_x" msgpack:"base_x"`
	BaseY         Value                `json:"base_y" msgpack:"base_y"`
	DeltaWidth    Value                `json:"delta_w" msgpack:"delta_w"`
	DeltaHeight   Value                `json:"delta_h" msgpack:"delta_h"`
	BlockSize     section.SizeInt      `json:"block_size" msgpack:"block_size"`
	BlockOffset   section.VectorLong   `json:"block_offset" msgpack:"block_offset"`
	Settings      section.CalcSettings `json:"settings" msgpack:"settings"`
}

// GenerateResult carries one section's values in the orientation of its
// block offset.
type GenerateResult struct {
	Counts           []uint32      `json:"counts" msgpack:"counts"`
	EscapeVelocities []uint16      `json:"escapes,omitempty" msgpack:"escapes,omitempty"`
	Duration         time.Duration `json:"duration" msgpack:"duration"`
}

func encodeValue(v section.RValue) Value {
	m := "0"
	if v.Value != nil {
		m = v.Value.String()
	}
	return Value{Mantissa: m, Exponent: v.Exponent}
}

func decodeValue(v Value) (section.RValue, error) {
	n, ok := new(big.Int).SetString(v.Mantissa, 10)
	if !ok {
		return section.RValue{}, fmt.Errorf("remote: bad mantissa %q", v.Mantissa)
	}
	return section.RValue{Value: n, Exponent: v.Exponent}, nil
}

// NewGenerateRequest describes req for a remote worker.
func NewGenerateRequest(req *section.Request) *GenerateRequest {
	sub := req.Subdivision
	return &GenerateRequest{
		JobNumber:     req.JobNumber,
		RequestNumber: req.RequestNumber,
		SubdivisionID: sub.ID.String(),
		BaseX:         encodeValue(sub.BasePosition.X),
		BaseY:         encodeValue(sub.BasePosition.Y),
		DeltaWidth:    encodeValue(sub.SamplePointDelta.Width),
		DeltaHeight:   encodeValue(sub.SamplePointDelta.Height),
		BlockSize:     sub.BlockSize,
		BlockOffset:   req.BlockOffset,
		Settings:      req.Settings,
	}
}

// Subdivision rebuilds the request's subdivision.
func (g *GenerateRequest) Subdivision() (section.Subdivision, error) {
	subID, err := id.ParseSubdivisionID(g.SubdivisionID)
	if err != nil {
		return section.Subdivision{}, fmt.Errorf("remote: subdivision id: %w", err)
	}

	var vals [4]section.RValue
	for i, v := range []Value{g.BaseX, g.BaseY, g.DeltaWidth, g.DeltaHeight} {
		if vals[i], err = decodeValue(v); err != nil {
			return section.Subdivision{}, err
		}
	}

	sub := section.Subdivision{
		ID:               subID,
		BasePosition:     section.RPoint{X: vals[0], Y: vals[1]},
		SamplePointDelta: section.RSize{Width: vals[2], Height: vals[3]},
		BlockSize:        g.BlockSize,
	}
	if err := sub.Validate(); err != nil {
		return section.Subdivision{}, err
	}
	return sub, nil
}

// Request rebuilds a section request bound to job.
func (g *GenerateRequest) Request(job *section.Job) (*section.Request, error) {
	sub, err := g.Subdivision()
	if err != nil {
		return nil, err
	}
	req := section.NewRequest(job, g.RequestNumber)
	req.Subdivision = sub
	req.BlockOffset = g.BlockOffset
	req.MapPosition = sub.BlockPosition(g.BlockOffset)
	req.Settings = g.Settings
	return req, nil
}
