package codec

import "time"

// Record is the stored form of one generated section.
type Record struct {
	ID               string    `json:"id" msgpack:"id"`
	SubdivisionID    string    `json:"subdivision_id" msgpack:"subdivision_id"`
	BlockX           int64     `json:"block_x" msgpack:"block_x"`
	BlockY           int64     `json:"block_y" msgpack:"block_y"`
	Width            int       `json:"width" msgpack:"width"`
	Height           int       `json:"height" msgpack:"height"`
	TargetIterations int       `json:"target_iterations" msgpack:"target_iterations"`
	Counts           []uint32  `json:"counts" msgpack:"counts"`
	EscapeVelocities []uint16  `json:"escape_velocities,omitempty" msgpack:"escape_velocities,omitempty"`
	CreatedAt        time.Time `json:"created_at" msgpack:"created_at"`
}
