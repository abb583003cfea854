package section

// CalcSettings controls how a section's values are generated.
type CalcSettings struct {
	TargetIterations    int     `json:"target_iterations" msgpack:"target_iterations"`
	Threshold           float64 `json:"threshold" msgpack:"threshold"`
	IterationsPerStep   int     `json:"iterations_per_step" msgpack:"iterations_per_step"`
	UseEscapeVelocities bool    `json:"use_escape_velocities" msgpack:"use_escape_velocities"`
	SaveTheZValues      bool    `json:"save_the_z_values" msgpack:"save_the_z_values"`
}

// DefaultCalcSettings returns the settings used for a fresh viewport.
func DefaultCalcSettings() CalcSettings {
	return CalcSettings{
		TargetIterations:    400,
		Threshold:           4,
		IterationsPerStep:   100,
		UseEscapeVelocities: true,
	}
}
