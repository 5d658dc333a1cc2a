package config

// Tunables are the pipeline settings that can change at runtime through the
// settings API. They are persisted and override the file configuration.
type Tunables struct {
	Stride              int     `json:"stride"`
	VoteWindow          int     `json:"vote_window"`
	ConfidenceThreshold float64 `json:"confidence_threshold"`
	ConfidenceMode      string  `json:"confidence_mode"`
	ConfidenceOffset    float64 `json:"confidence_offset"`
	ConfidenceDivisor   float64 `json:"confidence_divisor"`
}

// Tunables extracts the runtime-adjustable part of p.
func (p PipelineConfig) Tunables() Tunables {
	return Tunables{
		Stride:              p.Stride,
		VoteWindow:          p.VoteWindow,
		ConfidenceThreshold: p.ConfidenceThreshold,
		ConfidenceMode:      p.Confidence.Mode,
		ConfidenceOffset:    p.Confidence.Offset,
		ConfidenceDivisor:   p.Confidence.Divisor,
	}
}

// WithTunables returns a copy of p with t applied.
func (p PipelineConfig) WithTunables(t Tunables) PipelineConfig {
	p.Stride = t.Stride
	p.VoteWindow = t.VoteWindow
	p.ConfidenceThreshold = t.ConfidenceThreshold
	p.Confidence = ConfidenceConfig{
		Mode:    t.ConfidenceMode,
		Offset:  t.ConfidenceOffset,
		Divisor: t.ConfidenceDivisor,
	}
	return p
}
