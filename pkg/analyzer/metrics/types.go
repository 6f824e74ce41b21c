package metrics

// Thresholds defines the limits for function metric findings. A value is
// reported when it is strictly greater than the limit.
type Thresholds struct {
	CyclomaticHigh      uint32 `json:"cyclomatic_high" koanf:"cyclomatic_high" toml:"cyclomatic_high"`
	CyclomaticModerate  uint32 `json:"cyclomatic_moderate" koanf:"cyclomatic_moderate" toml:"cyclomatic_moderate"`
	StatementsVeryLarge int    `json:"statements_very_large" koanf:"statements_very_large" toml:"statements_very_large"`
	StatementsLarge     int    `json:"statements_large" koanf:"statements_large" toml:"statements_large"`
	ParamsTooMany       int    `json:"params_too_many" koanf:"params_too_many" toml:"params_too_many"`
	ParamsMany          int    `json:"params_many" koanf:"params_many" toml:"params_many"`
	MaxNesting          int    `json:"max_nesting" koanf:"max_nesting" toml:"max_nesting"`
}

// DefaultThresholds returns sensible defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		CyclomaticHigh:      12,
		CyclomaticModerate:  7,
		StatementsVeryLarge: 75,
		StatementsLarge:     40,
		ParamsTooMany:       8,
		ParamsMany:          5,
		MaxNesting:          4,
	}
}

// FunctionMetrics holds the measurements of one function.
type FunctionMetrics struct {
	Name       string `json:"name" toon:"name"`
	Line       uint32 `json:"line" toon:"line"`
	EndLine    uint32 `json:"end_line" toon:"end_line"`
	Cyclomatic uint32 `json:"cyclomatic" toon:"cyclomatic"`
	Statements int    `json:"statements" toon:"statements"`
	Params     int    `json:"params" toon:"params"`
}
