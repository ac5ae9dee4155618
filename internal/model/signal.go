package model

// SignalCategory groups signals by what they say about a project.
type SignalCategory string

const (
	CategoryTechnical SignalCategory = "technical_innovation"
	CategoryPositive  SignalCategory = "positive_indicator"
	CategoryRedFlag   SignalCategory = "red_flag"
)

// SignalStrength grades how well-evidenced a signal is.
type SignalStrength string

const (
	StrengthWeak     SignalStrength = "weak"
	StrengthModerate SignalStrength = "moderate"
	StrengthStrong   SignalStrength = "strong"
)

// Signal is a single evidenced observation extracted from project content.
// Signals are immutable once produced.
type Signal struct {
	Description string         `json:"description"`
	Category    SignalCategory `json:"category"`
	Strength    SignalStrength `json:"strength"`
	Evidence    string         `json:"evidence"`
}

// Metric is a named percentage in [0,100] describing text composition,
// e.g. the share of lines carrying mathematical notation.
type Metric struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Well-known metric names produced by the stock detector tables.
const (
	MetricMathDensity      = "math_density"
	MetricMarketingDensity = "marketing_density"
	MetricSecurityDensity  = "security_density"
)

// Extraction is the full Phase 1 output for one record.
type Extraction struct {
	Signals []Signal `json:"signals"`
	Metrics []Metric `json:"metrics"`

	// AISummary carries the optional reviewer narrative attached during
	// extraction. It feeds reasoning text only, never tier math.
	AISummary string `json:"ai_summary,omitempty"`
}

// Metric returns the named metric's value, or 0 when absent.
func (e *Extraction) Metric(name string) float64 {
	for _, m := range e.Metrics {
		if m.Name == name {
			return m.Value
		}
	}
	return 0
}

// CountSignals returns how many signals match the category, and of those,
// how many are strong.
func (e *Extraction) CountSignals(cat SignalCategory) (total, strong int) {
	for _, s := range e.Signals {
		if s.Category != cat {
			continue
		}
		total++
		if s.Strength == StrengthStrong {
			strong++
		}
	}
	return total, strong
}
