// Package benchmark classifies extracted signals and metrics against an
// ordered set of tier benchmarks. Classification is total: every input maps
// to exactly one tier, with the lowest rank as the unconditional fallback.
package benchmark

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/coinassay/coinassay/internal/model"
)

// Rule is a conjunction of optional thresholds over signal counts and
// density metrics. A nil threshold is unconstrained. All present thresholds
// must hold for the rule to match.
type Rule struct {
	MinStrongTechnical  *int     `yaml:"min_strong_technical,omitempty"`
	MinTechnical        *int     `yaml:"min_technical,omitempty"`
	MinPositive         *int     `yaml:"min_positive,omitempty"`
	MaxRedFlags         *int     `yaml:"max_red_flags,omitempty"`
	MinMathDensity      *float64 `yaml:"min_math_density,omitempty"`
	MaxMarketingDensity *float64 `yaml:"max_marketing_density,omitempty"`
	MinSecurityDensity  *float64 `yaml:"min_security_density,omitempty"`
}

// Benchmark is one ranked entry. Its predicate is the standard rule OR the
// optional alternate, which relaxes one dimension in exchange for tightening
// another.
type Benchmark struct {
	Rank      int        `yaml:"rank"`
	Tier      model.Tier `yaml:"tier"`
	Standard  Rule       `yaml:"standard"`
	Alternate *Rule      `yaml:"alternate,omitempty"`
	Band      model.Band `yaml:"band"`
}

// features is the flattened view of an extraction that rules evaluate.
type features struct {
	technical        int
	strongTechnical  int
	positive         int
	strongPositive   int
	redFlags         int
	strongRedFlags   int
	mathDensity      float64
	marketingDensity float64
	securityDensity  float64
}

func featuresOf(ex model.Extraction) features {
	tech, strongTech := ex.CountSignals(model.CategoryTechnical)
	pos, strongPos := ex.CountSignals(model.CategoryPositive)
	red, strongRed := ex.CountSignals(model.CategoryRedFlag)
	return features{
		technical:        tech,
		strongTechnical:  strongTech,
		positive:         pos,
		strongPositive:   strongPos,
		redFlags:         red,
		strongRedFlags:   strongRed,
		mathDensity:      ex.Metric(model.MetricMathDensity),
		marketingDensity: ex.Metric(model.MetricMarketingDensity),
		securityDensity:  ex.Metric(model.MetricSecurityDensity),
	}
}

func (r Rule) matches(f features) bool {
	if r.MinStrongTechnical != nil && f.strongTechnical < *r.MinStrongTechnical {
		return false
	}
	if r.MinTechnical != nil && f.technical < *r.MinTechnical {
		return false
	}
	if r.MinPositive != nil && f.positive < *r.MinPositive {
		return false
	}
	if r.MaxRedFlags != nil && f.redFlags > *r.MaxRedFlags {
		return false
	}
	if r.MinMathDensity != nil && f.mathDensity < *r.MinMathDensity {
		return false
	}
	if r.MaxMarketingDensity != nil && f.marketingDensity > *r.MaxMarketingDensity {
		return false
	}
	if r.MinSecurityDensity != nil && f.securityDensity < *r.MinSecurityDensity {
		return false
	}
	return true
}

func (b Benchmark) satisfied(f features) (bool, string) {
	if b.Standard.matches(f) {
		return true, "standard thresholds met"
	}
	if b.Alternate != nil && b.Alternate.matches(f) {
		return true, "alternate thresholds met"
	}
	return false, ""
}

// Validate checks structural invariants of a benchmark set: at least one
// entry, strictly increasing ranks, and disjoint, descending score bands.
func Validate(set []Benchmark) error {
	if len(set) == 0 {
		return eris.New("benchmark: empty benchmark set")
	}

	var errs []string
	for i, b := range set {
		if b.Tier == "" {
			errs = append(errs, fmt.Sprintf("rank %d: missing tier", b.Rank))
		}
		if b.Band.Min < 0 || b.Band.Max > 100 || b.Band.Min > b.Band.Max {
			errs = append(errs, fmt.Sprintf("rank %d: invalid band [%.0f,%.0f]", b.Rank, b.Band.Min, b.Band.Max))
		}
		if i > 0 {
			prev := set[i-1]
			if b.Rank <= prev.Rank {
				errs = append(errs, fmt.Sprintf("rank %d: ranks must strictly increase", b.Rank))
			}
			if b.Band.Max >= prev.Band.Min {
				errs = append(errs, fmt.Sprintf("rank %d: band overlaps rank %d", b.Rank, prev.Rank))
			}
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("benchmark: invalid set: %s", strings.Join(errs, "; "))
	}
	return nil
}

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

// Defaults returns the stock four-tier benchmark set. Each rank carries an
// alternate path relaxing one dimension, matching how real projects present:
// deeply technical whitepapers with thin marketing, or well-audited projects
// with modest formal content.
func Defaults() []Benchmark {
	return []Benchmark{
		{
			Rank: 1,
			Tier: model.TierAlpha,
			Standard: Rule{
				MinStrongTechnical:  intPtr(3),
				MinMathDensity:      floatPtr(20),
				MaxMarketingDensity: floatPtr(15),
				MaxRedFlags:         intPtr(0),
			},
			Alternate: &Rule{
				// Relaxed math bar for audited, security-heavy projects.
				MinStrongTechnical: intPtr(2),
				MinMathDensity:     floatPtr(10),
				MinSecurityDensity: floatPtr(20),
				MinPositive:        intPtr(2),
				MaxRedFlags:        intPtr(0),
			},
			Band: model.TierBands[model.TierAlpha],
		},
		{
			Rank: 2,
			Tier: model.TierSolid,
			Standard: Rule{
				MinTechnical:        intPtr(2),
				MinStrongTechnical:  intPtr(1),
				MinMathDensity:      floatPtr(8),
				MaxMarketingDensity: floatPtr(30),
				MaxRedFlags:         intPtr(1),
			},
			Alternate: &Rule{
				// Relaxed rigor bar when independent positives back it up.
				MinTechnical: intPtr(2),
				MinPositive:  intPtr(3),
				MaxRedFlags:  intPtr(1),
			},
			Band: model.TierBands[model.TierSolid],
		},
		{
			Rank: 3,
			Tier: model.TierBasic,
			Standard: Rule{
				MinTechnical:        intPtr(1),
				MaxMarketingDensity: floatPtr(55),
				MaxRedFlags:         intPtr(2),
			},
			Alternate: &Rule{
				// Relaxed technical bar for plain but honest projects.
				MinPositive: intPtr(1),
				MaxRedFlags: intPtr(1),
			},
			Band: model.TierBands[model.TierBasic],
		},
		{
			// Unconditional fallback: empty standard rule matches anything.
			Rank:     4,
			Tier:     model.TierTrash,
			Standard: Rule{},
			Band:     model.TierBands[model.TierTrash],
		},
	}
}
