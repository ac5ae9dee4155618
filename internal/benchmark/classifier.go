package benchmark

import (
	"fmt"
	"strings"

	"github.com/coinassay/coinassay/internal/model"
)

// Classify evaluates benchmarks in rank order (best first) and returns the
// first satisfied tier, a score inside that tier's band, and a reasoning
// string. If no rank matches, the lowest rank's tier is assigned
// unconditionally — a record is never left unclassified, even when the text
// produced zero signals. Pure and deterministic.
func Classify(ex model.Extraction, set []Benchmark) model.AnalysisResult {
	// Classification stays total even for a caller that bypassed Validate
	// with an empty set.
	if len(set) == 0 {
		return model.AnalysisResult{
			Tier:      model.TierTrash,
			Score:     model.TierBands[model.TierTrash].Min,
			Reasoning: "No benchmarks configured; assigned lowest tier.",
		}
	}

	f := featuresOf(ex)

	for _, b := range set {
		ok, path := b.satisfied(f)
		if !ok {
			continue
		}
		score := scoreWithin(b.Band, f)
		return model.AnalysisResult{
			Tier:      b.Tier,
			Score:     score,
			Reasoning: reasoning(b, path, f, ex),
		}
	}

	// Defensive: Validate guarantees the last entry is reachable, but a
	// caller-supplied set may have a constrained bottom rank.
	last := set[len(set)-1]
	return model.AnalysisResult{
		Tier:      last.Tier,
		Score:     last.Band.Min,
		Reasoning: fmt.Sprintf("No tier thresholds met; assigned fallback tier %s.", last.Tier),
	}
}

// scoreWithin places the score inside the band as a monotonically
// increasing function of matched signal strength, then clamps so a tier's
// score can never spill into a neighboring band.
func scoreWithin(band model.Band, f features) float64 {
	span := band.Max - band.Min

	// Strong signals move the needle most; red flags pull toward the floor,
	// strong ones twice as hard.
	raw := float64(f.strongTechnical)*2.5 +
		float64(f.technical-f.strongTechnical)*1.0 +
		float64(f.positive)*1.0 +
		float64(f.strongPositive)*0.5 +
		f.securityDensity*0.05 -
		float64(f.redFlags)*1.5 -
		float64(f.strongRedFlags)*1.5

	// A raw of ~10 fills the band.
	score := band.Min + span*(raw/10.0)
	return band.Clamp(score)
}

func reasoning(b Benchmark, path string, f features, ex model.Extraction) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Tier %s (rank %d, %s): %d technical signal(s) (%d strong), %d positive indicator(s), %d red flag(s). ",
		b.Tier, b.Rank, path, f.technical, f.strongTechnical, f.positive, f.redFlags)
	fmt.Fprintf(&sb, "Densities: math %.1f%%, marketing %.1f%%, security %.1f%%.",
		f.mathDensity, f.marketingDensity, f.securityDensity)

	if ex.AISummary != "" {
		sb.WriteString(" Reviewer note: ")
		sb.WriteString(ex.AISummary)
	}
	return sb.String()
}
