package status

import "github.com/coinassay/coinassay/internal/model"

// SubStep is one entry in the fine-grained progress view used by privileged
// and debug consumers. Sub-steps strictly refine the coarse resolution: each
// belongs to exactly one stage and one slice of that stage's progress band.
type SubStep struct {
	Name     string `json:"name"`
	Stage    Stage  `json:"stage"`
	FromPct  int    `json:"from_pct"`
	ToPct    int    `json:"to_pct"`
	Position int    `json:"position"` // 1-based position across all sub-steps
}

// DetailedStatus augments the coarse status with the sub-step the record's
// progress falls into. It is derived from Resolve's output, never computed
// independently, so the two views cannot contradict each other.
type DetailedStatus struct {
	Status
	Step      string `json:"step"`
	StepIndex int    `json:"step_index"`
	StepCount int    `json:"step_count"`
	RuleName  string `json:"rule_name"`
}

// subSteps linearly subdivides the coarse progress bands. Boundaries line up
// with the progress values the resolver chain emits.
var subSteps = []SubStep{
	{Name: "locating project sources", Stage: StageWebsiteDiscovery, FromPct: 0, ToPct: 5},
	{Name: "confirming canonical website", Stage: StageWebsiteDiscovery, FromPct: 6, ToPct: 12},
	{Name: "queuing content fetch", Stage: StageScraping, FromPct: 13, ToPct: 18},
	{Name: "fetching landing pages", Stage: StageScraping, FromPct: 19, ToPct: 25},
	{Name: "fetching whitepaper", Stage: StageScraping, FromPct: 26, ToPct: 32},
	{Name: "normalizing raw text", Stage: StageScraping, FromPct: 33, ToPct: 40},
	{Name: "running pattern detectors", Stage: StageAIAnalysis, FromPct: 41, ToPct: 48},
	{Name: "measuring content densities", Stage: StageAIAnalysis, FromPct: 49, ToPct: 55},
	{Name: "checking rigor context", Stage: StageAIAnalysis, FromPct: 56, ToPct: 62},
	{Name: "collecting extracted signals", Stage: StageAIAnalysis, FromPct: 63, ToPct: 70},
	{Name: "loading tier benchmarks", Stage: StageBenchmarkScoring, FromPct: 71, ToPct: 76},
	{Name: "evaluating tier thresholds", Stage: StageBenchmarkScoring, FromPct: 77, ToPct: 84},
	{Name: "deriving tier score", Stage: StageBenchmarkScoring, FromPct: 85, ToPct: 92},
	{Name: "writing verdict", Stage: StageBenchmarkScoring, FromPct: 93, ToPct: 99},
	{Name: "analysis complete", Stage: StageComplete, FromPct: 100, ToPct: 100},
}

func init() {
	for i := range subSteps {
		subSteps[i].Position = i + 1
	}
}

// SubSteps returns a copy of the sub-step table.
func SubSteps() []SubStep {
	out := make([]SubStep, len(subSteps))
	copy(out, subSteps)
	return out
}

// ResolveDetailed returns the coarse status plus the sub-step its progress
// value falls into. Failed records report the sub-step of the point they
// failed at, which tells a debugger how far the pipeline got.
func ResolveDetailed(rec *model.ProjectRecord) DetailedStatus {
	coarse, ruleName := resolveWithRule(rec)

	ds := DetailedStatus{
		Status:    coarse,
		StepCount: len(subSteps),
		RuleName:  ruleName,
	}
	for _, st := range subSteps {
		if coarse.Progress >= st.FromPct && coarse.Progress <= st.ToPct {
			ds.Step = st.Name
			ds.StepIndex = st.Position
			return ds
		}
	}
	// Progress values always land in a band; the table covers 0-100 with no
	// gaps. Guard anyway so a table edit cannot break pollers.
	ds.Step = subSteps[0].Name
	ds.StepIndex = subSteps[0].Position
	return ds
}
