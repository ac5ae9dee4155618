// Package status derives a polling-friendly lifecycle view from a persisted
// project record. Resolution is a pure function of the record snapshot: it
// never mutates anything, never calls out, and never returns an error.
package status

import (
	"fmt"
	"time"

	"github.com/coinassay/coinassay/internal/model"
)

// Stage is the coarse lifecycle position reported to pollers.
type Stage string

const (
	StageWebsiteDiscovery Stage = "website_discovery"
	StageScraping         Stage = "scraping"
	StageAIAnalysis       Stage = "ai_analysis"
	StageBenchmarkScoring Stage = "benchmark_scoring"
	StageComplete         Stage = "complete"
	StageFailed           Stage = "failed"
)

// Status is the well-formed object every poller receives.
type Status struct {
	Stage        Stage  `json:"stage"`
	Progress     int    `json:"progress"`
	Message      string `json:"message"`
	IsComplete   bool   `json:"is_complete"`
	HasError     bool   `json:"has_error"`
	ErrorMessage string `json:"error_message,omitempty"`

	// EstimatedSecondsRemaining is a rough linear projection from progress;
	// zero once complete or failed.
	EstimatedSecondsRemaining int `json:"estimated_seconds_remaining,omitempty"`
}

// rule pairs a predicate with the status it yields. Rules are evaluated in
// order and the first match wins; two rules can be simultaneously true, so
// the order of the chain is itself part of the contract.
type rule struct {
	name   string
	match  func(*model.ProjectRecord) bool
	result func(*model.ProjectRecord) Status
}

// secondsPerProgressPoint calibrates the remaining-time estimate. A full
// run is budgeted at ~2 minutes end to end.
const secondsPerProgressPoint = 1.2

// chain is the fixed priority order for status resolution. Keep appends at
// the bottom above the fallback only; inserting mid-chain changes reported
// stages for records matching later rules.
var chain = []rule{
	{
		name:  "record_unreadable",
		match: func(p *model.ProjectRecord) bool { return p == nil },
		result: func(*model.ProjectRecord) Status {
			return Status{
				Stage:        StageWebsiteDiscovery,
				Progress:     0,
				Message:      "Project record not found",
				HasError:     true,
				ErrorMessage: "record missing or unreadable",
			}
		},
	},
	{
		name:  "no_source",
		match: func(p *model.ProjectRecord) bool { return !p.HasSource() },
		result: func(*model.ProjectRecord) Status {
			return Status{Stage: StageWebsiteDiscovery, Progress: 10, Message: "Searching for project website"}
		},
	},
	{
		name:  "content_fetch_error",
		match: func(p *model.ProjectRecord) bool { return p.ContentStatus == model.ContentFetchError },
		result: func(*model.ProjectRecord) Status {
			return Status{
				Stage:        StageFailed,
				Progress:     25,
				Message:      "Website could not be reached",
				HasError:     true,
				ErrorMessage: "site unreachable",
			}
		},
	},
	{
		name:  "content_blocked",
		match: func(p *model.ProjectRecord) bool { return p.ContentStatus == model.ContentBlocked },
		result: func(*model.ProjectRecord) Status {
			return Status{
				Stage:        StageFailed,
				Progress:     25,
				Message:      "Site refused automated analysis",
				HasError:     true,
				ErrorMessage: "automated access blocked",
			}
		},
	},
	{
		name:  "content_dead",
		match: func(p *model.ProjectRecord) bool { return p.ContentStatus == model.ContentDead },
		result: func(*model.ProjectRecord) Status {
			return Status{
				Stage:        StageFailed,
				Progress:     25,
				Message:      "Site appears inactive or parked",
				HasError:     true,
				ErrorMessage: "site inactive",
			}
		},
	},
	{
		name: "awaiting_extraction",
		match: func(p *model.ProjectRecord) bool {
			return p.ExtractionStatus == model.PhaseAbsent
		},
		result: func(*model.ProjectRecord) Status {
			return Status{Stage: StageScraping, Progress: 25, Message: "Collecting project content"}
		},
	},
	{
		name: "extraction_processing",
		match: func(p *model.ProjectRecord) bool {
			return p.ExtractionStatus == model.PhaseProcessing
		},
		result: func(*model.ProjectRecord) Status {
			return Status{Stage: StageAIAnalysis, Progress: 50, Message: "Analyzing project content"}
		},
	},
	{
		name: "extraction_failed",
		match: func(p *model.ProjectRecord) bool {
			return p.ExtractionStatus == model.PhaseFailed
		},
		result: func(p *model.ProjectRecord) Status {
			return Status{
				Stage:        StageFailed,
				Progress:     50,
				Message:      "Content analysis failed",
				HasError:     true,
				ErrorMessage: orDefault(p.ExtractionError, "extraction failed"),
			}
		},
	},
	{
		name: "awaiting_comparison",
		match: func(p *model.ProjectRecord) bool {
			return p.ExtractionStatus == model.PhaseCompleted && p.ComparisonStatus == model.PhaseAbsent
		},
		result: func(*model.ProjectRecord) Status {
			return Status{Stage: StageBenchmarkScoring, Progress: 75, Message: "Preparing benchmark comparison"}
		},
	},
	{
		name: "comparison_processing",
		match: func(p *model.ProjectRecord) bool {
			return p.ComparisonStatus == model.PhaseProcessing
		},
		result: func(*model.ProjectRecord) Status {
			return Status{Stage: StageBenchmarkScoring, Progress: 85, Message: "Scoring against tier benchmarks"}
		},
	},
	{
		name: "comparison_failed",
		match: func(p *model.ProjectRecord) bool {
			return p.ComparisonStatus == model.PhaseFailed
		},
		result: func(p *model.ProjectRecord) Status {
			return Status{
				Stage:        StageFailed,
				Progress:     75,
				Message:      "Benchmark comparison failed",
				HasError:     true,
				ErrorMessage: orDefault(p.ComparisonError, "comparison failed"),
			}
		},
	},
	{
		name: "complete",
		match: func(p *model.ProjectRecord) bool {
			return p.ComparisonStatus == model.PhaseCompleted && p.Score != nil
		},
		result: func(p *model.ProjectRecord) Status {
			return Status{
				Stage:      StageComplete,
				Progress:   100,
				Message:    fmt.Sprintf("Analysis complete: %s tier, score %.0f", p.Tier, *p.Score),
				IsComplete: true,
			}
		},
	},
	{
		name:  "fallback",
		match: func(*model.ProjectRecord) bool { return true },
		result: func(*model.ProjectRecord) Status {
			// Catch-all for field combinations the chain does not classify.
			// A record landing here is an observability signal, not a bug in
			// the poller; it still gets a well-formed answer.
			return Status{Stage: StageScraping, Progress: 15, Message: "Analysis queued"}
		},
	},
}

// Resolve maps a record snapshot onto its lifecycle status. A nil record is
// a valid input and reports an explicit error status rather than panicking.
func Resolve(rec *model.ProjectRecord) Status {
	s, _ := resolveWithRule(rec)
	return s
}

func resolveWithRule(rec *model.ProjectRecord) (Status, string) {
	for _, r := range chain {
		if r.match == nil || !r.match(rec) {
			continue
		}
		s := r.result(rec)
		if !s.IsComplete && s.Stage != StageFailed {
			s.EstimatedSecondsRemaining = int(float64(100-s.Progress) * secondsPerProgressPoint)
		}
		return s, r.name
	}
	// Unreachable: the fallback rule matches everything.
	return Status{Stage: StageScraping, Progress: 15, Message: "Analysis queued"}, "fallback"
}

// ChainLen exposes the number of resolution rules so tests can pin the
// chain's shape.
func ChainLen() int { return len(chain) }

func orDefault(s, def string) string {
	if s != "" {
		return s
	}
	return def
}

// EstimateDuration converts the remaining-seconds figure to a duration for
// callers that prefer time.Duration.
func (s Status) EstimateDuration() time.Duration {
	return time.Duration(s.EstimatedSecondsRemaining) * time.Second
}
