// Package pipeline orchestrates the two analysis phases: signal extraction
// from fetched content, then comparison against the benchmark set. Phase
// state lives in the store; the orchestrator re-reads it before every
// transition so concurrent runs and restarts converge on the same record.
package pipeline

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/coinassay/coinassay/internal/benchmark"
	"github.com/coinassay/coinassay/internal/extract"
	"github.com/coinassay/coinassay/internal/fetcher"
	"github.com/coinassay/coinassay/internal/model"
	"github.com/coinassay/coinassay/internal/resilience"
	"github.com/coinassay/coinassay/internal/store"
	"github.com/coinassay/coinassay/pkg/claude"
)

// Phase names the pipeline stage a request targets.
type Phase string

const (
	// PhaseExtraction fetches content and extracts signals (Phase 1).
	PhaseExtraction Phase = "extraction"
	// PhaseComparison classifies an extraction against benchmarks (Phase 2).
	PhaseComparison Phase = "comparison"
)

// Request asks the orchestrator to run one phase for one project.
type Request struct {
	Phase     Phase
	ProjectID string

	// SourceURL overrides the record's own source when set.
	SourceURL string

	// RawText skips fetching entirely; used for reprocessing stored content
	// and for callers that already hold the document.
	RawText string

	// Force re-runs a comparison that already completed. Extraction always
	// re-runs and overwrites; reprocessing is its reason to exist.
	Force bool
}

// Outcome reports what a phase run did.
type Outcome struct {
	Phase   Phase
	Success bool
	Skipped bool

	SignalsCount int

	Tier  model.Tier
	Score float64

	// Phase2Triggered is set when a successful extraction chained into
	// comparison within the same call.
	Phase2Triggered bool

	FailureReason string
}

// Options tunes orchestrator behavior.
type Options struct {
	// ChainPhase2 runs comparison immediately after a successful extraction.
	ChainPhase2 bool

	// AnnotateWithAI asks the analyst for a qualitative summary during
	// extraction. Analyst failures degrade to rule-only extraction.
	AnnotateWithAI bool
}

// Orchestrator coordinates fetching, extraction, review, and classification.
type Orchestrator struct {
	store      store.Store
	fetch      fetcher.ContentFetcher
	analyst    claude.Analyst
	benchmarks []benchmark.Benchmark
	opts       Options

	website    *extract.Extractor
	whitepaper *extract.Extractor
}

// New builds an Orchestrator. analyst may be nil; AI annotation is optional.
func New(st store.Store, fetch fetcher.ContentFetcher, analyst claude.Analyst, set []benchmark.Benchmark, opts Options) *Orchestrator {
	return &Orchestrator{
		store:      st,
		fetch:      fetch,
		analyst:    analyst,
		benchmarks: set,
		opts:       opts,
		website:    extract.New(extract.WebsiteTable()),
		whitepaper: extract.New(extract.WhitepaperTable()),
	}
}

// Run executes the requested phase and returns its outcome. The returned
// error covers infrastructure problems (store unreachable, bad request);
// a phase that ran and failed reports through Outcome.FailureReason with a
// nil error, since the failure is already persisted on the record.
func (o *Orchestrator) Run(ctx context.Context, req Request) (Outcome, error) {
	switch req.Phase {
	case PhaseExtraction:
		return o.runExtraction(ctx, req)
	case PhaseComparison:
		return o.runComparison(ctx, req)
	default:
		return Outcome{}, eris.Errorf("pipeline: unknown phase %q", req.Phase)
	}
}

func (o *Orchestrator) runExtraction(ctx context.Context, req Request) (Outcome, error) {
	out := Outcome{Phase: PhaseExtraction}

	rec, err := o.store.GetProject(ctx, req.ProjectID)
	if err != nil {
		return out, eris.Wrapf(err, "pipeline: load project %s", req.ProjectID)
	}

	log := zap.L().With(zap.String("project", rec.Symbol), zap.String("id", rec.ID))

	// A completed extraction is re-run, not skipped: re-invocation is the
	// reprocessing mechanism, and it must overwrite cleanly.
	if rec.ExtractionStatus == model.PhaseCompleted {
		log.Debug("re-running completed extraction")
	}

	if err := o.store.SetExtractionStatus(ctx, rec.ID, model.PhaseProcessing, ""); err != nil {
		return out, eris.Wrap(err, "pipeline: mark extraction processing")
	}

	text, sourceURL, failErr := o.obtainText(ctx, rec, req)
	if failErr != nil {
		reason := failureReason("fetch content", failErr)
		if err := o.store.SetExtractionStatus(ctx, rec.ID, model.PhaseFailed, reason); err != nil {
			return out, eris.Wrap(err, "pipeline: mark extraction failed")
		}
		log.Warn("extraction failed", zap.String("reason", reason))
		out.FailureReason = reason
		return out, nil
	}

	ex := o.extractorFor(sourceURL).Extract(text)
	out.SignalsCount = len(ex.Signals)

	if o.opts.AnnotateWithAI && o.analyst != nil {
		name := rec.Name
		if name == "" {
			name = rec.Symbol
		}
		j, reviewErr := o.analyst.Review(ctx, name, text)
		if reviewErr != nil {
			// Rule-based extraction stands on its own.
			log.Warn("ai review unavailable", zap.Error(reviewErr))
		} else {
			ex.AISummary = j.Summary
		}
	}

	if err := o.store.SaveExtraction(ctx, rec.ID, &ex); err != nil {
		return out, eris.Wrap(err, "pipeline: save extraction")
	}
	log.Info("extraction completed",
		zap.Int("signals", len(ex.Signals)),
		zap.Int("text_bytes", len(text)),
	)
	out.Success = true

	if o.opts.ChainPhase2 {
		out.Phase2Triggered = true
		// A fresh extraction invalidates any stored verdict, so the chained
		// comparison always re-classifies.
		cmp, err := o.runComparison(ctx, Request{
			Phase:     PhaseComparison,
			ProjectID: rec.ID,
			Force:     true,
		})
		if err != nil {
			return out, err
		}
		out.Tier = cmp.Tier
		out.Score = cmp.Score
		if !cmp.Success {
			out.FailureReason = cmp.FailureReason
		}
	}
	return out, nil
}

// obtainText resolves the document text for extraction: caller-supplied raw
// text wins, otherwise the source URL is fetched and its health persisted.
func (o *Orchestrator) obtainText(ctx context.Context, rec *model.ProjectRecord, req Request) (text, sourceURL string, err error) {
	sourceURL = req.SourceURL
	if sourceURL == "" {
		sourceURL = rec.SourceURL()
	}

	if req.RawText != "" {
		return req.RawText, sourceURL, nil
	}
	if sourceURL == "" {
		if rec.RawContent != "" {
			return rec.RawContent, "", nil
		}
		return "", "", eris.Errorf("pipeline: project %s has no content source", rec.Symbol)
	}

	res, fetchErr := o.fetch.Fetch(ctx, sourceURL)
	if setErr := o.store.SetContentStatus(ctx, rec.ID, res.Status); setErr != nil {
		zap.L().Warn("failed to persist content status",
			zap.String("id", rec.ID),
			zap.Error(setErr),
		)
	}
	if fetchErr != nil {
		return "", sourceURL, fetchErr
	}

	if saveErr := o.store.SaveRawContent(ctx, rec.ID, res.Text); saveErr != nil {
		return "", sourceURL, eris.Wrap(saveErr, "pipeline: save raw content")
	}
	return res.Text, sourceURL, nil
}

// extractorFor picks the detector table by document kind. Whitepapers get
// the table with citation and benchmark detectors.
func (o *Orchestrator) extractorFor(sourceURL string) *extract.Extractor {
	lower := strings.ToLower(sourceURL)
	if strings.Contains(lower, "whitepaper") ||
		strings.HasSuffix(lower, ".pdf") ||
		strings.HasPrefix(lower, "ftp://") {
		return o.whitepaper
	}
	return o.website
}

func (o *Orchestrator) runComparison(ctx context.Context, req Request) (Outcome, error) {
	out := Outcome{Phase: PhaseComparison}

	rec, err := o.store.GetProject(ctx, req.ProjectID)
	if err != nil {
		return out, eris.Wrapf(err, "pipeline: load project %s", req.ProjectID)
	}

	log := zap.L().With(zap.String("project", rec.Symbol), zap.String("id", rec.ID))

	if rec.ComparisonStatus == model.PhaseCompleted && rec.Score != nil && !req.Force {
		log.Debug("comparison already completed, skipping")
		out.Success = true
		out.Skipped = true
		out.Tier = rec.Tier
		out.Score = *rec.Score
		return out, nil
	}

	// Comparison consumes extraction output; without it there is nothing
	// to classify.
	if rec.ExtractionStatus != model.PhaseCompleted || rec.Extraction == nil {
		reason := "extraction has not completed"
		if err := o.store.SetComparisonStatus(ctx, rec.ID, model.PhaseFailed, reason); err != nil {
			return out, eris.Wrap(err, "pipeline: mark comparison failed")
		}
		out.FailureReason = reason
		return out, nil
	}

	if err := o.store.SetComparisonStatus(ctx, rec.ID, model.PhaseProcessing, ""); err != nil {
		return out, eris.Wrap(err, "pipeline: mark comparison processing")
	}

	result := benchmark.Classify(*rec.Extraction, o.benchmarks)

	if err := o.store.SaveAnalysis(ctx, rec.ID, result); err != nil {
		return out, eris.Wrap(err, "pipeline: save analysis")
	}
	log.Info("comparison completed",
		zap.String("tier", string(result.Tier)),
		zap.Float64("score", result.Score),
	)

	out.Success = true
	out.Tier = result.Tier
	out.Score = result.Score
	return out, nil
}

// failureReason renders a persisted failure string, with timeouts called out
// so operators can tell a slow source from a broken one.
func failureReason(op string, err error) string {
	if resilience.IsTimeout(err) {
		return "timeout: " + op + ": " + err.Error()
	}
	return op + ": " + err.Error()
}
