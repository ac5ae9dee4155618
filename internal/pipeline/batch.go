package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/coinassay/coinassay/internal/store"
)

// SweepConfig throttles batch sweeps so a full-table pass does not hammer
// project sites or the AI API.
type SweepConfig struct {
	// GroupSize is the number of records processed between group pauses.
	GroupSize int

	// RecordDelay is the pause between consecutive records.
	RecordDelay time.Duration

	// GroupDelay is the longer pause after each group completes.
	GroupDelay time.Duration

	// MaxPerMinute caps the overall processing rate. Zero disables the cap.
	MaxPerMinute int
}

func (c SweepConfig) withDefaults() SweepConfig {
	if c.GroupSize <= 0 {
		c.GroupSize = 10
	}
	if c.RecordDelay < 0 {
		c.RecordDelay = 0
	}
	if c.GroupDelay < 0 {
		c.GroupDelay = 0
	}
	return c
}

// SweepOutcome tallies what a sweep did. A record failure never aborts the
// sweep; it is counted and the sweep moves on.
type SweepOutcome struct {
	Total     int
	Succeeded int
	Skipped   int
	Failed    int
}

// Sweeper runs a phase across every record matching a filter, sequentially
// and throttled.
type Sweeper struct {
	orch    *Orchestrator
	store   store.Store
	cfg     SweepConfig
	limiter *rate.Limiter
}

// NewSweeper builds a Sweeper around an orchestrator.
func NewSweeper(orch *Orchestrator, st store.Store, cfg SweepConfig) *Sweeper {
	cfg = cfg.withDefaults()
	s := &Sweeper{orch: orch, store: st, cfg: cfg}
	if cfg.MaxPerMinute > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(float64(cfg.MaxPerMinute)/60.0), 1)
	}
	return s
}

// Sweep lists records matching the filter and runs the phase on each.
// Extraction sweeps re-run and overwrite regardless of prior completion;
// stuck sweeps run comparison only, since those records already hold a
// completed extraction.
func (s *Sweeper) Sweep(ctx context.Context, f store.Filter, phase Phase) (SweepOutcome, error) {
	var out SweepOutcome

	recs, err := s.store.ListProjects(ctx, f)
	if err != nil {
		return out, eris.Wrap(err, "sweep: list projects")
	}
	out.Total = len(recs)

	log := zap.L().With(zap.String("phase", string(phase)))
	log.Info("sweep starting", zap.Int("records", len(recs)))

	for i, rec := range recs {
		if err := ctx.Err(); err != nil {
			return out, eris.Wrap(err, "sweep: canceled")
		}
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return out, eris.Wrap(err, "sweep: rate limiter wait")
			}
		}

		res, err := s.orch.Run(ctx, Request{
			Phase:     phase,
			ProjectID: rec.ID,
		})
		switch {
		case err != nil:
			// Infrastructure errors still should not kill the sweep; the
			// next record may be fine.
			log.Error("sweep record errored", zap.String("project", rec.Symbol), zap.Error(err))
			out.Failed++
		case res.Skipped:
			out.Skipped++
		case res.Success && res.FailureReason == "":
			out.Succeeded++
		case res.Success:
			// Extraction succeeded but the chained comparison failed.
			log.Warn("sweep record partially failed",
				zap.String("project", rec.Symbol),
				zap.String("reason", res.FailureReason),
			)
			out.Failed++
		default:
			log.Warn("sweep record failed",
				zap.String("project", rec.Symbol),
				zap.String("reason", res.FailureReason),
			)
			out.Failed++
		}

		if i == len(recs)-1 {
			break
		}
		pause := s.cfg.RecordDelay
		if s.cfg.GroupSize > 0 && (i+1)%s.cfg.GroupSize == 0 {
			pause = s.cfg.GroupDelay
			log.Debug("sweep group pause", zap.Int("completed", i+1))
		}
		if pause > 0 {
			t := time.NewTimer(pause)
			select {
			case <-ctx.Done():
				t.Stop()
				return out, eris.Wrap(ctx.Err(), "sweep: canceled")
			case <-t.C:
			}
		}
	}

	log.Info("sweep finished",
		zap.Int("total", out.Total),
		zap.Int("succeeded", out.Succeeded),
		zap.Int("skipped", out.Skipped),
		zap.Int("failed", out.Failed),
	)
	return out, nil
}
