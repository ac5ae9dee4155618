package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/coinassay/coinassay/internal/pipeline"
	"github.com/coinassay/coinassay/internal/status"
	"github.com/coinassay/coinassay/internal/store"
)

// runTimeout bounds a single background pipeline run kicked off by the API.
const runTimeout = 10 * time.Minute

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the analysis HTTP API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		st, err := openStore(ctx, cfg)
		if err != nil {
			return eris.Wrap(err, "open store")
		}
		defer st.Close()

		orch, err := buildOrchestrator(cfg, st)
		if err != nil {
			return eris.Wrap(err, "build pipeline")
		}

		api := &apiServer{st: st, orch: orch}
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           api.router(cfg.Server.AllowedOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			zap.L().Info("api listening", zap.String("addr", srv.Addr))
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			return eris.Wrap(err, "serve")
		case <-ctx.Done():
			zap.L().Info("shutting down")
			shutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			return srv.Shutdown(shutCtx)
		}
	},
}

type apiServer struct {
	st   store.Store
	orch *pipeline.Orchestrator
}

func (s *apiServer) router(allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/analyze", s.handleAnalyze)
		r.Post("/reprocess", s.handleReprocess)
		r.Get("/projects/{id}/status", s.handleStatus)
	})
	return r
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type analyzeRequest struct {
	Project string `json:"project"` // symbol or ID
	URL     string `json:"url,omitempty"`
}

// handleAnalyze accepts an extraction request and runs the pipeline in the
// background; callers poll the status endpoint for progress.
func (s *apiServer) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Project == "" {
		writeError(w, http.StatusBadRequest, "body must be JSON with a project field")
		return
	}

	rec, err := resolveProject(r.Context(), s.st, req.Project)
	if err != nil {
		if eris.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "project not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}

	s.runAsync(pipeline.Request{
		Phase:     pipeline.PhaseExtraction,
		ProjectID: rec.ID,
		SourceURL: req.URL,
	}, rec.Symbol)

	writeJSON(w, http.StatusAccepted, map[string]string{
		"id":     rec.ID,
		"symbol": rec.Symbol,
		"state":  "queued",
	})
}

type reprocessRequest struct {
	Project string `json:"project"`
	Phase   string `json:"phase,omitempty"` // defaults to comparison
}

// handleReprocess forces a re-run from stored content, without refetching.
func (s *apiServer) handleReprocess(w http.ResponseWriter, r *http.Request) {
	var req reprocessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Project == "" {
		writeError(w, http.StatusBadRequest, "body must be JSON with a project field")
		return
	}
	phase := pipeline.PhaseComparison
	if req.Phase != "" {
		phase = pipeline.Phase(req.Phase)
		if phase != pipeline.PhaseExtraction && phase != pipeline.PhaseComparison {
			writeError(w, http.StatusBadRequest, "phase must be extraction or comparison")
			return
		}
	}

	rec, err := resolveProject(r.Context(), s.st, req.Project)
	if err != nil {
		if eris.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "project not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}

	preq := pipeline.Request{Phase: phase, ProjectID: rec.ID, Force: true}
	if phase == pipeline.PhaseExtraction {
		// Reprocessing re-reads stored content rather than hitting the site.
		preq.RawText = rec.RawContent
	}
	s.runAsync(preq, rec.Symbol)

	writeJSON(w, http.StatusAccepted, map[string]string{
		"id":     rec.ID,
		"symbol": rec.Symbol,
		"phase":  string(phase),
		"state":  "queued",
	})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	rec, err := resolveProject(r.Context(), s.st, chi.URLParam(r, "id"))
	if err != nil {
		if eris.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "project not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}

	if r.URL.Query().Get("detailed") == "true" {
		writeJSON(w, http.StatusOK, status.ResolveDetailed(rec))
		return
	}
	writeJSON(w, http.StatusOK, status.Resolve(rec))
}

// runAsync executes a pipeline request detached from the HTTP request's
// lifetime. Failures land on the record, where the status endpoint sees them.
func (s *apiServer) runAsync(req pipeline.Request, symbol string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()

		out, err := s.orch.Run(ctx, req)
		if err != nil {
			zap.L().Error("background run failed",
				zap.String("project", symbol),
				zap.String("phase", string(req.Phase)),
				zap.Error(err),
			)
			return
		}
		zap.L().Info("background run finished",
			zap.String("project", symbol),
			zap.String("phase", string(req.Phase)),
			zap.Bool("success", out.Success),
			zap.String("failure_reason", out.FailureReason),
		)
	}()
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
