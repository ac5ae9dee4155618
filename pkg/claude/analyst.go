package claude

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/coinassay/coinassay/internal/resilience"
)

// Judgment is the model's qualitative read of a project's materials.
type Judgment struct {
	Summary    string   `json:"summary"`
	Strengths  []string `json:"strengths"`
	Concerns   []string `json:"concerns"`
	Confidence float64  `json:"confidence"`
}

// Analyst asks a model to review project text. Implementations must be safe
// for concurrent use.
type Analyst interface {
	Review(ctx context.Context, projectName, text string) (*Judgment, error)
}

const reviewSystemPrompt = `You are a skeptical crypto-asset analyst. You will
receive the text of a project's website or whitepaper. Respond with a single
JSON object and nothing else:
{"summary": "<two sentences>", "strengths": ["..."], "concerns": ["..."], "confidence": <0.0-1.0>}
Judge only what the text supports. Marketing language is not evidence.`

// AnalystConfig configures the SDK-backed analyst.
type AnalystConfig struct {
	Model       string
	MaxTokens   int64
	Timeout     time.Duration
	Temperature float64
	Retry       resilience.RetryConfig
	Breaker     resilience.CircuitBreakerConfig

	// MaxInputChars truncates oversized documents before sending.
	MaxInputChars int
}

func (c AnalystConfig) withDefaults() AnalystConfig {
	if c.Model == "" {
		c.Model = "claude-haiku-4-5-20251001"
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 1024
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.MaxInputChars <= 0 {
		c.MaxInputChars = 100_000
	}
	return c
}

// ModelAnalyst implements Analyst on top of a Client, with per-call timeout,
// retry on transient errors, and a circuit breaker so a broken upstream
// degrades the pipeline instead of stalling it.
type ModelAnalyst struct {
	client  Client
	cfg     AnalystConfig
	breaker *resilience.CircuitBreaker
}

// NewAnalyst builds a ModelAnalyst around the given client.
func NewAnalyst(client Client, cfg AnalystConfig) *ModelAnalyst {
	cfg = cfg.withDefaults()
	return &ModelAnalyst{
		client:  client,
		cfg:     cfg,
		breaker: resilience.NewCircuitBreaker(cfg.Breaker),
	}
}

// Review sends the project text for qualitative review and parses the
// model's JSON verdict.
func (a *ModelAnalyst) Review(ctx context.Context, projectName, text string) (*Judgment, error) {
	if len(text) > a.cfg.MaxInputChars {
		text = text[:a.cfg.MaxInputChars]
	}

	retry := a.cfg.Retry
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger("claude", "review")
	}

	resp, err := resilience.ExecuteVal(ctx, a.breaker, func(ctx context.Context) (*MessageResponse, error) {
		return resilience.DoVal(ctx, retry, func(ctx context.Context) (*MessageResponse, error) {
			callCtx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
			defer cancel()

			temp := a.cfg.Temperature
			resp, err := a.client.CreateMessage(callCtx, MessageRequest{
				Model:       a.cfg.Model,
				MaxTokens:   a.cfg.MaxTokens,
				System:      reviewSystemPrompt,
				Temperature: &temp,
				Messages: []Message{{
					Role:    "user",
					Content: "Project: " + projectName + "\n\n" + text,
				}},
			})
			if err != nil && resilience.IsTimeout(err) {
				return nil, resilience.NewTimeoutError("claude review", a.cfg.Timeout, err)
			}
			return resp, err
		})
	})
	if err != nil {
		return nil, err
	}

	resp.Usage.LogCost(a.cfg.Model, "review")

	j, err := parseJudgment(resp.Text)
	if err != nil {
		zap.L().Warn("unparseable review response",
			zap.String("project", projectName),
			zap.Error(err),
		)
		return nil, err
	}
	return j, nil
}

// parseJudgment extracts the JSON object from the response text, tolerating
// markdown fences and prose around the object.
func parseJudgment(text string) (*Judgment, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, eris.New("claude: no JSON object in response")
	}

	var j Judgment
	if err := json.Unmarshal([]byte(text[start:end+1]), &j); err != nil {
		return nil, eris.Wrap(err, "claude: parse judgment")
	}
	if j.Summary == "" {
		return nil, eris.New("claude: judgment missing summary")
	}
	if j.Confidence < 0 || j.Confidence > 1 {
		return nil, eris.Errorf("claude: confidence %f out of range", j.Confidence)
	}
	return &j, nil
}
