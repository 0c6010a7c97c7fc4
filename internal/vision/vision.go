// Package vision talks to the model servers that describe and rewrite
// captions. Inference itself always happens on the server.
package vision

import (
	"context"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"go.uber.org/zap"
)

// Options are the generation knobs shared by every backend.
// Zero values leave the server default in place.
type Options struct {
	MaxTokens     int
	Temperature   float64
	TopP          float64
	RepeatPenalty float64
	Seed          int64
}

// Request is one prompt, optionally with a JPEG image attached.
type Request struct {
	System  string
	Prompt  string
	Image   []byte
	Options Options
}

// Client produces a single text completion for a request.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
	Model() string
}

const (
	BackendOllama = "ollama"
	BackendOpenAI = "openai"
)

// Config selects and configures a backend.
type Config struct {
	Backend string
	Model   string
	// BaseURL overrides OLLAMA_HOST or OPENAI_BASE_URL.
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// New builds the client for cfg.Backend.
func New(cfg Config, logger *zap.Logger) (Client, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("no model configured for %s backend", cfg.Backend)
	}
	switch cfg.Backend {
	case "", BackendOllama:
		return NewOllama(cfg, logger)
	case BackendOpenAI:
		return NewOpenAI(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unknown backend %q (want %q or %q)", cfg.Backend, BackendOllama, BackendOpenAI)
	}
}

var (
	retryAttempts uint = 3
	retryDelay         = 200 * time.Millisecond
)

// withRetry runs call until it succeeds, fails permanently or the attempts
// run out. Errors wrapped with retry.Unrecoverable stop immediately.
func withRetry(ctx context.Context, logger *zap.Logger, model string, call func() (string, error)) (string, error) {
	return retry.DoWithData[string](call,
		retry.Context(ctx),
		retry.Attempts(retryAttempts),
		retry.Delay(retryDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.Debug("retrying model call",
				zap.String("model", model),
				zap.Uint("attempt", n+1),
				zap.Error(err))
		}),
	)
}
