package vision

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/avast/retry-go/v4"
	"github.com/ollama/ollama/api"
	"github.com/ollama/ollama/envconfig"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Ollama sends requests to an Ollama server's chat endpoint.
type Ollama struct {
	api    *api.Client
	model  string
	logger *zap.Logger
}

// NewOllama connects to cfg.BaseURL, or to OLLAMA_HOST when that is empty.
func NewOllama(cfg Config, logger *zap.Logger) (*Ollama, error) {
	base := envconfig.Host()
	if cfg.BaseURL != "" {
		u, err := url.Parse(cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse ollama url %q: %w", cfg.BaseURL, err)
		}
		base = u
	}
	ol := api.NewClient(base, &http.Client{Timeout: cfg.Timeout})
	return &Ollama{api: ol, model: cfg.Model, logger: logger}, nil
}

func (o *Ollama) Model() string {
	return o.model
}

func ollamaOptions(opts Options) map[string]any {
	m := map[string]any{}
	if opts.MaxTokens > 0 {
		m["num_predict"] = opts.MaxTokens
	}
	m["temperature"] = opts.Temperature
	if opts.TopP > 0 {
		m["top_p"] = opts.TopP
	}
	if opts.RepeatPenalty > 0 {
		m["repeat_penalty"] = opts.RepeatPenalty
	}
	if opts.Seed != 0 {
		m["seed"] = opts.Seed
	}
	return m
}

// Complete runs one chat turn and returns the assistant's full reply.
func (o *Ollama) Complete(ctx context.Context, req Request) (string, error) {
	var msgs []api.Message
	if req.System != "" {
		msgs = append(msgs, api.Message{
			Role:    "system",
			Content: req.System,
		})
	}
	msg := api.Message{
		Role:    "user",
		Content: req.Prompt,
	}
	if req.Image != nil {
		msg.Images = []api.ImageData{req.Image}
	}
	msgs = append(msgs, msg)

	chat := &api.ChatRequest{
		Model:    o.model,
		Messages: msgs,
		Stream:   lo.ToPtr(false),
		Options:  ollamaOptions(req.Options),
	}

	return withRetry(ctx, o.logger, o.model, func() (string, error) {
		var response strings.Builder
		err := o.api.Chat(ctx, chat, func(resp api.ChatResponse) error {
			response.WriteString(resp.Message.Content)
			return nil
		})
		if err != nil {
			wrapped := fmt.Errorf("ollama chat with %s: %w", o.model, err)
			var status api.StatusError
			if errors.As(err, &status) && status.StatusCode < http.StatusInternalServerError {
				return "", retry.Unrecoverable(wrapped)
			}
			return "", wrapped
		}
		return response.String(), nil
	})
}
