package vision

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"

	"github.com/avast/retry-go/v4"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"
)

// OpenAI sends requests to any OpenAI-compatible chat completions endpoint
// (llama.cpp server, vLLM, LM Studio, the hosted API).
type OpenAI struct {
	client openai.Client
	model  string
	logger *zap.Logger
}

// NewOpenAI falls back to OPENAI_BASE_URL and OPENAI_API_KEY for empty
// cfg.BaseURL and cfg.APIKey.
func NewOpenAI(cfg Config, logger *zap.Logger) *OpenAI {
	// retries are handled by withRetry
	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	return &OpenAI{
		client: openai.NewClient(opts...),
		model:  cfg.Model,
		logger: logger,
	}
}

func (o *OpenAI) Model() string {
	return o.model
}

// dataURL embeds a JPEG payload for the image_url content part.
func dataURL(jpeg []byte) string {
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpeg)
}

func (o *OpenAI) params(req Request) openai.ChatCompletionNewParams {
	var msgs []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		msgs = append(msgs, openai.SystemMessage(req.System))
	}
	if req.Image != nil {
		msgs = append(msgs, openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
			openai.TextContentPart(req.Prompt),
			openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
				URL: dataURL(req.Image),
			}),
		}))
	} else {
		msgs = append(msgs, openai.UserMessage(req.Prompt))
	}

	p := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(o.model),
		Messages:    msgs,
		Temperature: openai.Float(req.Options.Temperature),
	}
	if req.Options.MaxTokens > 0 {
		p.MaxTokens = openai.Int(int64(req.Options.MaxTokens))
	}
	if req.Options.TopP > 0 {
		p.TopP = openai.Float(req.Options.TopP)
	}
	if req.Options.Seed != 0 {
		p.Seed = openai.Int(req.Options.Seed)
	}
	return p
}

// Complete runs one chat completion and returns the first choice.
func (o *OpenAI) Complete(ctx context.Context, req Request) (string, error) {
	params := o.params(req)
	return withRetry(ctx, o.logger, o.model, func() (string, error) {
		resp, err := o.client.Chat.Completions.New(ctx, params)
		if err != nil {
			wrapped := fmt.Errorf("openai chat with %s: %w", o.model, err)
			var apiErr *openai.Error
			if errors.As(err, &apiErr) && apiErr.StatusCode < http.StatusInternalServerError &&
				apiErr.StatusCode != http.StatusTooManyRequests {
				return "", retry.Unrecoverable(wrapped)
			}
			return "", wrapped
		}
		if len(resp.Choices) == 0 {
			return "", fmt.Errorf("openai chat with %s: no choices returned", o.model)
		}
		return resp.Choices[0].Message.Content, nil
	})
}
