package gallery

import (
	"context"
	"fmt"
	"strings"

	"github.com/jakartahash/hashcap/internal/imageprep"
	"github.com/jakartahash/hashcap/internal/silly"
	"github.com/jakartahash/hashcap/internal/vision"
	"go.uber.org/zap"
)

// Mode selects how a model reply becomes a caption.
type Mode string

const (
	// ModeClassic asks for a literal description and runs the word
	// substitution tables over it.
	ModeClassic Mode = "classic"
	// ModeWorse asks for a funny draft and has a text model make it worse.
	ModeWorse Mode = "worse"
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeClassic, ModeWorse:
		return m, nil
	default:
		return "", fmt.Errorf("unknown caption mode %q (want %q or %q)", s, ModeClassic, ModeWorse)
	}
}

// Placeholder is stored for images whose caption could not be generated.
func (m Mode) Placeholder() string {
	if m == ModeClassic {
		return "Behold: A photo that defies description. The camera was probably drunk too."
	}
	return "Behold. Evidence of questionable decisions."
}

const (
	describePrompt = `Describe this photo in one short, literal sentence. Answer with the sentence only. Start with "a ...".`

	draftPrompt = "Write a short, funny caption for a Hash House Harriers photo gallery. " +
		"Be slightly sarcastic and confidently wrong if needed. " +
		"Keep it casual."

	rewritePrompt = "Rewrite this into a silly Hash House Harriers photo caption. " +
		"Make it a bit more ridiculous, slightly sarcastic, and self-aware. " +
		"Do NOT be descriptive; prefer vibes over facts. " +
		"Max %d words. " +
		"Optional punchline to weave in: %s\n\n" +
		"Draft: %s\n" +
		"Caption:"
)

func rewriteRequest(draft, spice string) string {
	return fmt.Sprintf(rewritePrompt, silly.MaxWords, spice, draft)
}

// IsPlaceholder reports whether caption is the failure text of any mode.
func IsPlaceholder(caption string) bool {
	return caption == ModeClassic.Placeholder() || caption == ModeWorse.Placeholder()
}

// Result is the model's raw reply and the caption derived from it.
type Result struct {
	Raw     string
	Caption string
}

// Captioner turns one image file into a caption.
type Captioner struct {
	Mode   Mode
	Vision vision.Client
	// Rewriter runs the "make it worse" pass; nil reuses Vision.
	Rewriter vision.Client
	Silly    *silly.Sillifier
	MaxSide  int
	// Seed is forwarded to the model servers when non-zero.
	Seed   int64
	Logger *zap.Logger
}

func (c *Captioner) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

// Caption describes the image at path and post-processes the reply.
func (c *Captioner) Caption(ctx context.Context, path string) (Result, error) {
	img, err := imageprep.Load(path, c.MaxSide)
	if err != nil {
		return Result{}, err
	}

	if c.Mode == ModeClassic {
		raw, err := c.Vision.Complete(ctx, vision.Request{
			Prompt:  describePrompt,
			Image:   img,
			Options: vision.Options{MaxTokens: 50, Seed: c.Seed},
		})
		if err != nil {
			return Result{}, err
		}
		raw = silly.Tidy(raw)
		if raw == "" {
			return Result{}, fmt.Errorf("model %s returned an empty description", c.Vision.Model())
		}
		return Result{Raw: raw, Caption: c.Silly.MakeSilly(raw)}, nil
	}

	draft, err := c.Vision.Complete(ctx, vision.Request{
		Prompt: draftPrompt,
		Image:  img,
		Options: vision.Options{
			MaxTokens:     32,
			Temperature:   1.0,
			TopP:          0.95,
			RepeatPenalty: 1.05,
			Seed:          c.Seed,
		},
	})
	if err != nil {
		return Result{}, err
	}
	draft = silly.Tidy(draft)
	return Result{Raw: draft, Caption: c.makeWorse(ctx, draft)}, nil
}

// makeWorse rewrites draft and clamps it. A failed rewrite, or one that
// clamps to under two characters, falls back to the clamped draft.
func (c *Captioner) makeWorse(ctx context.Context, draft string) string {
	rewriter := c.Rewriter
	if rewriter == nil {
		rewriter = c.Vision
	}

	worse, err := rewriter.Complete(ctx, vision.Request{
		Prompt: rewriteRequest(draft, c.Silly.Spice()),
		Options: vision.Options{
			MaxTokens:     24,
			Temperature:   1.05,
			TopP:          0.92,
			RepeatPenalty: 1.05,
			Seed:          c.Seed,
		},
	})
	if err != nil {
		c.logger().Warn("rewrite failed, keeping draft", zap.String("model", rewriter.Model()), zap.Error(err))
	} else if final := silly.ClampWords(silly.Tidy(worse), silly.MaxWords); len(strings.TrimSpace(final)) >= 2 {
		return final
	}
	return silly.ClampWords(draft, silly.MaxWords)
}
