package gallery

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// ErrNoImageDirs is returned when none of the configured folders exists.
var ErrNoImageDirs = errors.New("no image directories found, run 'hashcap prepare' first to process images")

// Runner captions folders one after another.
type Runner struct {
	Captioner *Captioner
	Logger    *zap.Logger
	// Generator is written into the caption file header.
	Generator string
	// Force recaptions images that already have a stored caption.
	Force  bool
	DryRun bool
}

// Summary counts the captions stored per folder name.
type Summary map[string]int

// Run processes every folder in order. Missing or empty folders are skipped
// with a warning, but at least one folder has to exist.
func (r *Runner) Run(ctx context.Context, folders []Folder) (Summary, error) {
	exists := false
	for _, f := range folders {
		if info, err := os.Stat(f.Dir); err == nil && info.IsDir() {
			exists = true
			break
		}
	}
	if !exists {
		return nil, ErrNoImageDirs
	}

	summary := Summary{}
	for _, f := range folders {
		captions, err := r.ProcessFolder(ctx, f)
		if err != nil {
			return summary, err
		}
		summary[f.Name] = len(captions)
	}
	return summary, nil
}

// ProcessFolder captions every image in f.Dir and writes f.Output.
// A failing image gets the mode's placeholder caption and never stops the
// folder; only cancellation or a write error does.
func (r *Runner) ProcessFolder(ctx context.Context, f Folder) (Captions, error) {
	log := r.Logger.With(zap.String("folder", f.Name))

	names, err := ListImages(f.Dir)
	if errors.Is(err, fs.ErrNotExist) {
		log.Warn("directory not found", zap.String("dir", f.Dir))
		return Captions{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list %s images: %w", f.Name, err)
	}
	if len(names) == 0 {
		log.Warn("no images found", zap.String("dir", f.Dir))
		return Captions{}, nil
	}

	existing := Captions{}
	if !r.Force {
		existing, err = ReadCaptions(f.Output)
		if err != nil {
			log.Warn("ignoring unreadable caption file", zap.Error(err))
			existing = Captions{}
		}
	}

	log.Info("processing images", zap.Int("count", len(names)))

	captions := make(Captions, len(names))
	for i, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		key := f.WebPath(name)
		entry := log.With(
			zap.String("image", name),
			zap.String("progress", fmt.Sprintf("%d/%d", i+1, len(names))))

		if caption, ok := existing[key]; ok && !IsPlaceholder(caption) {
			captions[key] = caption
			entry.Debug("keeping existing caption")
			continue
		}

		res, err := r.Captioner.Caption(ctx, filepath.Join(f.Dir, name))
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			entry.Error("captioning failed", zap.Error(err))
			captions[key] = r.Captioner.Mode.Placeholder()
			continue
		}
		captions[key] = res.Caption
		entry.Info("captioned", zap.String("raw", res.Raw), zap.String("caption", res.Caption))
	}

	if r.DryRun {
		log.Info("dry run, not writing captions", zap.String("output", f.Output))
		return captions, nil
	}
	if err := WriteCaptions(f.Output, f.Name, r.Generator, captions); err != nil {
		return nil, err
	}
	log.Info("saved captions", zap.String("output", f.Output), zap.Int("count", len(captions)))
	return captions, nil
}
