package prepare

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Magick shells out to ImageMagick 7.
type Magick struct {
	Path string
}

// FindMagick locates the magick binary on PATH.
func FindMagick() (*Magick, error) {
	path, err := exec.LookPath("magick")
	if err != nil {
		return nil, fmt.Errorf("ImageMagick not found, install it (e.g. brew install imagemagick): %w", err)
	}
	return &Magick{Path: path}, nil
}

// Args is the magick argument list for one conversion. The ">" geometry flag
// only ever shrinks.
func (m *Magick) Args(src, dst string, maxSize, quality int) []string {
	return []string{
		src,
		"-resize", fmt.Sprintf("%dx%d>", maxSize, maxSize),
		"-quality", strconv.Itoa(quality),
		dst,
	}
}

func (m *Magick) Convert(ctx context.Context, src, dst string, maxSize, quality int) error {
	out, err := exec.CommandContext(ctx, m.Path, m.Args(src, dst, maxSize, quality)...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("magick %s: %w: %s", src, err, strings.TrimSpace(string(out)))
	}
	return nil
}
