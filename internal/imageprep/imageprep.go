// Package imageprep loads gallery photos and re-encodes them into a payload
// every vision backend accepts.
package imageprep

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"os"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	DefaultMaxSide = 1280
	jpegQuality    = 90
)

// Load reads the image at path and returns it as JPEG bytes with the longer
// side scaled down to maxSide. Smaller images keep their size.
// A maxSide <= 0 disables scaling.
func Load(path string, maxSide int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %q: %w", path, err)
	}

	img = Fit(img, maxSide)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode %s image %q as jpeg: %w", format, path, err)
	}
	return buf.Bytes(), nil
}

// Fit scales img so that neither side exceeds maxSide, keeping aspect ratio.
func Fit(img image.Image, maxSide int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxSide <= 0 || (w <= maxSide && h <= maxSide) {
		return img
	}

	nw, nh := maxSide, maxSide
	if w >= h {
		nh = max(1, h*maxSide/w)
	} else {
		nw = max(1, w*maxSide/h)
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}
