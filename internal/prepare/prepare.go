// Package prepare converts camera and chat-app photos into date-named,
// web-sized WebP files for the gallery folders.
package prepare

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

const (
	DefaultMaxSize = 1280
	DefaultQuality = 80

	// UnknownDate groups files whose names carry no date.
	UnknownDate = "unknown-date"
)

var sourceExts = []string{".jpg", ".jpeg", ".heic", ".png"}

var datePatterns = []struct {
	re     *regexp.Regexp
	layout func(m []string) string
}{
	// 20160327_155351_HDR.jpg
	{regexp.MustCompile(`^(\d{4})(\d{2})(\d{2})`), ymd},
	// 2017-09-03 11.41.52-1.jpg
	{regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})`), whole},
	// IMG-20220827-WA0020.jpg
	{regexp.MustCompile(`(?:IMG|VID)-(\d{4})(\d{2})(\d{2})`), ymd},
	// WhatsApp Image 2019-08-19 at 14.21.49.jpeg
	{regexp.MustCompile(`WhatsApp.*(\d{4}-\d{2}-\d{2})`), whole},
}

func ymd(m []string) string   { return m[1] + "-" + m[2] + "-" + m[3] }
func whole(m []string) string { return m[1] }

// ExtractDate returns the YYYY-MM-DD date encoded in a photo's file name,
// or UnknownDate.
func ExtractDate(filename string) string {
	for _, p := range datePatterns {
		if m := p.re.FindStringSubmatch(filename); m != nil {
			return p.layout(m)
		}
	}
	return UnknownDate
}

// Job converts Source into OutputName.
type Job struct {
	Source     string
	Date       string
	OutputName string
}

// Plan orders sources by the date in their names and numbers them per date:
// 2019-08-19-001.webp, 2019-08-19-002.webp, ...
// Sources with the same date keep their input order.
func Plan(sources []string) []Job {
	jobs := lo.Map(sources, func(src string, _ int) Job {
		return Job{Source: src, Date: ExtractDate(filepath.Base(src))}
	})
	slices.SortStableFunc(jobs, func(a, b Job) int {
		return strings.Compare(a.Date, b.Date)
	})

	counts := map[string]int{}
	for i := range jobs {
		counts[jobs[i].Date]++
		jobs[i].OutputName = fmt.Sprintf("%s-%03d.webp", jobs[i].Date, counts[jobs[i].Date])
	}
	return jobs
}

// FindSources lists the convertible photos directly inside dir, matching
// extensions case-insensitively, sorted by name.
func FindSources(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	files := lo.FilterMap(entries, func(e os.DirEntry, _ int) (string, bool) {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		return filepath.Join(dir, e.Name()), !e.IsDir() && slices.Contains(sourceExts, ext)
	})
	slices.Sort(files)
	return files, nil
}

// Converter resizes src into the WebP file dst.
type Converter interface {
	Convert(ctx context.Context, src, dst string, maxSize, quality int) error
}

// Options configures a prepare run.
type Options struct {
	SourceDir string
	OutputDir string
	MaxSize   int
	Quality   int
}

// Run converts every source photo. A failed conversion is logged and
// skipped; the returned count includes only successful ones.
func Run(ctx context.Context, opts Options, conv Converter, logger *zap.Logger) (int, error) {
	sources, err := FindSources(opts.SourceDir)
	if err != nil {
		return 0, fmt.Errorf("failed to list %q: %w", opts.SourceDir, err)
	}
	if len(sources) == 0 {
		logger.Info("no images found", zap.String("dir", opts.SourceDir))
		return 0, nil
	}
	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create %q: %w", opts.OutputDir, err)
	}

	logger.Info("processing images",
		zap.String("from", opts.SourceDir),
		zap.String("to", opts.OutputDir),
		zap.Int("max_size", opts.MaxSize),
		zap.Int("quality", opts.Quality))

	jobs := Plan(sources)
	done := 0
	for i, job := range jobs {
		if err := ctx.Err(); err != nil {
			return done, err
		}
		logger.Info("converting",
			zap.String("progress", fmt.Sprintf("%d/%d", i+1, len(jobs))),
			zap.String("source", filepath.Base(job.Source)),
			zap.String("output", job.OutputName))

		dst := filepath.Join(opts.OutputDir, job.OutputName)
		if err := conv.Convert(ctx, job.Source, dst, opts.MaxSize, opts.Quality); err != nil {
			logger.Error("conversion failed", zap.String("source", job.Source), zap.Error(err))
			continue
		}
		done++
	}
	return done, nil
}
