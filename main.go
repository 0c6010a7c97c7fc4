package main

import (
	"bufio"
	"context"
	_ "embed"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/alexflint/go-arg"
	"github.com/jakartahash/hashcap/internal/gallery"
	"github.com/jakartahash/hashcap/internal/imageprep"
	"github.com/jakartahash/hashcap/internal/prepare"
	"github.com/jakartahash/hashcap/internal/silly"
	"github.com/jakartahash/hashcap/internal/vision"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func init() {
	loadEnv()
}

func loadEnv() {
	env := ".env"
	if len(os.Args) > 2 && os.Args[1] == "--env" {
		env = os.Args[2]
		os.Args = append([]string{os.Args[0]}, os.Args[3:]...)
	}
	if err := loadEnvFile(env); err != nil {
		panic(err)
	}
}

// loadEnvFile copies KEY=VALUE lines into the process environment.
// A missing file is not an error.
func loadEnvFile(env string) error {
	file, err := os.Open(env)
	if err != nil {
		// Silently ignore if the file doesn't exist
		return nil
	}
	defer func(file *os.File) {
		_ = file.Close()
	}(file)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if equal := strings.Index(line, "="); equal >= 0 {
			if key := strings.TrimSpace(line[:equal]); len(key) > 0 {
				value := strings.Trim(strings.TrimSpace(line[equal+1:]), `"'`)
				if err := os.Setenv(key, value); err != nil {
					return err
				}
			}
		}
	}
	return scanner.Err()
}

type captionsCmd struct {
	Root         string        `arg:"--root,-r" env:"HASHCAP_ROOT" help:"Site root containing assets/img and _data" default:"."`
	Mode         string        `arg:"--mode" env:"HASHCAP_MODE" help:"classic (literal description + word swaps) or worse (funny draft + rewrite pass)" default:"worse"`
	Backend      string        `arg:"--backend,-b" env:"HASHCAP_BACKEND" help:"Model server: ollama or openai" default:"ollama"`
	URL          string        `arg:"--url" env:"HASHCAP_URL" help:"Model server URL (defaults to OLLAMA_HOST or OPENAI_BASE_URL)"`
	APIKey       string        `arg:"--api-key" env:"OPENAI_API_KEY" help:"API key for the openai backend"`
	Model        string        `arg:"--model,-m" env:"HASHCAP_MODEL" help:"The vision model that describes the images (like \"qwen2.5vl\" or \"llava\")" default:"qwen2.5vl"`
	RewriteModel string        `arg:"--rewrite-model" env:"HASHCAP_REWRITE_MODEL" help:"Text model for the rewrite pass (defaults to --model)"`
	MaxSide      int           `arg:"--max-side" help:"Downscale images so the longer side fits before upload" default:"1280"`
	Timeout      time.Duration `arg:"--timeout" env:"HASHCAP_TIMEOUT" help:"Per request timeout" default:"5m"`
	Seed         int64         `arg:"--seed" env:"HASHCAP_SEED" help:"Seed for reproducible captions (0 picks one from the clock)"`
	Force        bool          `arg:"--force,-f" help:"Also caption images that already have a stored caption"`
	DryRun       bool          `arg:"--dry-run,-n" help:"Print captions without writing the caption files"`
}

type prepareCmd struct {
	Source  string `arg:"--source,-s" help:"Folder with the original photos" default:"_source/img"`
	Out     string `arg:"--out,-o" help:"Folder for the WebP output" default:"assets/img"`
	MaxSize int    `arg:"--max-size" help:"Longest side in pixels" default:"1280"`
	Quality int    `arg:"--quality,-q" help:"WebP quality" default:"80"`
}

type cmdArgs struct {
	Captions *captionsCmd `arg:"subcommand:captions" help:"Generate silly captions for the headline and gallery images"`
	Prepare  *prepareCmd  `arg:"subcommand:prepare" help:"Convert source photos into date-named WebP images"`
	Verbose  bool         `arg:"--verbose,-v" env:"HASHCAP_VERBOSE" help:"Enable debug logging"`
}

const appName = "hashcap"

//go:embed .version
var fullVersion string

func (cmdArgs) Version() string {
	return appName + " " + strings.TrimSpace(fullVersion)
}

func (cmdArgs) Description() string {
	return "Silly photo captions for the hash gallery. On on."
}

func newLogger(verbose bool) (*zap.Logger, error) {
	config := zap.NewDevelopmentConfig()
	config.DisableStacktrace = true
	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	config.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if verbose {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return config.Build()
}

func main() {
	var args cmdArgs

	p := arg.MustParse(&args)
	if p.Subcommand() == nil {
		p.Fail("missing command: captions or prepare")
	}

	logger, err := newLogger(args.Verbose)
	if err != nil {
		fmt.Printf("Error: %v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)

	switch {
	case args.Captions != nil:
		err = runCaptions(ctx, args.Captions, logger)
	case args.Prepare != nil:
		err = runPrepare(ctx, args.Prepare, logger)
	}
	stop()

	if err != nil {
		logger.Error("aborting", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}

// newCaptioner wires the model clients for cmd.
func newCaptioner(cmd *captionsCmd, logger *zap.Logger) (*gallery.Captioner, error) {
	mode, err := gallery.ParseMode(cmd.Mode)
	if err != nil {
		return nil, err
	}

	cfg := vision.Config{
		Backend: cmd.Backend,
		Model:   cmd.Model,
		BaseURL: cmd.URL,
		APIKey:  cmd.APIKey,
		Timeout: cmd.Timeout,
	}
	describer, err := vision.New(cfg, logger)
	if err != nil {
		return nil, err
	}

	var rewriter vision.Client
	if mode == gallery.ModeWorse && cmd.RewriteModel != "" && cmd.RewriteModel != cmd.Model {
		cfg.Model = cmd.RewriteModel
		if rewriter, err = vision.New(cfg, logger); err != nil {
			return nil, err
		}
	}

	seed := uint64(cmd.Seed)
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	logger.Debug("caption settings",
		zap.String("mode", string(mode)),
		zap.String("backend", cmd.Backend),
		zap.String("model", cmd.Model),
		zap.Uint64("seed", seed))

	return &gallery.Captioner{
		Mode:     mode,
		Vision:   describer,
		Rewriter: rewriter,
		Silly:    silly.New(seed),
		MaxSide:  lo.Ternary(cmd.MaxSide > 0, cmd.MaxSide, imageprep.DefaultMaxSide),
		Seed:     cmd.Seed,
		Logger:   logger,
	}, nil
}

// generator is the provenance line written into each caption file.
func generator(c *gallery.Captioner) string {
	models := c.Vision.Model()
	if c.Rewriter != nil {
		models += " + " + c.Rewriter.Model()
	}
	return fmt.Sprintf("%s using %s (%s mode)", appName, models, c.Mode)
}

func runCaptions(ctx context.Context, cmd *captionsCmd, logger *zap.Logger) error {
	captioner, err := newCaptioner(cmd, logger)
	if err != nil {
		return err
	}

	runner := &gallery.Runner{
		Captioner: captioner,
		Logger:    logger,
		Generator: generator(captioner),
		Force:     cmd.Force,
		DryRun:    cmd.DryRun,
	}
	summary, err := runner.Run(ctx, gallery.DefaultFolders(cmd.Root))
	if err != nil {
		return err
	}

	logger.Info("caption generation complete",
		zap.Int("headline", summary["headline"]),
		zap.Int("gallery", summary["gallery"]))
	return nil
}

func runPrepare(ctx context.Context, cmd *prepareCmd, logger *zap.Logger) error {
	magick, err := prepare.FindMagick()
	if err != nil {
		return err
	}
	n, err := prepare.Run(ctx, prepare.Options{
		SourceDir: cmd.Source,
		OutputDir: cmd.Out,
		MaxSize:   cmd.MaxSize,
		Quality:   cmd.Quality,
	}, magick, logger)
	if err != nil {
		return err
	}
	logger.Info("done", zap.Int("processed", n), zap.String("output", cmd.Out))
	return nil
}
