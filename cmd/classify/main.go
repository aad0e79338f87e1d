// Command classify analyzes a single image file and prints the finding.
//
// Exit status is 0 for a positive finding, 1 when the image is not indicative
// or yields no classification, and 2 when the image or model cannot be used.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/example/cancer-check/internal/classifier"
	"github.com/example/cancer-check/internal/config"
	"github.com/example/cancer-check/internal/decision"
	"github.com/example/cancer-check/internal/imageprocessor"
	"github.com/example/cancer-check/internal/logging"
)

const (
	exitPositive = 0
	exitNegative = 1
	exitFailure  = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer, opts ...classifier.Option) int {
	fs := flag.NewFlagSet("classify", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", os.Getenv("CONFIG_FILE"), "path to a YAML config file")
	assetsDir := fs.String("assets", "", "directory holding the model artifact")
	modelName := fs.String("model", "", "model artifact file name")
	verbose := fs.Bool("v", false, "verbose logging")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: classify [flags] <image>")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return exitFailure
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return exitFailure
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(stderr, "config:", err)
		return exitFailure
	}
	if *assetsDir != "" {
		cfg.Classifier.AssetsDir = *assetsDir
	}
	if *modelName != "" {
		cfg.Classifier.ModelName = *modelName
	}

	logOpts := cfg.LogOptions()
	logOpts.Level = "error"
	if *verbose {
		logOpts.Level = "debug"
	}
	logger, err := logging.NewLogger(logOpts)
	if err != nil {
		fmt.Fprintln(stderr, "logger:", err)
		return exitFailure
	}
	defer logger.Sync() //nolint:errcheck

	svc, err := classifier.New(cfg.ClassifierSettings(), cfg.Classifier.AssetsDir, logger, opts...)
	if err != nil {
		logger.Debug("classifier will retry initialization", zap.Error(err))
	}
	defer svc.Close()

	src := imageprocessor.FileSource(fs.Arg(0))
	result, err := svc.Classify(context.Background(), src)
	return report(cfg.Policy().Evaluate(result, err, src), stdout, stderr)
}

func report(d decision.Decision, stdout, stderr io.Writer) int {
	switch d.Kind {
	case decision.Positive:
		fmt.Fprintln(stdout, d.Finding.Summary())
		return exitPositive
	case decision.NotIndicative, decision.NoClassifications:
		fmt.Fprintln(stdout, d.Message)
		return exitNegative
	default:
		fmt.Fprintln(stderr, d.Message)
		return exitFailure
	}
}
