// Command extract runs the statement pipeline over local files and prints one
// JSON result per file, in argument order.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/merchant-statements/internal/bootstrap"
	"github.com/kirillkom/merchant-statements/internal/config"
	"github.com/kirillkom/merchant-statements/internal/core/domain"
	"github.com/kirillkom/merchant-statements/internal/observability/logging"
)

type fileResult struct {
	File   string                   `json:"file"`
	Result *domain.ExtractionResult `json:"result,omitempty"`
	Error  string                   `json:"error,omitempty"`
}

func main() {
	var (
		processor      = flag.String("processor", "", "processor name; skips detection")
		preferFallback = flag.Bool("prefer-fallback", false, "use OCR text even when the PDF has a text layer")
		concurrency    = flag.Int("concurrency", 4, "files extracted in parallel")
		ocrURL         = flag.String("ocr-url", "", "OCR service base URL (overrides OCR_URL)")
		pretty         = flag.Bool("pretty", false, "indent JSON output")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] statement.pdf [statement.xlsx ...]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.Load()
	if *preferFallback {
		cfg.ExtractPreferFallback = true
	}
	if *ocrURL != "" {
		cfg.OCRURL = *ocrURL
	}
	logger := logging.New(os.Stderr, "extract", cfg.LogLevel)

	pipeline, err := bootstrap.NewExtraction(cfg, bootstrap.Options{Logger: logger})
	if err != nil {
		logger.Error("bootstrap error", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	files := flag.Args()
	results := make([]fileResult, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, *concurrency))
	for i, path := range files {
		g.Go(func() error {
			res, err := pipeline.ExtractFile(gctx, path, *processor)
			if err != nil {
				results[i] = fileResult{File: path, Error: err.Error()}
				return nil
			}
			results[i] = fileResult{File: path, Result: &res}
			return nil
		})
	}
	_ = g.Wait()

	enc := json.NewEncoder(os.Stdout)
	if *pretty {
		enc.SetIndent("", "  ")
	}
	exitCode := 0
	for _, r := range results {
		if err := enc.Encode(r); err != nil {
			logger.Error("write result", "file", r.File, "error", err)
			os.Exit(1)
		}
		if r.Error != "" || (r.Result != nil && r.Result.Failed()) {
			exitCode = 1
		}
	}
	os.Exit(exitCode)
}
