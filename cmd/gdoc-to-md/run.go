// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/phuslu/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mudcube/gdoc-to-md/internal/auth"
	"github.com/mudcube/gdoc-to-md/internal/container"
	"github.com/mudcube/gdoc-to-md/internal/convert"
	"github.com/mudcube/gdoc-to-md/internal/gdrive"
	"github.com/mudcube/gdoc-to-md/internal/htmlmd"
	"github.com/mudcube/gdoc-to-md/internal/httputil"
	"github.com/mudcube/gdoc-to-md/internal/logging"
	"github.com/mudcube/gdoc-to-md/internal/pandoc"
	"github.com/mudcube/gdoc-to-md/internal/pipeline"
	"github.com/mudcube/gdoc-to-md/internal/plan"
	"github.com/mudcube/gdoc-to-md/internal/report"
	"github.com/mudcube/gdoc-to-md/internal/walk"
	"github.com/mudcube/gdoc-to-md/pkg/types"
)

// errInterrupted is returned when a signal cut the run short.
var errInterrupted = errors.New("run interrupted")

func runConvert(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(viper.GetViper(), args[0])
	if err != nil {
		return err
	}
	if loadedSecrets.Apply(&cfg.Auth) {
		fmt.Fprintf(os.Stderr, "Using client credentials from %s\n", loadedSecrets.Dir)
	}

	logger := logging.New(cfg.LogLevel, os.Stderr)
	ctx := shutdownContext(cmd.Context(), logger)

	jsonOut := viper.GetBool(keyJSON)
	lines := io.Writer(os.Stdout)
	if jsonOut {
		lines = os.Stderr
	}

	summary, err := execute(ctx, cfg, lines, logger, func(r *report.Reporter) error {
		if jsonOut {
			return r.WriteJSON(os.Stdout)
		}
		r.Print(os.Stdout)
		return nil
	})
	if err != nil {
		return err
	}

	switch {
	case summary.HasFailures():
		return fmt.Errorf("%d file(s) failed", summary.Total.Failed)
	case summary.Interrupted:
		return errInterrupted
	}
	return nil
}

// execute runs one conversion pass over cfg.SourceDir. Per-file status
// lines go to lines; render is called with the finished reporter unless
// the tree held no placeholders. Only configuration problems are returned
// as errors.
func execute(ctx context.Context, cfg types.Config, lines io.Writer, logger *log.Logger, render func(*report.Reporter) error) (types.RunSummary, error) {
	walker, err := walk.New(cfg.SourceDir, walk.Filter{GdocOnly: cfg.Run.GdocOnly, GsheetOnly: cfg.Run.GsheetOnly}, logger)
	if err != nil {
		return types.RunSummary{}, &types.ConfigurationError{Setting: "source_dir", Err: err}
	}

	var converter convert.Converter
	if !cfg.Run.DryRun {
		converter, err = buildConverter(ctx, cfg, logger)
		if err != nil {
			return types.RunSummary{}, err
		}
	}

	reporter := report.New(lines, cfg.Run.DryRun, logger)
	logger.Info().Str("run_id", reporter.RunID()).Str("source", walker.Root()).
		Bool("dry_run", cfg.Run.DryRun).Int("limit", cfg.Run.Limit).Int("workers", cfg.Run.Workers).
		Msg("starting run")

	p := pipeline.New(walker, plan.StatIndex{}, converter, reporter, pipeline.Options{
		Flags:   plan.Flags{DryRun: cfg.Run.DryRun, SkipExisting: cfg.Run.SkipExisting},
		Limit:   cfg.Run.Limit,
		Workers: cfg.Run.Workers,
	}, logger)
	summary := p.Run(ctx)

	if summary.Total.Found == 0 && !summary.Interrupted {
		fmt.Fprintf(lines, "warning: No Google Drive files found in %s\n", cfg.SourceDir)
		return summary, nil
	}
	if err := render(reporter); err != nil {
		return summary, err
	}
	return summary, nil
}

// buildConverter authenticates against Drive and prepares the Docs and
// Sheets converters. A missing Docs converter does not abort the run: it
// is recorded so that every Doc fails with "converter unavailable" while
// Sheets continue.
func buildConverter(ctx context.Context, cfg types.Config, logger *log.Logger) (convert.Converter, error) {
	var (
		markdown    convert.MarkdownConverter
		unavailable error
	)
	if !cfg.Run.GsheetOnly {
		markdown, unavailable = probeMarkdown(ctx, cfg.Conversion, logger)
		if unavailable != nil {
			logger.Warn().Err(unavailable).Msg("docs converter unavailable")
		}
	}

	transport := httputil.NewTransport(cfg.Drive.RateLimit, cfg.Drive.MaxRetries, cfg.Drive.UserAgent, logger)
	httpClient, err := auth.NewProvider(cfg.Auth, transport, logger).Client(ctx)
	if err != nil {
		return nil, err
	}
	drive, err := gdrive.New(ctx, httpClient, cfg.Drive.ExportTimeout, logger)
	if err != nil {
		return nil, fmt.Errorf("creating Drive client: %w", err)
	}

	set := convert.Set{Sheets: convert.NewSheets(drive, logger)}
	set.Docs = convert.NewDocs(drive, markdown, convert.DocsOptions{
		ConvertedOn:       time.Now(),
		KeepIntermediates: cfg.Conversion.KeepIntermediates,
		Unavailable:       unavailable,
	}, logger)
	return set, nil
}

// prober is a DOCX to Markdown converter that can verify it works before
// the run starts.
type prober interface {
	convert.MarkdownConverter
	Name() string
	Probe(ctx context.Context) (string, error)
}

// probeMarkdown selects the Docs converter (the built-in HTML converter,
// pandoc in a container when an image is configured, or the local pandoc
// binary) and checks that it answers. The returned error wraps
// pandoc.ErrUnavailable.
func probeMarkdown(ctx context.Context, cfg types.ConversionConfig, logger *log.Logger) (convert.MarkdownConverter, error) {
	var p prober
	switch {
	case cfg.Converter == types.ConverterHTML:
		p = htmlmd.New(logger)
	case cfg.PandocImage != "":
		rt, err := container.Detect(ctx, cfg.ContainerRuntime)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", pandoc.ErrUnavailable, err)
		}
		p = pandoc.NewContainer(rt, cfg.PandocImage, cfg.ConvertTimeout)
	default:
		p = pandoc.New(cfg.Pandoc, cfg.ConvertTimeout)
	}

	v, err := p.Probe(ctx)
	if err != nil {
		return p, err
	}
	logger.Info().Str("converter", p.Name()).Str("version", v).Msg("docs converter ready")
	return p, nil
}
