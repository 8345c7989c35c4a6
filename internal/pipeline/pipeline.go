// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline drives a run: every placeholder the walker yields is
// planned, admitted against the --limit budget, converted or previewed,
// and handed to the reporter. Per-file failures become Results and never
// stop the run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/phuslu/log"
	"golang.org/x/sync/errgroup"

	"github.com/mudcube/gdoc-to-md/internal/convert"
	"github.com/mudcube/gdoc-to-md/internal/plan"
	"github.com/mudcube/gdoc-to-md/internal/report"
	"github.com/mudcube/gdoc-to-md/internal/walk"
	"github.com/mudcube/gdoc-to-md/pkg/types"
)

// Source yields placeholders in traversal order. *walk.Walker implements it.
type Source interface {
	Walk(ctx context.Context) iter.Seq2[types.SourceFile, error]
}

// Options shape a run.
type Options struct {
	Flags plan.Flags

	// Limit caps CONVERT/PREVIEW decisions; zero is unlimited.
	Limit int

	// Workers is the number of concurrent conversions; values below 2 run
	// each file to completion before the next is planned. Results reach
	// the reporter in walk order either way.
	Workers int
}

// Pipeline wires the run's components together.
type Pipeline struct {
	source    Source
	outputs   plan.OutputIndex
	converter convert.Converter
	reporter  *report.Reporter
	opts      Options
	logger    *log.Logger
}

// New returns a Pipeline. converter may be nil for dry runs, which never
// convert.
func New(source Source, outputs plan.OutputIndex, converter convert.Converter, reporter *report.Reporter, opts Options, logger *log.Logger) *Pipeline {
	return &Pipeline{
		source:    source,
		outputs:   outputs,
		converter: converter,
		reporter:  reporter,
		opts:      opts,
		logger:    logger,
	}
}

var errNoConverter = errors.New("no converter configured")

// Run processes the whole tree and returns the summary. When ctx is
// canceled the walk stops between files, in-flight conversions are
// reported as canceled, and the summary is marked interrupted.
func (p *Pipeline) Run(ctx context.Context) types.RunSummary {
	start := time.Now()

	// Each file gets a slot queued in walk order; the reporter waits on
	// slots in turn, so concurrent conversions are still reported in order.
	order := make(chan chan types.Result, max(p.opts.Workers, 1))
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for slot := range order {
			p.reporter.Add(<-slot)
		}
	}()
	emit := func(res types.Result) {
		slot := make(chan types.Result, 1)
		slot <- res
		order <- slot
	}

	var g errgroup.Group
	if p.opts.Workers > 1 {
		g.SetLimit(p.opts.Workers)
	}

	budget := plan.NewBudget(p.opts.Limit)
	// Placeholders differing only in extension case share an output path;
	// the first in walk order owns it.
	claimed := map[string]string{}
	moreSkipsPossible := p.opts.Flags.SkipExisting && !p.opts.Flags.DryRun

	for sf, err := range p.source.Walk(ctx) {
		if err != nil {
			if res, ok := p.walkFailure(sf, err, budget); ok {
				emit(res)
			}
			continue
		}

		d := plan.Plan(sf, p.outputs, p.opts.Flags)
		if first, taken := claimed[d.OutputPath]; taken {
			if !budget.Exhausted() {
				emit(types.Failed(sf, types.FailureCollision,
					fmt.Errorf("output %s is already produced by %s", d.OutputPath, first), 0))
			}
			continue
		}
		if !budget.Admit(d) {
			p.logger.Debug().Str("file", sf.RelPath).Int("limit", p.opts.Limit).Msg("limit reached, not processing")
			if !moreSkipsPossible {
				break
			}
			continue
		}
		claimed[d.OutputPath] = sf.RelPath

		switch d.Action {
		case types.ActionSkip:
			emit(types.Result{Source: sf, Status: types.StatusSkipped, Reason: d.Reason, OutputPath: d.OutputPath})
		case types.ActionPreview:
			emit(types.Result{Source: sf, Status: types.StatusPreviewed, Reason: d.Reason, OutputPath: d.OutputPath})
		case types.ActionConvert:
			if p.opts.Workers > 1 {
				slot := make(chan types.Result, 1)
				order <- slot
				g.Go(func() error {
					slot <- p.convert(ctx, d)
					return nil
				})
				continue
			}
			emit(p.convert(ctx, d))
		}
	}

	_ = g.Wait()
	close(order)
	<-drained

	if ctx.Err() != nil {
		p.reporter.MarkInterrupted()
		p.logger.Warn().Str("run_id", p.reporter.RunID()).Msg("run interrupted")
	}
	p.logger.Info().Str("run_id", p.reporter.RunID()).Int("admitted", budget.Used()).
		Dur("elapsed", time.Since(start)).Msg("run finished")
	return p.reporter.Summary()
}

func (p *Pipeline) convert(ctx context.Context, d types.Decision) types.Result {
	if p.converter == nil {
		return types.Failed(d.Source, types.FailureConversion, errNoConverter, 0)
	}
	if err := ctx.Err(); err != nil {
		return types.Failed(d.Source, types.FailureCanceled, err, 0)
	}
	return p.converter.Convert(ctx, d)
}

// walkFailure turns a walker error into a Result. Unparseable placeholders
// never reach a decision, so once the budget is spent they are dropped
// like any other file past the limit.
func (p *Pipeline) walkFailure(sf types.SourceFile, err error, budget *plan.Budget) (types.Result, bool) {
	var perr *walk.PlaceholderError
	if errors.As(err, &perr) {
		if budget.Exhausted() {
			return types.Result{}, false
		}
		return types.Failed(sf, types.FailurePlaceholder, err, 0), true
	}
	return types.Failed(sf, types.FailureWalk, err, 0), true
}
