// Package engine runs a compiled plan. Steps build concurrently; directives
// are always reported in plan order.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/jointcomp/jointcomp/internal/state"
	"github.com/jointcomp/jointcomp/pkg/builders"
	"github.com/jointcomp/jointcomp/pkg/logger"
	"github.com/jointcomp/jointcomp/pkg/plan"
)

// DirectivePrefix starts every directive line on the output
const DirectivePrefix = "jointcomp:"

// ErrInvalidTarget is returned when a step fails validation before any build
var ErrInvalidTarget = errors.New("invalid target")

// Options configures an Engine
type Options struct {
	Env   plan.Env
	Tools builders.Tools
	// Parallelism bounds concurrent builders; 0 means one per step
	Parallelism int
	Logger      logger.Logger
	// Runner executes tools; nil runs real commands
	Runner builders.CommandRunner
	// Output receives directive lines; nil discards them
	Output io.Writer
	// LinkPackage names the package of the generated cgo link file;
	// empty skips the file
	LinkPackage string
	// State records per-target outcomes when set
	State *state.StateManager
}

// Report summarizes one run
type Report struct {
	RunID      string
	Started    time.Time
	Duration   time.Duration
	Results    []*builders.Result
	Directives []builders.Directive
	LinkFile   string
}

// Engine builds plans
type Engine struct {
	opts Options
}

// New creates an engine
func New(opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	if opts.Output == nil {
		opts.Output = io.Discard
	}
	return &Engine{opts: opts}
}

// Validate checks every step without building anything
func (e *Engine) Validate(p *plan.Plan) error {
	factory := builders.NewBuilderFactory(e.opts.Env, e.opts.Tools, e.opts.Logger, e.opts.Runner)
	_, err := e.prepare(factory, p)
	return err
}

func (e *Engine) prepare(factory *builders.BuilderFactory, p *plan.Plan) ([]builders.Builder, error) {
	list := make([]builders.Builder, len(p.Steps))
	var errs []error
	for i, step := range p.Steps {
		b := factory.CreateBuilder(step)
		if err := b.Validate(); err != nil {
			errs = append(errs, err)
		}
		list[i] = b
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTarget, err)
	}
	return list, nil
}

// Run builds every step of p and emits the collected directives
func (e *Engine) Run(ctx context.Context, p *plan.Plan) (*Report, error) {
	report := &Report{RunID: uuid.NewString(), Started: time.Now()}
	log := e.opts.Logger.WithFields(logger.WithField("run", report.RunID[:8]))

	factory := builders.NewBuilderFactory(e.opts.Env, e.opts.Tools, log, e.opts.Runner)
	list, err := e.prepare(factory, p)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(e.opts.Env.OutDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	log.Info(fmt.Sprintf("Building %d target(s)", len(list)))

	results := make([]*builders.Result, len(list))
	group, gctx := NewSafeGroup(ctx, log)
	limit := e.opts.Parallelism
	if limit <= 0 {
		limit = len(list)
	}
	group.SetLimit(limit)

	for i, b := range list {
		group.Go(func() error {
			res, err := e.build(gctx, log, report.RunID, b)
			results[i] = res
			return err
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	report.Results = results
	for _, dir := range p.SearchPaths {
		report.Directives = append(report.Directives, builders.LinkSearch(dir))
	}
	for _, res := range results {
		report.Directives = append(report.Directives, res.Directives...)
	}

	for _, d := range report.Directives {
		if _, err := fmt.Fprintln(e.opts.Output, DirectivePrefix+d.String()); err != nil {
			return nil, fmt.Errorf("failed to write directives: %w", err)
		}
	}

	if e.opts.LinkPackage != "" {
		path, err := WriteLinkFile(e.opts.Env.OutDir, e.opts.LinkPackage, report.Directives)
		if err != nil {
			return nil, err
		}
		report.LinkFile = path
	}

	report.Duration = time.Since(report.Started)
	log.Success(fmt.Sprintf("Run completed in %s", report.Duration.Round(time.Millisecond)))
	return report, nil
}

func (e *Engine) build(ctx context.Context, log logger.Logger, runID string, b builders.Builder) (*builders.Result, error) {
	step := b.Step()
	if e.opts.State != nil {
		if err := e.opts.State.MarkBuilding(step.Name, step.Type, step.Source, runID); err != nil {
			log.Warn("Failed to record state", logger.WithField("error", err))
		}
	}

	res, err := b.Build(ctx)

	if e.opts.State != nil {
		out := state.Outcome{RunID: runID, Err: err}
		if res != nil {
			out.Duration = res.Duration
			out.Artifacts = res.Artifacts
		}
		if serr := e.opts.State.RecordOutcome(step.Name, out); serr != nil {
			log.Warn("Failed to record state", logger.WithField("error", serr))
		}
	}
	return res, err
}
