package builders

import (
	"context"
	"fmt"
	"os"

	"github.com/jointcomp/jointcomp/pkg/logger"
	"github.com/jointcomp/jointcomp/pkg/plan"
)

// MapFile is the linker map written for LinkerMap targets
const MapFile = "entry.map"

// LinkerScriptBuilder hands a linker script to the final link
type LinkerScriptBuilder struct {
	*BaseBuilder
}

// NewLinkerScriptBuilder creates a builder for LinkerScript targets
func NewLinkerScriptBuilder(step plan.Step, env plan.Env, tools Tools, log logger.Logger, runner CommandRunner) *LinkerScriptBuilder {
	return &LinkerScriptBuilder{BaseBuilder: NewBaseBuilder(step, env, tools, log, runner)}
}

// Validate checks the script exists
func (b *LinkerScriptBuilder) Validate() error {
	if err := b.BaseBuilder.Validate(); err != nil {
		return err
	}
	if _, err := os.Stat(b.step.Source); err != nil {
		return fmt.Errorf("linker script of target %s: %w", b.step.Name, err)
	}
	return nil
}

// Build emits -T<script>
func (b *LinkerScriptBuilder) Build(ctx context.Context) (*Result, error) {
	return b.track(func() (*Result, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return &Result{
			Step:       b.step,
			Directives: []Directive{LinkArg("-T" + b.step.Source)},
		}, nil
	})
}

// LinkerMapBuilder asks the linker for a map of the final image
type LinkerMapBuilder struct {
	*BaseBuilder
}

// NewLinkerMapBuilder creates a builder for LinkerMap targets
func NewLinkerMapBuilder(step plan.Step, env plan.Env, tools Tools, log logger.Logger, runner CommandRunner) *LinkerMapBuilder {
	return &LinkerMapBuilder{BaseBuilder: NewBaseBuilder(step, env, tools, log, runner)}
}

// Build emits -Map=OUT/entry.map. The step's source is not read.
func (b *LinkerMapBuilder) Build(ctx context.Context) (*Result, error) {
	return b.track(func() (*Result, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		mapFile := b.outPath(MapFile)
		return &Result{
			Step:       b.step,
			Directives: []Directive{LinkArg("-Map=" + mapFile)},
			Artifacts:  []string{mapFile},
		}, nil
	})
}
