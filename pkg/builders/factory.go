package builders

import (
	"github.com/jointcomp/jointcomp/pkg/logger"
	"github.com/jointcomp/jointcomp/pkg/plan"
	"github.com/jointcomp/jointcomp/pkg/types"
)

// BuilderFactory creates builders based on target type
type BuilderFactory struct {
	env    plan.Env
	tools  Tools
	log    logger.Logger
	runner CommandRunner
}

// NewBuilderFactory creates a new builder factory. A nil runner executes
// real commands.
func NewBuilderFactory(env plan.Env, tools Tools, log logger.Logger, runner CommandRunner) *BuilderFactory {
	return &BuilderFactory{env: env, tools: tools, log: log, runner: runner}
}

// CreateBuilder creates the appropriate builder for a step
func (f *BuilderFactory) CreateBuilder(step plan.Step) Builder {
	switch step.Type {
	case types.TargetTypeGccAsm:
		return NewGccAsmBuilder(step, f.env, f.tools, f.log, f.runner)

	case types.TargetTypeGccAsmX86:
		return NewGccAsmX86Builder(step, f.env, f.tools, f.log, f.runner)

	case types.TargetTypeLinkerScript:
		return NewLinkerScriptBuilder(step, f.env, f.tools, f.log, f.runner)

	case types.TargetTypeLinkerMap:
		return NewLinkerMapBuilder(step, f.env, f.tools, f.log, f.runner)

	default:
		return NewBaseBuilder(step, f.env, f.tools, f.log, f.runner)
	}
}
