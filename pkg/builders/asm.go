package builders

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jointcomp/jointcomp/pkg/logger"
	"github.com/jointcomp/jointcomp/pkg/plan"
)

// AsmBuilder assembles a source with the C compiler driver and archives the
// object into lib<name>.a
type AsmBuilder struct {
	*BaseBuilder
	// retarget converts a 32-bit object to elf64-x86-64 before archiving
	retarget bool
}

// NewGccAsmBuilder creates a builder for GccAsm targets
func NewGccAsmBuilder(step plan.Step, env plan.Env, tools Tools, log logger.Logger, runner CommandRunner) *AsmBuilder {
	return &AsmBuilder{BaseBuilder: NewBaseBuilder(step, env, tools, log, runner)}
}

// NewGccAsmX86Builder creates a builder for GccAsmX86 targets
func NewGccAsmX86Builder(step plan.Step, env plan.Env, tools Tools, log logger.Logger, runner CommandRunner) *AsmBuilder {
	return &AsmBuilder{BaseBuilder: NewBaseBuilder(step, env, tools, log, runner), retarget: true}
}

// Validate checks the source exists and the tools are named
func (b *AsmBuilder) Validate() error {
	if err := b.BaseBuilder.Validate(); err != nil {
		return err
	}
	if b.Tools.CC == "" || b.Tools.AR == "" {
		return fmt.Errorf("no compiler or archiver configured for target %s", b.step.Name)
	}
	if b.retarget && b.Tools.Objcopy == "" {
		return fmt.Errorf("no objcopy configured for target %s", b.step.Name)
	}
	if _, err := os.Stat(b.step.Source); err != nil {
		return fmt.Errorf("source of target %s: %w", b.step.Name, err)
	}
	return nil
}

// Library returns the archive path this builder produces
func (b *AsmBuilder) Library() string {
	return b.outPath("lib" + b.step.Name + ".a")
}

// Build assembles, optionally retargets, and archives
func (b *AsmBuilder) Build(ctx context.Context) (*Result, error) {
	return b.track(func() (res *Result, err error) {
		if err := os.MkdirAll(b.Env.OutDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}

		s := b.openSession()
		defer func() { s.close(err) }()

		object := b.outPath(b.step.Name + ".o")
		compiled := object
		if b.retarget {
			compiled = b.outPath(b.step.Name + "_.o")
		}

		args := []string{"-c"}
		if b.retarget {
			args = append(args, "-m32")
		}
		args = append(args, b.includeFlags()...)
		args = append(args, b.step.Source, "-o", compiled)
		if err := s.exec(ctx, b.Tools.CC, args...); err != nil {
			return nil, err
		}

		if b.retarget {
			if err := s.exec(ctx, b.Tools.Objcopy, "-O", "elf64-x86-64", compiled, object); err != nil {
				return nil, err
			}
		}

		library := b.Library()
		if err := s.exec(ctx, b.Tools.AR, "crus", library, object); err != nil {
			return nil, err
		}

		directives := []Directive{LinkLib(b.step.Name), RerunIfChanged(b.step.Source)}
		for _, dep := range b.step.Dependencies {
			directives = append(directives, RerunIfChanged(dep))
		}
		artifacts := []string{object, library}
		if compiled != object {
			artifacts = append(artifacts, compiled)
		}
		return &Result{
			Step:       b.step,
			Directives: directives,
			Artifacts:  artifacts,
		}, nil
	})
}

// includeFlags adds each dependency's directory to the include path, once
func (b *AsmBuilder) includeFlags() []string {
	seen := make(map[string]bool)
	var flags []string
	for _, dep := range b.step.Dependencies {
		dir := filepath.Dir(dep)
		if seen[dir] {
			continue
		}
		seen[dir] = true
		flags = append(flags, "-I"+dir)
	}
	return flags
}
