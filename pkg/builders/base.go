// Package builders turns plan steps into native artifacts and link directives
package builders

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jointcomp/jointcomp/pkg/logger"
	"github.com/jointcomp/jointcomp/pkg/plan"
)

// ErrBuildFailed is wrapped by every builder failure
var ErrBuildFailed = errors.New("build failed")

// LogDir is where per-target logs are kept, relative to the output directory
const LogDir = ".jointcomp/logs"

// Tools names the external programs builders invoke
type Tools struct {
	CC      string `json:"cc" yaml:"cc"`
	AR      string `json:"ar" yaml:"ar"`
	Objcopy string `json:"objcopy" yaml:"objcopy"`
}

// DefaultTools returns the GNU toolchain names
func DefaultTools() Tools {
	return Tools{CC: "gcc", AR: "ar", Objcopy: "objcopy"}
}

// Builder builds one plan step
type Builder interface {
	Build(ctx context.Context) (*Result, error)
	Validate() error
	Step() plan.Step
}

// Result is what a successful build hands to the linker
type Result struct {
	Step       plan.Step
	Directives []Directive
	Artifacts  []string
	Duration   time.Duration
}

// CommandRunner executes one external command in dir, writing combined
// output to out
type CommandRunner interface {
	Run(ctx context.Context, dir string, out io.Writer, name string, args ...string) error
}

// ExecRunner runs commands with os/exec
type ExecRunner struct{}

// Run implements CommandRunner
func (ExecRunner) Run(ctx context.Context, dir string, out io.Writer, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdout = out
	cmd.Stderr = out
	return cmd.Run()
}

// BaseBuilder provides common functionality for all builders
type BaseBuilder struct {
	step   plan.Step
	Env    plan.Env
	Tools  Tools
	Logger logger.Logger
	Runner CommandRunner

	lastBuildTime time.Duration
	totalBuilds   int
	successBuilds int
	mu            sync.RWMutex
}

// NewBaseBuilder creates a new base builder
func NewBaseBuilder(step plan.Step, env plan.Env, tools Tools, log logger.Logger, runner CommandRunner) *BaseBuilder {
	if log == nil {
		log = logger.Discard()
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &BaseBuilder{
		step:   step,
		Env:    env,
		Tools:  tools,
		Logger: log.WithTarget(step.Name),
		Runner: runner,
	}
}

// Step returns the plan step this builder serves
func (b *BaseBuilder) Step() plan.Step {
	return b.step
}

// Validate checks the step can be built
func (b *BaseBuilder) Validate() error {
	if b.step.Name == "" {
		return fmt.Errorf("target %s has an empty name", b.step.Source)
	}
	if b.Env.OutDir == "" {
		return fmt.Errorf("no output directory for target %s", b.step.Name)
	}
	return nil
}

// Build runs the steps every builder shares: it only records stats, so
// non-assembly targets that only emit directives use it directly.
func (b *BaseBuilder) Build(ctx context.Context) (*Result, error) {
	return b.track(func() (*Result, error) {
		return &Result{Step: b.step}, nil
	})
}

// track times fn, counts the build and wraps failures
func (b *BaseBuilder) track(fn func() (*Result, error)) (*Result, error) {
	startTime := time.Now()
	res, err := fn()
	duration := time.Since(startTime)

	b.mu.Lock()
	b.lastBuildTime = duration
	b.totalBuilds++
	if err == nil {
		b.successBuilds++
	}
	b.mu.Unlock()

	if err != nil {
		b.Logger.Error("Build failed", logger.WithField("error", err))
		return nil, fmt.Errorf("%w on %s target %s: %w", ErrBuildFailed, b.step.Type, b.step.Name, err)
	}
	res.Duration = duration
	b.Logger.Success(fmt.Sprintf("Built in %s", duration.Round(time.Millisecond)))
	return res, nil
}

// GetLastBuildTime returns the last build duration
func (b *BaseBuilder) GetLastBuildTime() time.Duration {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastBuildTime
}

// GetSuccessRate returns the build success rate
func (b *BaseBuilder) GetSuccessRate() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.totalBuilds == 0 {
		return 1.0
	}
	return float64(b.successBuilds) / float64(b.totalBuilds)
}

// session is one build's log file plus captured output
type session struct {
	b      *BaseBuilder
	file   *os.File
	output bytes.Buffer
}

func (b *BaseBuilder) openSession() *session {
	s := &session{b: b}
	file, err := b.prepareLogFile()
	if err != nil {
		b.Logger.Warn(fmt.Sprintf("Failed to create log file: %v", err))
	}
	s.file = file
	s.log(fmt.Sprintf("\n=== Build Started at %s ===\n", time.Now().Format("2006-01-02 15:04:05")))
	return s
}

// exec runs one tool, teeing its output to the log file
func (s *session) exec(ctx context.Context, name string, args ...string) error {
	line := strings.Join(append([]string{name}, args...), " ")
	s.log(fmt.Sprintf("Executing: %s\n", line))
	s.b.Logger.Debug("Executing", logger.WithField("command", line))

	s.output.Reset()
	var out io.Writer = &s.output
	if s.file != nil {
		out = io.MultiWriter(&s.output, s.file)
	}

	if err := s.b.Runner.Run(ctx, s.b.Env.OutDir, out, name, args...); err != nil {
		if text := strings.TrimSpace(s.output.String()); text != "" {
			return fmt.Errorf("%s: %w\n%s", name, err, text)
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func (s *session) close(err error) {
	if err != nil {
		s.log(fmt.Sprintf("\n=== Build FAILED ===\nError: %v\n", err))
	} else {
		s.log("\n=== Build SUCCEEDED ===\n")
	}
	if s.file != nil {
		s.file.Close()
	}
}

func (s *session) log(message string) {
	if s.file != nil {
		s.file.WriteString(message)
	}
}

// prepareLogFile creates or opens the log file for this target
func (b *BaseBuilder) prepareLogFile() (*os.File, error) {
	logDir := filepath.Join(b.Env.OutDir, LogDir)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	logPath := filepath.Join(logDir, b.step.Name+".log")
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return logFile, nil
}

// outPath returns a path inside the output directory
func (b *BaseBuilder) outPath(name string) string {
	return filepath.Join(b.Env.OutDir, name)
}

// LogPath returns the log file of a target
func LogPath(outDir, name string) string {
	return filepath.Join(outDir, LogDir, name+".log")
}
