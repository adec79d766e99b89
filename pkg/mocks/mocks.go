// Package mocks provides test doubles for the external tools builders run.
package mocks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrToolFailed is returned by MockRunner for a command set to fail
var ErrToolFailed = errors.New("exit status 1")

// MockRunner implements builders.CommandRunner without running anything
type MockRunner struct {
	mu       sync.Mutex
	commands []string
	failOn   string
	output   string
	touch    bool
}

// NewMockRunner creates a runner where every command succeeds
func NewMockRunner() *MockRunner {
	return &MockRunner{}
}

// Run records the command and fails when it mentions the failure pattern
func (m *MockRunner) Run(ctx context.Context, dir string, out io.Writer, name string, args ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	line := strings.Join(append([]string{name}, args...), " ")

	m.mu.Lock()
	m.commands = append(m.commands, line)
	failOn, output, touch := m.failOn, m.output, m.touch
	m.mu.Unlock()

	if failOn != "" && strings.Contains(line, failOn) {
		if output != "" {
			fmt.Fprintln(out, output)
		}
		return ErrToolFailed
	}
	if touch {
		return touchOutput(name, args)
	}
	return nil
}

// touchOutput creates the file a tool would produce: the archive for ar,
// the last argument for everything else
func touchOutput(name string, args []string) error {
	if len(args) == 0 {
		return nil
	}
	target := args[len(args)-1]
	if filepath.Base(name) == "ar" && len(args) >= 2 {
		target = args[1]
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	return os.WriteFile(target, nil, 0644)
}

// SetFailure makes every command containing pattern fail, printing output
func (m *MockRunner) SetFailure(pattern, output string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failOn = pattern
	m.output = output
}

// SetTouchOutputs makes successful commands create their output files
func (m *MockRunner) SetTouchOutputs(touch bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touch = touch
}

// Commands returns the recorded command lines in call order
func (m *MockRunner) Commands() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.commands...)
}

// Reset clears the recorded commands
func (m *MockRunner) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands = nil
}
