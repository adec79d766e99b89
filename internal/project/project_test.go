package project

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jointcomp/jointcomp/pkg/config"
	"github.com/jointcomp/jointcomp/pkg/mocks"
	"github.com/jointcomp/jointcomp/pkg/script"
)

func writeProject(t *testing.T, targets string) string {
	t.Helper()
	root := t.TempDir()
	for path, body := range map[string]string{
		"targets.jc":              targets,
		"src/entry.S":             "",
		"src/arch/x86_64/boot.S":  "",
		"src/arch/aarch64/boot.S": "",
		"include/regs.h":          "",
		"src/link-x86_64.lds":     "",
		"src/link-aarch64.lds":    "",
	} {
		full := filepath.Join(root, path)
		os.MkdirAll(filepath.Dir(full), 0755)
		os.WriteFile(full, []byte(body), 0644)
	}
	os.WriteFile(filepath.Join(root, config.FileName), []byte("version: \"1.0\"\narch: x86_64\nos: linux\n"), 0644)
	return root
}

const targets = `
GccAsm { "entry.S", "arch/$/boot.S" : "include/regs.h" };
LinkerScript { "link-$.lds" };
`

func TestProject_Plan(t *testing.T) {
	root := writeProject(t, targets)

	p, err := Open(root, "", nil, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if p.ConfigFile != filepath.Join(root, config.FileName) {
		t.Errorf("expected config file to be discovered, got %q", p.ConfigFile)
	}

	compiled, err := p.Plan()
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if len(compiled.Steps) != 3 {
		t.Fatalf("expected 3 steps, got %+v", compiled.Steps)
	}
	if got := compiled.Steps[1].Source; got != filepath.Join(root, "src", "arch", "x86_64", "boot.S") {
		t.Errorf("unexpected boot source %q", got)
	}
	if got := compiled.Steps[1].Dependencies; len(got) != 1 || got[0] != filepath.Join(root, "include", "regs.h") {
		t.Errorf("unexpected boot dependencies %v", got)
	}

	watch := p.WatchPaths(compiled)
	if watch[0] != p.ScriptPath() || watch[1] != p.ConfigFile || len(watch) != 5 {
		t.Errorf("unexpected watch paths %v", watch)
	}
}

func TestProject_Build(t *testing.T) {
	root := writeProject(t, targets)
	p, err := Open(root, "", nil, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	compiled, err := p.Plan()
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}

	var out bytes.Buffer
	report, err := p.Engine(&out, mocks.NewMockRunner()).Run(context.Background(), compiled)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !strings.Contains(out.String(), "jointcomp:link-lib=static=boot") {
		t.Errorf("missing boot library directive in:\n%s", out.String())
	}
	if report.LinkFile != filepath.Join(root, "build", "jointcomp_link.go") {
		t.Errorf("unexpected link file %q", report.LinkFile)
	}

	states, err := p.State().DiscoverStates()
	if err != nil || len(states) != 3 {
		t.Errorf("expected 3 recorded targets, got %d (%v)", len(states), err)
	}
}

func TestProject_Defaults(t *testing.T) {
	root := t.TempDir()
	p, err := Open(root, "", nil, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if p.ConfigFile != "" || p.Config.Script != "targets.jc" {
		t.Errorf("expected defaults, got %+v", p)
	}
	if _, err := p.Script(); err == nil {
		t.Error("expected error for missing targets script")
	}
}

func TestProject_Errors(t *testing.T) {
	root := writeProject(t, `Nope { "x.S" };`)
	p, err := Open(root, "", nil, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if _, err := p.Plan(); err == nil || !strings.Contains(err.Error(), "targets.jc") {
		t.Errorf("expected script error naming the file, got %v", err)
	}

	if _, err := Open(root, filepath.Join(root, "absent.yaml"), nil, nil); err == nil {
		t.Error("expected error for explicit missing config")
	}
}

func TestProject_EnvOverride(t *testing.T) {
	root := writeProject(t, targets)
	t.Setenv("JOINTCOMP_ARCH", "aarch64")

	p, err := Open(root, "", config.NewEnvViper(), nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	compiled, err := p.Plan()
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if got := compiled.Steps[2].Source; got != filepath.Join(root, "src", "link-aarch64.lds") {
		t.Errorf("expected arch override in sources, got %q", got)
	}
}

func TestScriptErrorType(t *testing.T) {
	root := writeProject(t, `GccAsm "x.S";`)
	p, _ := Open(root, "", nil, nil)
	_, err := p.Script()
	if !errors.Is(err, script.ErrExpectedBrace) {
		t.Errorf("expected brace error, got %v", err)
	}
}
