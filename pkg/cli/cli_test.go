package cli_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jointcomp/jointcomp/pkg/builders"
	"github.com/jointcomp/jointcomp/pkg/cli"
	"github.com/jointcomp/jointcomp/pkg/config"
	"github.com/jointcomp/jointcomp/pkg/mocks"
	"github.com/jointcomp/jointcomp/pkg/script"
)

func run(t *testing.T, root string, runner builders.CommandRunner, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cfg := cli.NewConfig()
	cfg.Version = "1.2.3"
	c := cli.NewCLIWithOutput(cfg, &out, &errOut)
	if runner != nil {
		c.SetRunner(runner)
	}
	err := c.Execute(append([]string{"--root", root}, args...))
	return out.String(), errOut.String(), err
}

// initProject runs init and adds the sources the starter script names
func initProject(t *testing.T) string {
	t.Helper()
	t.Setenv("JOINTCOMP_ARCH", "x86_64")
	t.Setenv("JOINTCOMP_OS", "linux")
	t.Setenv("JOINTCOMP_NOTIFICATIONS_ENABLED", "false")

	root := t.TempDir()
	if _, _, err := run(t, root, nil, "init"); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	os.MkdirAll(filepath.Join(root, "src"), 0755)
	os.WriteFile(filepath.Join(root, "src", "entry.S"), []byte(".globl _start\n"), 0644)
	os.WriteFile(filepath.Join(root, "src", "link-x86_64.lds"), []byte("SECTIONS {}\n"), 0644)
	return root
}

func TestInit(t *testing.T) {
	root := t.TempDir()

	out, _, err := run(t, root, nil, "init", "--template")
	if err != nil {
		t.Fatalf("init failed: %v", err)
	}
	if !strings.Contains(out, "Created configuration") {
		t.Errorf("unexpected output %q", out)
	}

	cfg, err := config.NewManager().LoadConfig(filepath.Join(root, config.FileName))
	if err != nil {
		t.Fatalf("written config does not load: %v", err)
	}
	if cfg.Template != "build.jct" {
		t.Errorf("expected template in config, got %q", cfg.Template)
	}
	for _, name := range []string{"targets.jc", "build.jct"} {
		if _, err := os.Stat(filepath.Join(root, name)); err != nil {
			t.Errorf("expected %s: %v", name, err)
		}
	}

	starter, err := os.ReadFile(filepath.Join(root, "targets.jc"))
	if err != nil || !strings.Contains(string(starter), "list\n// targets without dependencies first") {
		t.Errorf("expected the starter script to explain dependency list order:\n%s", starter)
	}

	if _, _, err := run(t, root, nil, "init"); err == nil || !strings.Contains(err.Error(), "--force") {
		t.Errorf("expected refusal to overwrite, got %v", err)
	}
	if _, _, err := run(t, root, nil, "init", "--force"); err != nil {
		t.Errorf("init --force failed: %v", err)
	}
}

func TestParseAndExpand(t *testing.T) {
	root := initProject(t)

	out, _, err := run(t, root, nil, "parse")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if !strings.Contains(out, "type: GccAsm") || !strings.Contains(out, "entry.S") {
		t.Errorf("unexpected parse output:\n%s", out)
	}

	out, _, err = run(t, root, nil, "expand")
	if err != nil {
		t.Fatalf("expand failed: %v", err)
	}
	if !strings.Contains(out, `build ( TargetType : : GccAsm , "entry.S" , [ ] ) ;`) {
		t.Errorf("unexpected expand output:\n%s", out)
	}

	out, _, err = run(t, root, nil, "plan")
	if err != nil {
		t.Fatalf("plan failed: %v", err)
	}
	if !strings.Contains(out, filepath.Join(root, "src", "link-x86_64.lds")) {
		t.Errorf("expected resolved linker script in plan:\n%s", out)
	}
}

func TestBuildStatusClean(t *testing.T) {
	root := initProject(t)
	outDir := filepath.Join(root, "build")

	runner := mocks.NewMockRunner()
	runner.SetTouchOutputs(true)
	out, _, err := run(t, root, runner, "build", "-j", "1")
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	want := []string{
		"jointcomp:link-search=native=" + outDir,
		"jointcomp:link-lib=static=entry",
		"jointcomp:rerun-if-changed=" + filepath.Join(root, "src", "entry.S"),
		"jointcomp:link-arg=-T" + filepath.Join(root, "src", "link-x86_64.lds"),
	}
	if got := strings.TrimSpace(out); got != strings.Join(want, "\n") {
		t.Errorf("directives:\n%s\nwant:\n%s", got, strings.Join(want, "\n"))
	}

	out, _, err = run(t, root, nil, "status")
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if !strings.Contains(out, "entry") || !strings.Contains(out, "succeeded") {
		t.Errorf("unexpected status output:\n%s", out)
	}

	out, _, err = run(t, root, nil, "logs", "entry")
	if err != nil {
		t.Fatalf("logs failed: %v", err)
	}
	if !strings.Contains(out, "=== entry ===") || !strings.Contains(out, "Executing: gcc") {
		t.Errorf("unexpected logs output:\n%s", out)
	}

	if _, _, err := run(t, root, nil, "clean"); err != nil {
		t.Fatalf("clean failed: %v", err)
	}
	for _, gone := range []string{"libentry.a", "jointcomp_link.go", ".jointcomp"} {
		if _, err := os.Stat(filepath.Join(outDir, gone)); !os.IsNotExist(err) {
			t.Errorf("expected %s to be removed", gone)
		}
	}
}

func TestBuildFailure(t *testing.T) {
	root := initProject(t)

	runner := mocks.NewMockRunner()
	runner.SetFailure("entry.S", "fatal: bad instruction")
	out, _, err := run(t, root, runner, "build")
	if !errors.Is(err, builders.ErrBuildFailed) {
		t.Fatalf("expected build failure, got %v", err)
	}
	if out != "" {
		t.Errorf("expected no directives on failure, got %q", out)
	}

	out, _, err = run(t, root, nil, "status")
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if !strings.Contains(out, "failed") || !strings.Contains(out, "bad instruction") {
		t.Errorf("expected failure details in status:\n%s", out)
	}
}

func TestValidate(t *testing.T) {
	root := initProject(t)

	out, _, err := run(t, root, nil, "validate")
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if !strings.Contains(out, "2 target(s)") {
		t.Errorf("unexpected validate output %q", out)
	}

	os.Remove(filepath.Join(root, "src", "entry.S"))
	if _, _, err := run(t, root, nil, "validate"); err == nil {
		t.Error("expected validate to report the missing source")
	}
}

func TestScriptErrors(t *testing.T) {
	root := initProject(t)
	os.WriteFile(filepath.Join(root, "targets.jc"), []byte(`GccAsm { "a.S" "b.S" };`), 0644)

	_, _, err := run(t, root, nil, "parse")
	if !errors.Is(err, script.ErrExpectedColon) {
		t.Errorf("expected ErrExpectedColon, got %v", err)
	}
	var perr *script.ParseError
	if !errors.As(err, &perr) || perr.Decl != 1 {
		t.Errorf("expected ParseError for declaration 1, got %v", err)
	}
}

func TestStatusAndLogsEmpty(t *testing.T) {
	root := initProject(t)

	_, errOut, err := run(t, root, nil, "status")
	if err != nil || !strings.Contains(errOut, "No builds recorded") {
		t.Errorf("unexpected status result %q, %v", errOut, err)
	}
	_, errOut, err = run(t, root, nil, "logs")
	if err != nil || !strings.Contains(errOut, "No logs found") {
		t.Errorf("unexpected logs result %q, %v", errOut, err)
	}
}

func TestVersion(t *testing.T) {
	out, _, err := run(t, t.TempDir(), nil, "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if out != "jointcomp v1.2.3\n" {
		t.Errorf("unexpected version output %q", out)
	}
}

// eventually retries action until path exists or the deadline passes
func eventually(t *testing.T, path string, action func()) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(path); err == nil {
			return
		}
		if action != nil {
			action()
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", path)
}

func TestWatch_ReloadsConfig(t *testing.T) {
	root := initProject(t)
	t.Setenv("JOINTCOMP_WATCH_SETTLINGDELAY", "20")

	runner := mocks.NewMockRunner()
	runner.SetTouchOutputs(true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var out, errOut bytes.Buffer
	c := cli.NewCLIWithOutput(cli.NewConfig(), &out, &errOut)
	c.SetRunner(runner)
	done := make(chan error, 1)
	go func() {
		done <- c.ExecuteContext(ctx, []string{"--root", root, "watch", "--no-notify"})
	}()

	eventually(t, filepath.Join(root, "build", "libentry.a"), nil)

	configPath := filepath.Join(root, config.FileName)
	manager := config.NewManager()
	cfg, err := manager.LoadConfig(configPath)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	cfg.OutDir = "out2"

	// rewritten until seen: the first write may land before the watch starts
	eventually(t, filepath.Join(root, "out2", "libentry.a"), func() {
		if err := manager.SaveConfig(configPath, cfg); err != nil {
			t.Errorf("SaveConfig() error = %v", err)
		}
	})

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("watch returned %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}

	if !strings.Contains(out.String(), "jointcomp:link-search=native="+filepath.Join(root, "out2")) {
		t.Errorf("expected directives for the reloaded output directory:\n%s", out.String())
	}
	if !strings.Contains(errOut.String(), "Configuration reloaded") {
		t.Errorf("expected reload to be logged:\n%s", errOut.String())
	}
}
