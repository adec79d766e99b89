package mocks_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jointcomp/jointcomp/pkg/builders"
	"github.com/jointcomp/jointcomp/pkg/mocks"
)

var _ builders.CommandRunner = (*mocks.MockRunner)(nil)

func TestMockRunner_Failure(t *testing.T) {
	m := mocks.NewMockRunner()
	m.SetFailure("bad.S", "fatal: no such instruction")

	var out bytes.Buffer
	if err := m.Run(context.Background(), "", &out, "gcc", "-c", "good.S"); err != nil {
		t.Errorf("unexpected error %v", err)
	}
	err := m.Run(context.Background(), "", &out, "gcc", "-c", "bad.S")
	if !errors.Is(err, mocks.ErrToolFailed) {
		t.Errorf("expected ErrToolFailed, got %v", err)
	}
	if out.String() != "fatal: no such instruction\n" {
		t.Errorf("unexpected output %q", out.String())
	}

	cmds := m.Commands()
	if len(cmds) != 2 || cmds[1] != "gcc -c bad.S" {
		t.Errorf("unexpected commands %q", cmds)
	}
	m.Reset()
	if len(m.Commands()) != 0 {
		t.Error("expected Reset to clear commands")
	}
}

func TestMockRunner_TouchOutputs(t *testing.T) {
	dir := t.TempDir()
	m := mocks.NewMockRunner()
	m.SetTouchOutputs(true)

	obj := filepath.Join(dir, "out", "boot.o")
	lib := filepath.Join(dir, "out", "libboot.a")
	ctx := context.Background()
	if err := m.Run(ctx, dir, nil, "gcc", "-c", "boot.S", "-o", obj); err != nil {
		t.Fatal(err)
	}
	if err := m.Run(ctx, dir, nil, "ar", "crus", lib, obj); err != nil {
		t.Fatal(err)
	}
	for _, path := range []string{obj, lib} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("expected %s to exist: %v", path, err)
		}
	}
}

func TestMockRunner_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := mocks.NewMockRunner().Run(ctx, "", nil, "gcc"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
