// Package plan turns an expanded template into resolved build steps.
//
// The expanded tree is a sequence of ";" terminated statements, each an
// optional list of "#[...]" attributes followed by a call:
//
//	link_search(native);
//	#[cfg(target_arch = "x86_64")]
//	build(TargetType::GccAsm, "arch/$/foo.S", ["include/$/bar.h",]);
//
// A statement whose cfg attribute evaluates to false is skipped.
package plan

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jointcomp/jointcomp/pkg/tree"
	"github.com/jointcomp/jointcomp/pkg/types"
)

// ErrInvalidStatement indicates a statement the runner cannot interpret
var ErrInvalidStatement = errors.New("invalid plan statement")

// ArchPlaceholder is replaced by Env.Arch in sources and dependencies
const ArchPlaceholder = "$"

// Env carries every value the plan reads from its surroundings
type Env struct {
	// OutDir receives objects, libraries and logs
	OutDir string
	// ManifestDir is the project root; sources live in ManifestDir/src
	ManifestDir string
	// Arch and OS use target_arch/target_os spelling, e.g. x86_64, linux
	Arch string
	OS   string
}

// Step is one resolved build target
type Step struct {
	Type types.TargetType `json:"type" yaml:"type"`
	// Name is the source's base name without extension
	Name         string   `json:"name" yaml:"name"`
	Source       string   `json:"source" yaml:"source"`
	Dependencies []string `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
}

// Plan is the ordered list of steps with the library search paths
type Plan struct {
	SearchPaths []string `json:"searchPaths,omitempty" yaml:"searchPaths,omitempty"`
	Steps       []Step   `json:"steps" yaml:"steps"`
}

// WatchPaths returns the files whose change invalidates the plan
func (p *Plan) WatchPaths() []string {
	var paths []string
	for _, s := range p.Steps {
		if !s.Type.IsAssembly() {
			continue
		}
		paths = append(paths, s.Source)
		paths = append(paths, s.Dependencies...)
	}
	return paths
}

// Compile interprets the expanded tree
func Compile(nodes []tree.Node, env Env) (*Plan, error) {
	p := &Plan{}
	for i, stmt := range tree.SplitOn(nodes, ';') {
		if len(stmt) == 0 {
			continue
		}
		if err := p.statement(stmt, env); err != nil {
			return nil, fmt.Errorf("statement %d `%s`: %w", i+1, tree.Render(stmt), err)
		}
	}
	return p, nil
}

func (p *Plan) statement(stmt []tree.Node, env Env) error {
	enabled := true
	for len(stmt) >= 2 && tree.IsPunct(stmt[0], '#') {
		attr, ok := tree.AsGroup(stmt[1], tree.Bracket)
		if !ok {
			return fmt.Errorf("%w: # must be followed by []", ErrInvalidStatement)
		}
		on, err := attributeEnabled(attr.Children, env)
		if err != nil {
			return err
		}
		enabled = enabled && on
		stmt = stmt[2:]
	}

	if len(stmt) != 2 || !tree.IsIdent(stmt[0], "") {
		return fmt.Errorf("%w: expected name(args)", ErrInvalidStatement)
	}
	call, ok := tree.AsGroup(stmt[1], tree.Parenthesis)
	if !ok {
		return fmt.Errorf("%w: expected () after %s", ErrInvalidStatement, tree.RenderNode(stmt[0]))
	}
	if !enabled {
		return nil
	}

	args := arguments(call.Children)
	switch name := stmt[0].(*tree.Leaf).Text; name {
	case "link_search":
		return p.linkSearch(args, env)
	case "build":
		return p.build(args, env)
	default:
		return fmt.Errorf("%w: unknown call %s", ErrInvalidStatement, name)
	}
}

func (p *Plan) linkSearch(args [][]tree.Node, env Env) error {
	if len(args) == 0 || len(args) > 2 || !isIdentArg(args[0], "native") {
		return fmt.Errorf("%w: link_search(native[, \"dir\"])", ErrInvalidStatement)
	}
	dir := env.OutDir
	if len(args) == 2 {
		rel, err := stringArg(args[1])
		if err != nil {
			return err
		}
		dir = resolve(env.ManifestDir, rel)
	}
	p.SearchPaths = append(p.SearchPaths, dir)
	return nil
}

func (p *Plan) build(args [][]tree.Node, env Env) error {
	if len(args) != 3 {
		return fmt.Errorf("%w: build takes 3 arguments, got %d", ErrInvalidStatement, len(args))
	}

	ttype, ok := types.ParseQualified(tree.Render(args[0]))
	if !ok {
		return fmt.Errorf("%w: unknown target type %s", ErrInvalidStatement, tree.Render(args[0]))
	}

	source, err := stringArg(args[1])
	if err != nil {
		return err
	}
	source = filepath.Join(env.ManifestDir, "src", withArch(source, env.Arch))

	if len(args[2]) != 1 {
		return fmt.Errorf("%w: dependencies must be a [] list", ErrInvalidStatement)
	}
	list, ok := tree.AsGroup(args[2][0], tree.Bracket)
	if !ok {
		return fmt.Errorf("%w: dependencies must be a [] list", ErrInvalidStatement)
	}
	var deps []string
	for _, arg := range arguments(list.Children) {
		dep, err := stringArg(arg)
		if err != nil {
			return err
		}
		deps = append(deps, resolve(env.ManifestDir, withArch(dep, env.Arch)))
	}

	p.Steps = append(p.Steps, Step{
		Type:         ttype,
		Name:         targetName(source),
		Source:       source,
		Dependencies: deps,
	})
	return nil
}

// arguments splits on commas, dropping empty trailing arguments
func arguments(nodes []tree.Node) [][]tree.Node {
	var args [][]tree.Node
	for _, arg := range tree.SplitOn(nodes, ',') {
		if len(arg) > 0 {
			args = append(args, arg)
		}
	}
	return args
}

func isIdentArg(arg []tree.Node, name string) bool {
	return len(arg) == 1 && tree.IsIdent(arg[0], name)
}

func stringArg(arg []tree.Node) (string, error) {
	if len(arg) == 1 {
		if l, ok := arg[0].(*tree.Leaf); ok && l.Kind == tree.Literal {
			if s, err := strconv.Unquote(l.Text); err == nil {
				return s, nil
			}
		}
	}
	return "", fmt.Errorf("%w: expected a string literal, got %s", ErrInvalidStatement, tree.Render(arg))
}

func withArch(path, arch string) string {
	return strings.ReplaceAll(path, ArchPlaceholder, arch)
}

func resolve(root, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

func targetName(source string) string {
	base := filepath.Base(source)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
