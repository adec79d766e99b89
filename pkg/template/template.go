// Package template provides the build plan template expanded for every
// declared target
package template

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/jointcomp/jointcomp/pkg/tree"
)

//go:embed default.jct
var defaultSource string

// Default returns the text of the built-in template
func Default() string {
	return defaultSource
}

// Load parses the template at path, or the built-in one when path is empty
func Load(path string) ([]tree.Node, error) {
	src := defaultSource
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read template: %w", err)
		}
		src = string(data)
	}

	nodes, err := tree.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template %s: %w", describe(path), err)
	}
	return nodes, nil
}

func describe(path string) string {
	if path == "" {
		return "(built-in)"
	}
	return path
}
