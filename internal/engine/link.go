package engine

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jointcomp/jointcomp/pkg/builders"
)

// LinkFileName is the cgo file written into the output directory
const LinkFileName = "jointcomp_link.go"

// WriteLinkFile writes a cgo file carrying the link flags of directives.
// Importing its package links the built archives into a Go binary.
func WriteLinkFile(outDir, pkg string, directives []builders.Directive) (string, error) {
	var buf bytes.Buffer
	buf.WriteString("// Code generated by jointcomp. DO NOT EDIT.\n\n")
	fmt.Fprintf(&buf, "package %s\n\n", pkg)

	if flags := builders.LinkerFlags(directives); len(flags) > 0 {
		buf.WriteString("/*\n")
		fmt.Fprintf(&buf, "#cgo LDFLAGS: %s\n", strings.Join(flags, " "))
		buf.WriteString("*/\n")
	}
	buf.WriteString("import \"C\"\n")

	path := filepath.Join(outDir, LinkFileName)
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return "", fmt.Errorf("failed to write link file: %w", err)
	}
	return path, nil
}
