package builders

import (
	"fmt"
	"strings"
)

// Directive kinds understood by the link step
const (
	KindLinkLib        = "link-lib"
	KindLinkSearch     = "link-search"
	KindLinkArg        = "link-arg"
	KindRerunIfChanged = "rerun-if-changed"
)

// Directive is one instruction for the final link
type Directive struct {
	Kind  string `json:"kind" yaml:"kind"`
	Value string `json:"value" yaml:"value"`
}

// String renders kind=value
func (d Directive) String() string {
	return d.Kind + "=" + d.Value
}

// ParseDirective is the inverse of Directive.String
func ParseDirective(s string) (Directive, error) {
	kind, value, ok := strings.Cut(s, "=")
	if !ok || kind == "" {
		return Directive{}, fmt.Errorf("malformed directive %q", s)
	}
	return Directive{Kind: kind, Value: value}, nil
}

// LinkLib names a static library in the search path
func LinkLib(name string) Directive {
	return Directive{Kind: KindLinkLib, Value: "static=" + name}
}

// LinkSearch adds a native library search directory
func LinkSearch(dir string) Directive {
	return Directive{Kind: KindLinkSearch, Value: "native=" + dir}
}

// LinkArg passes an argument to the linker
func LinkArg(arg string) Directive {
	return Directive{Kind: KindLinkArg, Value: arg}
}

// RerunIfChanged marks a file whose change invalidates the build
func RerunIfChanged(path string) Directive {
	return Directive{Kind: KindRerunIfChanged, Value: path}
}

// LinkerFlags converts directives to flags for the system linker, in order.
// rerun-if-changed has no linker meaning and is skipped.
func LinkerFlags(directives []Directive) []string {
	var flags []string
	for _, d := range directives {
		switch d.Kind {
		case KindLinkSearch:
			flags = append(flags, "-L"+strings.TrimPrefix(d.Value, "native="))
		case KindLinkLib:
			flags = append(flags, "-l"+strings.TrimPrefix(d.Value, "static="))
		case KindLinkArg:
			flags = append(flags, "-Wl,"+d.Value)
		}
	}
	return flags
}
