package expand_test

import (
	"strings"
	"testing"

	"github.com/jointcomp/jointcomp/pkg/expand"
	"github.com/jointcomp/jointcomp/pkg/script"
	"github.com/jointcomp/jointcomp/pkg/tree"
	"github.com/jointcomp/jointcomp/pkg/types"
)

func mustScript(t *testing.T, src string) types.Script {
	t.Helper()
	s, err := script.ParseString(src)
	if err != nil {
		t.Fatalf("ParseString(%q) error = %v", src, err)
	}
	return s
}

func expandString(t *testing.T, template string, s types.Script) string {
	t.Helper()
	nodes, err := tree.Parse(template)
	if err != nil {
		t.Fatalf("Parse(%q) error = %v", template, err)
	}
	return tree.Render(expand.Expand(nodes, s))
}

func TestExpand_Identity(t *testing.T) {
	s := mustScript(t, `GccAsm { "a.S" : "b.h" }`)
	templates := []string{
		"fn main() { let x = vec![1, 2]; }",
		"a $b c",
		"trailing $",
		"#[cfg(x)] mod m { use std::path::Path; }",
		"",
	}

	for _, tmpl := range templates {
		nodes := tree.MustParse(tmpl)
		want := tree.Render(nodes)
		if got := tree.Render(expand.Expand(nodes, s)); got != want {
			t.Errorf("Expand(%q) = %q, want %q", tmpl, got, want)
		}
	}
}

func TestExpand_Cardinality(t *testing.T) {
	s := mustScript(t, `GccAsm { "a", "b" }; LinkerMap {}; LinkerScript { "c" }`)
	got := expandString(t, `$( [ $source ] )`, s)

	want := `[ "a" ] [ "b" ] [ "c" ]`
	if got != want {
		t.Errorf("Expand() = %q, want %q", got, want)
	}
}

func TestExpand_Order(t *testing.T) {
	s := mustScript(t, `LinkerMap { "x" }; LinkerScript { "y.lds" }`)
	got := expandString(t, `$( step ( $tartype , $source ) ; )`, s)

	want := `step ( TargetType : : LinkerMap , "x" ) ; step ( TargetType : : LinkerScript , "y.lds" ) ;`
	if got != want {
		t.Errorf("Expand() = %q, want %q", got, want)
	}
}

func TestExpand_NoTargets(t *testing.T) {
	s := mustScript(t, `LinkerMap {}`)
	got := expandString(t, `before $( x $source ) after`, s)
	if got != "before after" {
		t.Errorf("Expand() = %q, want %q", got, "before after")
	}

	got = expandString(t, `before $( x ) after`, nil)
	if got != "before after" {
		t.Errorf("Expand() with empty script = %q", got)
	}
}

func TestExpand_DependencyFanOut(t *testing.T) {
	s := mustScript(t, `GccAsm { "none.S", "a.S" : "b.h", "c.h" }`)
	got := expandString(t, `$( t ( $source , [ $( $dep , ) ] ) ; )`, s)

	want := `t ( "none.S" , [ ] ) ; t ( "a.S" , [ "b.h" , "c.h" , ] ) ;`
	if got != want {
		t.Errorf("Expand() = %q, want %q", got, want)
	}
}

func TestExpand_DependencyInNestedGroup(t *testing.T) {
	s := mustScript(t, `GccAsm { "a.S" : "b.h" }`)
	got := expandString(t, `$( $( watch ( $dep ) ; ) )`, s)

	if got != `watch ( "b.h" ) ;` {
		t.Errorf("Expand() = %q", got)
	}
}

func TestExpand_Attribute(t *testing.T) {
	s := mustScript(t, `#[cfg(x)] GccAsm { "a", "b" }; LinkerMap { "m" }`)
	got := expandString(t, `$( $code_macro { $source } )`, s)

	want := `# [ cfg ( x ) ] { "a" } # [ cfg ( x ) ] { "b" } { "m" }`
	if got != want {
		t.Errorf("Expand() = %q, want %q", got, want)
	}
	if strings.Count(got, "cfg") != 2 {
		t.Errorf("expected the tag in every copy of its collection, got %q", got)
	}
}

func TestExpand_UnknownFieldIsDropped(t *testing.T) {
	s := mustScript(t, `GccAsm { "a" }`)
	tests := []struct {
		template string
		want     string
	}{
		{`$( x $nope y )`, "x y"},
		{`$( x $[ 1 ] y )`, "x y"},
		{`$( x $"lit" y )`, "x y"},
		{`$( x $ )`, "x"},
	}

	for _, tt := range tests {
		if got := expandString(t, tt.template, s); got != tt.want {
			t.Errorf("Expand(%q) = %q, want %q", tt.template, got, tt.want)
		}
	}
}

func TestExpand_NestedRepeatSite(t *testing.T) {
	s := mustScript(t, `GccAsm { "a", "b" }`)
	got := expandString(t, `fn targets() { let mut res = 0; $( push ( $source ) ; ) res }`, s)

	want := `fn targets ( ) { let mut res = 0 ; push ( "a" ) ; push ( "b" ) ; res }`
	if got != want {
		t.Errorf("Expand() = %q, want %q", got, want)
	}
}

func TestExpand_AnyGroupRepeats(t *testing.T) {
	s := mustScript(t, `GccAsm { "a" }`)
	if got := expandString(t, `${ $source }`, s); got != `"a"` {
		t.Errorf("Expand() = %q", got)
	}
}

func TestExpand_DoesNotModifyTemplate(t *testing.T) {
	s := mustScript(t, `GccAsm { "a" : "d" }`)
	nodes := tree.MustParse(`x { $( $source $( $d ) ) }`)
	before := tree.Render(nodes)

	expand.Expand(nodes, s)
	expand.Expand(nodes, s)

	if after := tree.Render(nodes); after != before {
		t.Errorf("template changed: %q -> %q", before, after)
	}
}

func TestExpand_KeepsLines(t *testing.T) {
	s := mustScript(t, `GccAsm { "a", "b" }`)
	got := expandString(t, "start;\n$(\n    one($source);\n)\nend;", s)

	want := "start ;\none ( \"a\" ) ;\none ( \"b\" ) ;\nend ;"
	if got != want {
		t.Errorf("Expand() = %q, want %q", got, want)
	}
}
