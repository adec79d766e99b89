package tree_test

import (
	"errors"
	"testing"

	"github.com/jointcomp/jointcomp/pkg/tree"
)

func TestParse_Tokens(t *testing.T) {
	nodes, err := tree.Parse(`#[cfg(x)] GccAsm { "a.S" : "b.h", 'c' } 0x10;`)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if len(nodes) != 6 {
		t.Fatalf("expected 6 top-level nodes, got %d: %s", len(nodes), tree.Render(nodes))
	}
	if !tree.IsPunct(nodes[0], '#') {
		t.Errorf("expected # punct, got %s", tree.RenderNode(nodes[0]))
	}
	if _, ok := tree.AsGroup(nodes[1], tree.Bracket); !ok {
		t.Errorf("expected bracket group, got %s", tree.RenderNode(nodes[1]))
	}
	if !tree.IsIdent(nodes[2], "GccAsm") {
		t.Errorf("expected GccAsm ident, got %s", tree.RenderNode(nodes[2]))
	}

	body, ok := tree.AsGroup(nodes[3], tree.Brace)
	if !ok {
		t.Fatalf("expected brace group, got %s", tree.RenderNode(nodes[3]))
	}
	if len(body.Children) != 5 {
		t.Errorf("expected 5 children in body, got %d", len(body.Children))
	}
	if l, ok := body.Children[0].(*tree.Leaf); !ok || l.Kind != tree.Literal || l.Text != `"a.S"` {
		t.Errorf("expected string literal, got %#v", body.Children[0])
	}
	if l, ok := nodes[4].(*tree.Leaf); !ok || l.Kind != tree.Literal || l.Text != "0x10" {
		t.Errorf("expected number literal, got %#v", nodes[4])
	}
	if !tree.IsPunct(nodes[5], ';') {
		t.Errorf("expected ; punct, got %s", tree.RenderNode(nodes[5]))
	}
}

func TestParse_Comments(t *testing.T) {
	nodes, err := tree.Parse("a // line\n/* block\n */ b")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := tree.Render(nodes); got != "a\nb" {
		t.Errorf("Render() = %q, want %q", got, "a\nb")
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		line int
	}{
		{"unclosed brace", "a {\n b", 1},
		{"mismatched close", "( ]", 1},
		{"stray close", "a\n)", 2},
		{"unterminated string", `"abc`, 1},
		{"newline in string", "\"ab\ncd\"", 1},
		{"unterminated comment", "a /* b", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tree.Parse(tt.src)
			var synErr *tree.SyntaxError
			if !errors.As(err, &synErr) {
				t.Fatalf("expected SyntaxError, got %v", err)
			}
			if synErr.Line != tt.line {
				t.Errorf("expected line %d, got %d (%v)", tt.line, synErr.Line, err)
			}
		})
	}
}

func TestRender_RoundTrip(t *testing.T) {
	sources := []string{
		`GccAsm { "main.S", "test.S" }`,
		"fn main() {\n    let x = vec![1, 2];\n}",
		"`raw\nstring` 'c' \"esc\\\"aped\"",
		"#[cfg(target_arch = \"x86_64\")] GccAsm { \"arch/$/foo.S\" : \"include/$/bar.h\" }",
		"a::b ( ) [ ] { }",
	}

	for _, src := range sources {
		first, err := tree.Parse(src)
		if err != nil {
			t.Fatalf("Parse(%q) error = %v", src, err)
		}
		rendered := tree.Render(first)
		second, err := tree.Parse(rendered)
		if err != nil {
			t.Fatalf("Parse(Render(%q)) error = %v", src, err)
		}
		if again := tree.Render(second); again != rendered {
			t.Errorf("round trip changed output:\n%s\n---\n%s", rendered, again)
		}
	}
}

func TestRender_KeepsLines(t *testing.T) {
	nodes := tree.MustParse("a {\nb;\nc\n}")
	want := "a {\n    b ;\n    c\n}"
	if got := tree.Render(nodes); got != want {
		t.Errorf("Render() = %q, want %q", got, want)
	}
}

func TestSplitOn(t *testing.T) {
	nodes := tree.MustParse(`a , b c , , ( d , e ) ,`)
	chunks := tree.SplitOn(nodes, ',')

	want := []string{"a", "b c", "", "( d , e )", ""}
	if len(chunks) != len(want) {
		t.Fatalf("expected %d chunks, got %d", len(want), len(chunks))
	}
	for i, chunk := range chunks {
		if got := tree.Render(chunk); got != want[i] {
			t.Errorf("chunk %d = %q, want %q", i, got, want[i])
		}
	}
}

func TestLeadWith(t *testing.T) {
	nodes := tree.MustParse("a b")
	moved := tree.LeadWith(nodes, true)

	if !moved[0].LineStart() {
		t.Error("expected first node to start a line")
	}
	if nodes[0].LineStart() {
		t.Error("LeadWith must not modify its input")
	}
	if got := tree.Render(append([]tree.Node{tree.NewIdent("x")}, moved...)); got != "x\na b" {
		t.Errorf("Render() = %q", got)
	}
}

func TestGroup_WithChildren(t *testing.T) {
	g := tree.NewGroup(tree.Bracket, tree.NewIdent("a"))
	c := g.WithChildren([]tree.Node{tree.NewIdent("b"), tree.NewPunct(',')})

	if c.Delim != tree.Bracket {
		t.Errorf("expected bracket delimiter, got %v", c.Delim)
	}
	if got := tree.RenderNode(g); got != "[ a ]" {
		t.Errorf("original group changed: %q", got)
	}
	if got := tree.RenderNode(c); got != "[ b , ]" {
		t.Errorf("RenderNode() = %q", got)
	}
}
