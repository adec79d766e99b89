// Package tree provides the delimiter-typed token tree shared by the script
// parser, the template expander and the plan runner.
package tree

import "strings"

// Delimiter identifies the bracket pair enclosing a Group
type Delimiter int

const (
	None Delimiter = iota
	Parenthesis
	Bracket
	Brace
)

// String returns the delimiter pair, e.g. "{}"
func (d Delimiter) String() string {
	return d.open() + d.close()
}

func (d Delimiter) open() string {
	switch d {
	case Parenthesis:
		return "("
	case Bracket:
		return "["
	case Brace:
		return "{"
	}
	return ""
}

func (d Delimiter) close() string {
	switch d {
	case Parenthesis:
		return ")"
	case Bracket:
		return "]"
	case Brace:
		return "}"
	}
	return ""
}

// LeafKind classifies atomic tokens
type LeafKind int

const (
	Ident LeafKind = iota
	Punct
	Literal
)

// Node is either a *Leaf or a *Group. Nodes are never mutated once built.
type Node interface {
	// LineStart reports whether the node began a new source line.
	LineStart() bool
	withLineStart(bool) Node
}

// Leaf is an identifier, a single punctuation character or a literal
type Leaf struct {
	Kind    LeafKind
	Text    string
	Newline bool
}

// LineStart implements Node
func (l *Leaf) LineStart() bool { return l.Newline }

func (l *Leaf) withLineStart(nl bool) Node {
	c := *l
	c.Newline = nl
	return &c
}

// Group is a delimited child sequence
type Group struct {
	Delim        Delimiter
	Children     []Node
	Newline      bool
	CloseNewline bool
}

// LineStart implements Node
func (g *Group) LineStart() bool { return g.Newline }

func (g *Group) withLineStart(nl bool) Node {
	c := *g
	c.Newline = nl
	return &c
}

// WithChildren returns a copy of g holding children, keeping its delimiter
// and layout.
func (g *Group) WithChildren(children []Node) *Group {
	return &Group{
		Delim:        g.Delim,
		Children:     children,
		Newline:      g.Newline,
		CloseNewline: g.CloseNewline,
	}
}

// NewIdent creates an identifier leaf
func NewIdent(name string) *Leaf {
	return &Leaf{Kind: Ident, Text: name}
}

// NewPunct creates a punctuation leaf
func NewPunct(ch rune) *Leaf {
	return &Leaf{Kind: Punct, Text: string(ch)}
}

// NewLiteral creates a literal leaf; text is kept as written, quotes included
func NewLiteral(text string) *Leaf {
	return &Leaf{Kind: Literal, Text: text}
}

// NewGroup creates a group
func NewGroup(delim Delimiter, children ...Node) *Group {
	return &Group{Delim: delim, Children: children}
}

// IsPunct reports whether n is the punctuation leaf ch
func IsPunct(n Node, ch rune) bool {
	l, ok := n.(*Leaf)
	return ok && l.Kind == Punct && l.Text == string(ch)
}

// IsIdent reports whether n is an identifier leaf. An empty name matches any
// identifier.
func IsIdent(n Node, name string) bool {
	l, ok := n.(*Leaf)
	return ok && l.Kind == Ident && (name == "" || l.Text == name)
}

// AsGroup returns n as a group when it is one with delimiter d
func AsGroup(n Node, d Delimiter) (*Group, bool) {
	g, ok := n.(*Group)
	if !ok || g.Delim != d {
		return nil, false
	}
	return g, true
}

// SplitOn splits nodes at every sep punctuation leaf of this level. Nested
// groups are never looked into. The separators are dropped and every chunk is
// returned, including empty ones and the chunk after the last separator.
func SplitOn(nodes []Node, sep rune) [][]Node {
	chunks := make([][]Node, 0, 4)
	start := 0
	for i, n := range nodes {
		if IsPunct(n, sep) {
			chunks = append(chunks, nodes[start:i:i])
			start = i + 1
		}
	}
	return append(chunks, nodes[start:len(nodes):len(nodes)])
}

// Contains reports whether nodes has a sep punctuation leaf at this level
func Contains(nodes []Node, sep rune) bool {
	for _, n := range nodes {
		if IsPunct(n, sep) {
			return true
		}
	}
	return false
}

// LeadWith returns nodes with the first node's line start replaced by nl.
// Used when spliced nodes take the place of a marker.
func LeadWith(nodes []Node, nl bool) []Node {
	if len(nodes) == 0 || nodes[0].LineStart() == nl {
		return nodes
	}
	out := make([]Node, len(nodes))
	copy(out, nodes)
	out[0] = nodes[0].withLineStart(nl)
	return out
}

// Render serializes nodes back to text that Parse reads as the same tree.
func Render(nodes []Node) string {
	r := renderer{}
	r.nodes(nodes, 0)
	return r.sb.String()
}

// RenderNode serializes a single node
func RenderNode(n Node) string {
	return Render([]Node{n})
}

type renderer struct {
	sb      strings.Builder
	started bool
}

func (r *renderer) sep(nl bool, depth int) {
	if !r.started {
		r.started = true
		return
	}
	if nl {
		r.sb.WriteByte('\n')
		r.sb.WriteString(strings.Repeat("    ", depth))
		return
	}
	r.sb.WriteByte(' ')
}

func (r *renderer) nodes(nodes []Node, depth int) {
	for _, n := range nodes {
		switch n := n.(type) {
		case *Leaf:
			r.sep(n.Newline, depth)
			r.sb.WriteString(n.Text)
		case *Group:
			if n.Delim == None {
				r.nodes(n.Children, depth)
				continue
			}
			r.sep(n.Newline, depth)
			r.sb.WriteString(n.Delim.open())
			r.nodes(n.Children, depth+1)
			r.sep(n.CloseNewline, depth)
			r.sb.WriteString(n.Delim.close())
		}
	}
}
