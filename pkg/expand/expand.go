// Package expand rewrites a template tree against a parsed script.
//
// Two markers are recognized. A "$" leaf followed by a group repeats the
// group's children once per (collection, target) pair of the script. Inside
// such a body, "$code_macro", "$tartype" and "$source" are replaced by the
// current collection's attribute, type and the current target's source, and
// "$( ... )" repeats its children once per dependency, replacing "$" plus the
// following node with the dependency.
//
// Expansion never fails. Marker shapes that do not match are dropped inside
// a body and passed through outside of one.
package expand

import (
	"github.com/jointcomp/jointcomp/pkg/tree"
	"github.com/jointcomp/jointcomp/pkg/types"
)

// Field names usable after "$" inside a repeat body
const (
	FieldCodeMacro = "code_macro"
	FieldTarType   = "tartype"
	FieldSource    = "source"
)

// Expand returns the expanded copy of template. The template is not modified.
func Expand(template []tree.Node, script types.Script) []tree.Node {
	out := make([]tree.Node, 0, len(template))
	for i := 0; i < len(template); i++ {
		n := template[i]
		if tree.IsPunct(n, '$') && i+1 < len(template) {
			if body, ok := template[i+1].(*tree.Group); ok {
				out = append(out, tree.LeadWith(repeat(body.Children, script), n.LineStart())...)
				i++
				continue
			}
		}
		if g, ok := n.(*tree.Group); ok {
			out = append(out, g.WithChildren(Expand(g.Children, script)))
			continue
		}
		out = append(out, n)
	}
	return out
}

// repeat emits one body copy per target, collections first
func repeat(body []tree.Node, script types.Script) []tree.Node {
	var out []tree.Node
	for ci := range script {
		c := &script[ci]
		for ti := range c.Targets {
			s := scope{collection: c, target: &c.Targets[ti]}
			out = append(out, s.body(body)...)
		}
	}
	return out
}

// scope is the collection and target one body copy is expanded for
type scope struct {
	collection *types.TargetsCollection
	target     *types.Target
}

// fieldValue is the result of a field lookup; ok is false for names that
// are not fields
type fieldValue struct {
	nodes []tree.Node
	ok    bool
}

func (s scope) field(n tree.Node) fieldValue {
	leaf, isLeaf := n.(*tree.Leaf)
	if !isLeaf || leaf.Kind != tree.Ident {
		return fieldValue{}
	}
	switch leaf.Text {
	case FieldCodeMacro:
		return fieldValue{nodes: s.collection.Attribute, ok: true}
	case FieldTarType:
		return reparse(s.collection.Type.Qualified())
	case FieldSource:
		return reparse(s.target.Source)
	}
	return fieldValue{}
}

func (s scope) body(nodes []tree.Node) []tree.Node {
	out := make([]tree.Node, 0, len(nodes))
	for i := 0; i < len(nodes); i++ {
		n := nodes[i]
		if tree.IsPunct(n, '$') {
			if i+1 == len(nodes) {
				break
			}
			i++
			if g, ok := tree.AsGroup(nodes[i], tree.Parenthesis); ok {
				out = append(out, tree.LeadWith(s.dependencies(g.Children), n.LineStart())...)
				continue
			}
			if v := s.field(nodes[i]); v.ok {
				out = append(out, tree.LeadWith(v.nodes, n.LineStart())...)
			}
			continue
		}
		if g, ok := n.(*tree.Group); ok {
			out = append(out, g.WithChildren(s.body(g.Children)))
			continue
		}
		out = append(out, n)
	}
	return out
}

// dependencies emits one copy of body per dependency of the current target
func (s scope) dependencies(body []tree.Node) []tree.Node {
	var out []tree.Node
	for _, dep := range s.target.Dependencies {
		v := reparse(dep)
		if !v.ok {
			v.nodes = []tree.Node{tree.NewLiteral(dep)}
		}
		out = append(out, substitute(body, v.nodes)...)
	}
	return out
}

// substitute replaces every "$" and the node after it with value
func substitute(body, value []tree.Node) []tree.Node {
	out := make([]tree.Node, 0, len(body))
	for i := 0; i < len(body); i++ {
		n := body[i]
		if tree.IsPunct(n, '$') {
			if i+1 < len(body) {
				out = append(out, tree.LeadWith(value, n.LineStart())...)
				i++
			}
			continue
		}
		if g, ok := n.(*tree.Group); ok {
			out = append(out, g.WithChildren(substitute(g.Children, value)))
			continue
		}
		out = append(out, n)
	}
	return out
}

func reparse(text string) fieldValue {
	nodes, err := tree.Parse(text)
	if err != nil {
		return fieldValue{}
	}
	return fieldValue{nodes: nodes, ok: true}
}
