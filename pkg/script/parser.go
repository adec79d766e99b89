// Package script parses the targets DSL into an ordered types.Script.
//
// The grammar, with punctuation leaves as literals:
//
//	script      := (collection ";")* collection?
//	collection  := attr? TYPE_IDENT "{" target_list "}"
//	attr        := "#" "[" ... "]"
//	target_list := (target ",")* target?
//	target      := SOURCE (":" dep_list)?
//	dep_list    := (dep ",")* dep?
//
// A dependency list runs until the next entry that declares its own ":", so
// dependency-free targets are listed before the ones carrying dependencies.
// Parsing is fail-fast: the first malformed declaration aborts the whole
// script.
package script

import (
	"fmt"

	"github.com/jointcomp/jointcomp/pkg/tree"
	"github.com/jointcomp/jointcomp/pkg/types"
)

// ParseString tokenizes src and parses it
func ParseString(src string) (types.Script, error) {
	nodes, err := tree.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("failed to tokenize script: %w", err)
	}
	return Parse(nodes)
}

// Parse builds the script from a flat node sequence
func Parse(nodes []tree.Node) (types.Script, error) {
	var script types.Script
	for i, decl := range tree.SplitOn(nodes, ';') {
		if len(decl) == 0 {
			continue
		}
		c, err := parseCollection(decl)
		if err != nil {
			err.Decl = i + 1
			return nil, err
		}
		script = append(script, c)
	}
	return script, nil
}

func parseCollection(decl []tree.Node) (types.TargetsCollection, *ParseError) {
	var c types.TargetsCollection
	rest := decl

	if tree.IsPunct(rest[0], '#') {
		if len(rest) < 2 {
			return c, &ParseError{Err: ErrExpectedBracket, Detail: "found end of declaration"}
		}
		if _, ok := tree.AsGroup(rest[1], tree.Bracket); !ok {
			return c, &ParseError{Err: ErrExpectedBracket, Detail: "found " + describe(rest[1])}
		}
		c.Attribute = rest[:2:2]
		rest = rest[2:]
	}

	if len(rest) == 0 {
		return c, &ParseError{Err: ErrUnexpectedEnd, Detail: "missing target type"}
	}
	name := tree.RenderNode(rest[0])
	ttype, ok := types.LookupTargetType(name)
	if !ok || !tree.IsIdent(rest[0], "") {
		return c, &ParseError{Err: ErrUnknownTargetType, Detail: name}
	}
	c.Type = ttype

	if len(rest) < 2 {
		return c, &ParseError{
			Err:    ErrExpectedBrace,
			Detail: fmt.Sprintf("expected {} after %s, found end of declaration", ttype.Qualified()),
		}
	}
	body, ok := tree.AsGroup(rest[1], tree.Brace)
	if !ok {
		return c, &ParseError{
			Err:    ErrExpectedBrace,
			Detail: fmt.Sprintf("expected {} after %s, found %s", ttype.Qualified(), describe(rest[1])),
		}
	}

	targets, err := parseTargetList(body.Children)
	if err != nil {
		return c, err
	}
	c.Targets = targets
	return c, nil
}

// parseTargetList groups the comma separated chunks into target entries. A
// chunk without ":" that follows an entry with dependencies extends that
// entry's dependency list.
func parseTargetList(nodes []tree.Node) ([]types.Target, *ParseError) {
	var entries [][]tree.Node
	open := false
	for _, chunk := range tree.SplitOn(nodes, ',') {
		if len(chunk) == 0 {
			continue
		}
		if open && !tree.Contains(chunk, ':') {
			last := len(entries) - 1
			entries[last] = append(entries[last], tree.NewPunct(','))
			entries[last] = append(entries[last], chunk...)
			continue
		}
		entry := make([]tree.Node, len(chunk))
		copy(entry, chunk)
		entries = append(entries, entry)
		open = tree.Contains(chunk, ':')
	}

	targets := make([]types.Target, 0, len(entries))
	for _, entry := range entries {
		t, err := parseTarget(entry)
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	return targets, nil
}

// parseTarget reads one entry. Only the first node is the source, even if
// more nodes precede the ":".
func parseTarget(entry []tree.Node) (types.Target, *ParseError) {
	t := types.Target{Source: tree.RenderNode(entry[0])}
	if len(entry) == 1 {
		return t, nil
	}
	if !tree.IsPunct(entry[1], ':') {
		return t, &ParseError{
			Err:    ErrExpectedColon,
			Detail: fmt.Sprintf("found %s after %s", describe(entry[1]), t.Source),
		}
	}
	for _, dep := range tree.SplitOn(entry[2:], ',') {
		if len(dep) == 0 {
			continue
		}
		t.Dependencies = append(t.Dependencies, tree.Render(dep))
	}
	return t, nil
}

// describe names a node for error messages
func describe(n tree.Node) string {
	if g, ok := n.(*tree.Group); ok {
		return g.Delim.String()
	}
	return "`" + tree.RenderNode(n) + "`"
}
