// Package types provides the core records built from a targets script
package types

import (
	"strings"

	"github.com/jointcomp/jointcomp/pkg/tree"
)

// TargetType represents supported build target types
type TargetType string

const (
	TargetTypeGccAsm       TargetType = "GccAsm"
	TargetTypeGccAsmX86    TargetType = "GccAsmX86"
	TargetTypeLinkerScript TargetType = "LinkerScript"
	TargetTypeLinkerMap    TargetType = "LinkerMap"
)

// TypeName qualifies target types in generated code
const TypeName = "TargetType"

// targetTypes is the closed lookup table for type names
var targetTypes = map[string]TargetType{
	string(TargetTypeGccAsm):       TargetTypeGccAsm,
	string(TargetTypeGccAsmX86):    TargetTypeGccAsmX86,
	string(TargetTypeLinkerScript): TargetTypeLinkerScript,
	string(TargetTypeLinkerMap):    TargetTypeLinkerMap,
}

// LookupTargetType resolves a declared type name. ok is false when the
// name has no variant.
func LookupTargetType(name string) (t TargetType, ok bool) {
	t, ok = targetTypes[name]
	return t, ok
}

// ParseQualified resolves the TargetType::Variant form produced by Qualified
func ParseQualified(s string) (TargetType, bool) {
	name, found := strings.CutPrefix(strings.ReplaceAll(s, " ", ""), TypeName+"::")
	if !found {
		return "", false
	}
	return LookupTargetType(name)
}

// TargetTypes returns every known type in declaration order
func TargetTypes() []TargetType {
	return []TargetType{
		TargetTypeGccAsm,
		TargetTypeGccAsmX86,
		TargetTypeLinkerScript,
		TargetTypeLinkerMap,
	}
}

// Qualified renders the type as TargetType::Variant
func (t TargetType) Qualified() string {
	return TypeName + "::" + string(t)
}

// IsAssembly reports whether targets of this type are compiled into a
// static library
func (t TargetType) IsAssembly() bool {
	return t == TargetTypeGccAsm || t == TargetTypeGccAsmX86
}

// Target is one declared source with its ordered dependencies
type Target struct {
	Source       string   `json:"source" yaml:"source"`
	Dependencies []string `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
}

// TargetsCollection groups targets sharing a type and an optional attribute
type TargetsCollection struct {
	Type TargetType
	// Attribute is the verbatim "#[...]" tag, nil when absent
	Attribute []tree.Node
	Targets   []Target
}

// HasAttribute reports whether the collection carries a tag
func (c TargetsCollection) HasAttribute() bool {
	return len(c.Attribute) > 0
}

// collectionView is the serialized shape of a collection
type collectionView struct {
	Type      TargetType `json:"type" yaml:"type"`
	Attribute string     `json:"attribute,omitempty" yaml:"attribute,omitempty"`
	Targets   []Target   `json:"targets" yaml:"targets"`
}

func (c TargetsCollection) view() collectionView {
	return collectionView{
		Type:      c.Type,
		Attribute: tree.Render(c.Attribute),
		Targets:   c.Targets,
	}
}

// MarshalYAML renders the attribute as text
func (c TargetsCollection) MarshalYAML() (interface{}, error) {
	return c.view(), nil
}

// Script is the ordered list of collections parsed from one targets file
type Script []TargetsCollection

// Len returns the number of targets across all collections
func (s Script) Len() int {
	n := 0
	for _, c := range s {
		n += len(c.Targets)
	}
	return n
}
