package script

import (
	"errors"
	"fmt"
)

// Sentinel errors for script parsing. Check them with errors.Is.
var (
	// ErrUnknownTargetType indicates a type name missing from the type table
	ErrUnknownTargetType = errors.New("unknown target type")

	// ErrExpectedBrace indicates the target list is not a {} group
	ErrExpectedBrace = errors.New("brace needed after target type")

	// ErrExpectedBracket indicates a # not followed by a [] group
	ErrExpectedBracket = errors.New("after # must be a []")

	// ErrExpectedColon indicates a second token after a source that is not :
	ErrExpectedColon = errors.New("must be a : after a target")

	// ErrUnexpectedEnd indicates a declaration that ends before its type name
	ErrUnexpectedEnd = errors.New("declaration unexpectedly terminated")
)

// ParseError locates a parse failure within the script
type ParseError struct {
	// Decl is the 1-based index of the failing declaration
	Decl   int
	Err    error
	Detail string
}

func (e *ParseError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("declaration %d: %v", e.Decl, e.Err)
	}
	return fmt.Sprintf("declaration %d: %v: %s", e.Decl, e.Err, e.Detail)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
