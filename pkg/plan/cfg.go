package plan

import (
	"fmt"
	"strconv"

	"github.com/jointcomp/jointcomp/pkg/tree"
)

// attributeEnabled evaluates the content of one #[...] attribute. Only cfg
// attributes take part; anything else is carried but ignored.
func attributeEnabled(attr []tree.Node, env Env) (bool, error) {
	if len(attr) == 0 || !tree.IsIdent(attr[0], "cfg") {
		return true, nil
	}
	if len(attr) != 2 {
		return false, fmt.Errorf("%w: cfg must be followed by ()", ErrInvalidStatement)
	}
	g, ok := tree.AsGroup(attr[1], tree.Parenthesis)
	if !ok {
		return false, fmt.Errorf("%w: cfg must be followed by ()", ErrInvalidStatement)
	}
	return evalCfg(g.Children, env)
}

// evalCfg evaluates one cfg predicate:
//
//	name | key = "value" | not(p) | all(p, ...) | any(p, ...)
//
// Unknown names and keys are false, matching an unset configuration option.
func evalCfg(pred []tree.Node, env Env) (bool, error) {
	if len(pred) == 0 || !tree.IsIdent(pred[0], "") {
		return false, fmt.Errorf("%w: malformed cfg predicate `%s`", ErrInvalidStatement, tree.Render(pred))
	}
	name := pred[0].(*tree.Leaf).Text

	switch {
	case len(pred) == 1:
		return flag(name, env), nil

	case len(pred) == 3 && tree.IsPunct(pred[1], '='):
		lit, ok := pred[2].(*tree.Leaf)
		if !ok || lit.Kind != tree.Literal {
			return false, fmt.Errorf("%w: cfg value for %s must be a string", ErrInvalidStatement, name)
		}
		value, err := strconv.Unquote(lit.Text)
		if err != nil {
			return false, fmt.Errorf("%w: cfg value for %s must be a string", ErrInvalidStatement, name)
		}
		return keyValue(name, value, env), nil

	case len(pred) == 2:
		g, ok := tree.AsGroup(pred[1], tree.Parenthesis)
		if !ok {
			break
		}
		return combine(name, arguments(g.Children), env)
	}
	return false, fmt.Errorf("%w: malformed cfg predicate `%s`", ErrInvalidStatement, tree.Render(pred))
}

func combine(op string, args [][]tree.Node, env Env) (bool, error) {
	switch op {
	case "not":
		if len(args) != 1 {
			return false, fmt.Errorf("%w: not() takes one predicate", ErrInvalidStatement)
		}
		v, err := evalCfg(args[0], env)
		return !v, err

	case "all", "any":
		want := op == "any"
		for _, arg := range args {
			v, err := evalCfg(arg, env)
			if err != nil {
				return false, err
			}
			if v == want {
				return want, nil
			}
		}
		return !want, nil
	}
	return false, fmt.Errorf("%w: unknown cfg operator %s", ErrInvalidStatement, op)
}

func flag(name string, env Env) bool {
	switch name {
	case "unix":
		return family(env.OS) == "unix"
	case "windows":
		return env.OS == "windows"
	}
	return false
}

func keyValue(key, value string, env Env) bool {
	switch key {
	case "target_arch":
		return env.Arch == value
	case "target_os":
		return env.OS == value
	case "target_family":
		return family(env.OS) == value
	}
	return false
}

func family(os string) string {
	switch os {
	case "windows":
		return "windows"
	case "":
		return ""
	}
	return "unix"
}
