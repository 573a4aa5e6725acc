// Package expressions parses a bundle's flow_selection predicate and
// statically decomposes it into the router's Includes/Excludes constraint
// algebra, so a selection like `material == "steel" && region in ["EU"]`
// becomes part of the same symbolic Query the decision tree is built from
// — no per-row expression evaluation needed at route time.
//
// Ported from floweaver's selection_router.py, which walks a Python `ast`
// parse tree looking for the same shape of conjunction. This port walks
// expr-lang/expr's AST instead (the parser already vendored by the
// project's dependency stack), since the grammar it accepts — `==`, `!=`,
// `in`, `not in`, joined by `&&` — is the same subset floweaver supports.
package expressions

import (
	"fmt"

	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"

	"github.com/rendis/weaver/internal/router"
)

// Decompose parses expr and returns the Query it statically reduces to.
// An empty expr reduces to the empty Query (matches every row). Decompose
// only accepts a conjunction of equality/inequality/membership tests
// against a single bare identifier on the left and string literal(s) on
// the right — flow_selection predicates outside that shape are rejected
// with an error rather than silently partially applied. The compiler then
// keeps such a selection whole and evaluates it per row at execute time
// (see CompileFilter); only an expression that does not parse fails the
// compile.
func Decompose(expr string) (router.Query, error) {
	if expr == "" {
		return router.Query{}, nil
	}

	tree, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("parse flow_selection %q: %w", expr, err)
	}

	q := router.Query{}
	if err := decomposeNode(tree.Node, q); err != nil {
		return nil, fmt.Errorf("flow_selection %q: %w", expr, err)
	}
	return q, nil
}

func decomposeNode(n ast.Node, into router.Query) error {
	switch node := n.(type) {
	case *ast.BinaryNode:
		if node.Operator == "&&" {
			if err := decomposeNode(node.Left, into); err != nil {
				return err
			}
			return decomposeNode(node.Right, into)
		}
		return decomposeComparison(node, into)
	case *ast.UnaryNode:
		// expr-lang parses `a not in b` as not(a in b).
		if inner, ok := node.Node.(*ast.BinaryNode); ok && node.Operator == "not" && inner.Operator == "in" {
			return decomposeComparison(&ast.BinaryNode{Operator: "not in", Left: inner.Left, Right: inner.Right}, into)
		}
		return fmt.Errorf("unsupported expression node %T (only ==, !=, in, not in, && are supported)", n)
	default:
		return fmt.Errorf("unsupported expression node %T (only ==, !=, in, not in, && are supported)", n)
	}
}

func decomposeComparison(node *ast.BinaryNode, into router.Query) error {
	ident, ok := node.Left.(*ast.IdentifierNode)
	if !ok {
		return fmt.Errorf("left-hand side of %q must be a bare attribute name", node.Operator)
	}
	attr := ident.Value

	var constraint router.Constraint
	switch node.Operator {
	case "==":
		v, err := stringLiteral(node.Right)
		if err != nil {
			return err
		}
		constraint = router.Includes(v)
	case "!=":
		v, err := stringLiteral(node.Right)
		if err != nil {
			return err
		}
		constraint = router.Excludes(v)
	case "in":
		values, err := stringArray(node.Right)
		if err != nil {
			return err
		}
		constraint = router.Includes(values...)
	case "not in":
		values, err := stringArray(node.Right)
		if err != nil {
			return err
		}
		constraint = router.Excludes(values...)
	default:
		return fmt.Errorf("unsupported operator %q", node.Operator)
	}

	if existing, ok := into[attr]; ok {
		into[attr] = router.Intersect(existing, constraint)
	} else {
		into[attr] = constraint
	}
	return nil
}

func stringLiteral(n ast.Node) (string, error) {
	lit, ok := n.(*ast.StringNode)
	if !ok {
		return "", fmt.Errorf("right-hand side must be a string literal")
	}
	return lit.Value, nil
}

func stringArray(n ast.Node) ([]string, error) {
	arr, ok := n.(*ast.ArrayNode)
	if !ok {
		return nil, fmt.Errorf("right-hand side of in/not in must be an array literal")
	}
	out := make([]string, len(arr.Nodes))
	for i, el := range arr.Nodes {
		v, err := stringLiteral(el)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
