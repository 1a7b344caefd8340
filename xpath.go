package fizzy

import (
	"fmt"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
	"github.com/pkg/errors"
)

// Literal quotes s as an XPath 1.0 string literal. XPath has no escape
// sequences, so a value holding both quote kinds is split into concat().
func Literal(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	var b strings.Builder
	b.WriteString("concat(")
	for i, p := range parts {
		if i > 0 {
			b.WriteString(`, "'", `)
		}
		b.WriteString("'" + p + "'")
	}
	b.WriteString(")")
	return b.String()
}

// compileQuery fills every %s verb in expr with the quoted form of the
// matching argument and compiles the result.
func compileQuery(expr string, args ...string) (*xpath.Expr, error) {
	if len(args) > 0 {
		quoted := make([]any, len(args))
		for i, a := range args {
			quoted[i] = Literal(a)
		}
		expr = fmt.Sprintf(expr, quoted...)
	}
	compiled, err := xpath.Compile(expr)
	if err != nil {
		return nil, errors.Wrapf(err, "compile xpath %q", expr)
	}
	return compiled, nil
}

func selectAll(top *xmlquery.Node, expr *xpath.Expr) []*xmlquery.Node {
	var out []*xmlquery.Node
	for _, n := range xmlquery.QuerySelectorAll(top, expr) {
		if n.Type == xmlquery.ElementNode {
			out = append(out, n)
		}
	}
	return out
}
