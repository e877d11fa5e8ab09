package introspect

import (
	"strings"

	"github.com/wilhg/toolspec/pkg/descriptor"
)

// SignatureString renders c as "name(p: T = default, *rest) -> R".
func SignatureString(c descriptor.CallableDescriptor) string {
	var b strings.Builder
	b.WriteString(c.Name)
	b.WriteByte('(')
	for i, p := range c.Parameters {
		if i > 0 {
			b.WriteString(", ")
		}
		switch p.Kind {
		case descriptor.VarPositional:
			b.WriteByte('*')
		case descriptor.VarKeyword:
			b.WriteString("**")
		}
		b.WriteString(p.Name)
		if p.Type != "" {
			b.WriteString(": ")
			b.WriteString(p.Type)
		}
		switch p.Default.Kind {
		case descriptor.DefaultLiteral:
			b.WriteString(" = ")
			b.WriteString(p.Default.Text)
		case descriptor.DefaultUnrepresentable:
			b.WriteString(" = <")
			b.WriteString(p.Default.Text)
			b.WriteByte('>')
		}
	}
	b.WriteByte(')')
	if c.ReturnType != "" {
		b.WriteString(" -> ")
		b.WriteString(c.ReturnType)
	}
	return b.String()
}

// ParamNames returns the parameter names of c in declaration order.
func ParamNames(c descriptor.CallableDescriptor) []string {
	out := make([]string, 0, len(c.Parameters))
	for _, p := range c.Parameters {
		out = append(out, p.Name)
	}
	return out
}
