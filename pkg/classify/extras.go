package classify

import (
	"context"
	"sort"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wilhg/toolspec/pkg/descriptor"
	"github.com/wilhg/toolspec/pkg/errmodel"
	"github.com/wilhg/toolspec/pkg/introspect"
	"github.com/wilhg/toolspec/pkg/logging"
	"github.com/wilhg/toolspec/pkg/prompt"
)

// ParamDescription is a backend-written description of one parameter.
type ParamDescription struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Type        string `json:"type"`
	Required    bool   `json:"required"`
	Constraints string `json:"constraints,omitempty"`
}

// Spec converts d into a tool parameter spec.
func (d ParamDescription) Spec() descriptor.ParamSpec {
	return descriptor.ParamSpec{Name: d.Name, Type: d.Type, Description: d.Description, Required: d.Required}
}

// FallbackParameters describes parameters from their declarations alone. A
// parameter is required when it has no default and is not variadic.
func FallbackParameters(m descriptor.CallableDescriptor) []ParamDescription {
	out := make([]ParamDescription, 0, len(m.Parameters))
	for _, p := range m.Parameters {
		typ := p.Type
		if typ == "" {
			typ = "unknown"
		}
		variadic := p.Kind == descriptor.VarPositional || p.Kind == descriptor.VarKeyword
		out = append(out, ParamDescription{
			Name:        p.Name,
			Description: "Parameter " + p.Name,
			Type:        typ,
			Required:    p.Default.IsZero() && !variadic,
			Constraints: "No constraints specified",
		})
	}
	return out
}

// DescribeParameters asks the backend to describe m's parameters, falling
// back to FallbackParameters. Methods without parameters never reach the backend.
func (c *Client) DescribeParameters(ctx context.Context, m descriptor.CallableDescriptor) ([]ParamDescription, descriptor.Tier) {
	if len(m.Parameters) == 0 {
		return []ParamDescription{}, descriptor.TierFallback
	}
	ctx, span := c.tracer.Start(ctx, "DescribeParameters", trace.WithAttributes(attribute.String("method", m.Name)))
	defer span.End()

	text, err := c.ask(ctx, m.Name, prompt.NameParameters, map[string]any{
		"Method":     m.Name,
		"Parameters": introspect.ParamNames(m),
		"Doc":        m.Doc,
	})
	if err == nil {
		var reply struct {
			Parameters []ParamDescription `json:"parameters"`
		}
		if err = decode(text, "mem://parameters.json", &reply); err == nil {
			return reply.Parameters, descriptor.TierBackend
		}
	}
	logging.Warn(subsystem, err, "parameters of %s: using fallback", m.Name)
	return FallbackParameters(m), descriptor.TierFallback
}

// CategoryMember is one method placed in a category.
type CategoryMember struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// Category is a named functional grouping of methods.
type Category struct {
	Name    string           `json:"name"`
	Methods []CategoryMember `json:"methods"`
}

// FallbackCategories places every method in a single "General" category.
func FallbackCategories(methods []descriptor.CallableDescriptor) []Category {
	members := make([]CategoryMember, 0, len(methods))
	for _, m := range methods {
		members = append(members, CategoryMember{Name: m.Name, Reason: "General purpose"})
	}
	return []Category{{Name: "General", Methods: members}}
}

// Categorize asks the backend to group methods by functionality. Categories
// are returned sorted by name.
func (c *Client) Categorize(ctx context.Context, methods []descriptor.CallableDescriptor) ([]Category, descriptor.Tier) {
	ctx, span := c.tracer.Start(ctx, "Categorize", trace.WithAttributes(attribute.Int("methods", len(methods))))
	defer span.End()

	type item struct{ Name, Doc string }
	items := make([]item, 0, len(methods))
	for _, m := range methods {
		items = append(items, item{m.Name, m.Doc})
	}
	text, err := c.ask(ctx, "categorize", prompt.NameCategorize, map[string]any{"Methods": items})
	if err == nil {
		var reply struct {
			Categories map[string][]CategoryMember `json:"categories"`
		}
		if err = decode(text, "mem://categories.json", &reply); err == nil {
			out := make([]Category, 0, len(reply.Categories))
			for name, members := range reply.Categories {
				out = append(out, Category{Name: name, Methods: members})
			}
			sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
			return out, descriptor.TierBackend
		}
	}
	logging.Warn(subsystem, err, "categorize: using fallback")
	return FallbackCategories(methods), descriptor.TierFallback
}

// FallbackToolDescription names the operation when no backend text is available.
func FallbackToolDescription(m descriptor.CallableDescriptor) string {
	return "Execute " + m.Name + " operation"
}

// DescribeTool asks the backend for a one or two sentence description of m as
// a tool. The reply is used as plain text.
func (c *Client) DescribeTool(ctx context.Context, m descriptor.CallableDescriptor) (string, descriptor.Tier) {
	ctx, span := c.tracer.Start(ctx, "DescribeTool", trace.WithAttributes(attribute.String("method", m.Name)))
	defer span.End()

	text, err := c.ask(ctx, m.Name, prompt.NameToolDesc, map[string]any{
		"Method":     m.Name,
		"Class":      m.DeclaringClass,
		"Doc":        m.Doc,
		"Parameters": introspect.ParamNames(m),
	})
	if err == nil {
		if desc := strings.TrimSpace(text); desc != "" {
			return desc, descriptor.TierBackend
		}
		err = errmodel.Parse("empty_reply", "backend returned no description", nil, nil)
	}
	logging.Warn(subsystem, err, "description of %s: using fallback", m.Name)
	return FallbackToolDescription(m), descriptor.TierFallback
}

// ToolGroup is a backend-suggested tool covering several methods.
type ToolGroup struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Methods     []string `json:"methods"`
	Rationale   string   `json:"rationale,omitempty"`
}

// StandaloneTool is a method suggested to stay a tool of its own.
type StandaloneTool struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Grouping is a suggested arrangement of methods into tools.
type Grouping struct {
	ToolGroups      []ToolGroup      `json:"tool_groups"`
	StandaloneTools []StandaloneTool `json:"standalone_tools"`
}

// FallbackGrouping suggests no groups and keeps every method standalone.
func FallbackGrouping(methods []descriptor.CallableDescriptor) Grouping {
	g := Grouping{ToolGroups: []ToolGroup{}, StandaloneTools: make([]StandaloneTool, 0, len(methods))}
	for _, m := range methods {
		g.StandaloneTools = append(g.StandaloneTools, StandaloneTool{Name: m.Name, Description: "Standalone method"})
	}
	return g
}

// SuggestGrouping asks the backend how methods could be combined into tools.
func (c *Client) SuggestGrouping(ctx context.Context, methods []descriptor.CallableDescriptor) (Grouping, descriptor.Tier) {
	ctx, span := c.tracer.Start(ctx, "SuggestGrouping", trace.WithAttributes(attribute.Int("methods", len(methods))))
	defer span.End()

	type item struct{ Name, Class, Doc string }
	items := make([]item, 0, len(methods))
	for _, m := range methods {
		items = append(items, item{m.Name, m.DeclaringClass, m.Doc})
	}
	text, err := c.ask(ctx, "grouping", prompt.NameToolGrouping, map[string]any{"Methods": items})
	if err == nil {
		var g Grouping
		if err = decode(text, "mem://grouping.json", &g); err == nil {
			if g.ToolGroups == nil {
				g.ToolGroups = []ToolGroup{}
			}
			if g.StandaloneTools == nil {
				g.StandaloneTools = []StandaloneTool{}
			}
			return g, descriptor.TierBackend
		}
	}
	logging.Warn(subsystem, err, "grouping: using fallback")
	return FallbackGrouping(methods), descriptor.TierFallback
}

// ask renders a prompt and dispatches it with the retry policy.
func (c *Client) ask(ctx context.Context, key, name string, vars map[string]any) (string, error) {
	if c.backend == nil {
		return "", ErrNoBackend
	}
	request, err := c.prompts.Render(name, vars)
	if err != nil {
		return "", errmodel.System("compose", "could not compose request", map[string]any{"prompt": name}, err)
	}
	text, _, err := c.dispatch(ctx, key, request)
	return text, err
}
