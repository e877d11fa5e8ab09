package descriptor

import (
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
)

// ParamSpec is a semantic parameter description attached to a tool.
type ParamSpec struct {
	Name        string `json:"name"`
	Type        string `json:"type,omitempty"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required"`
}

// ToolDescriptor represents an invocable action. Its parameters are a
// re-description and need not mirror the originating callable.
type ToolDescriptor struct {
	Name              string      `json:"name"`
	Description       string      `json:"description"`
	Parameters        []ParamSpec `json:"parameters"`
	ReturnDescription string      `json:"return_description"`
}

// InputSchema renders the parameters as a JSON Schema object. Parameters are
// optional unless marked required.
func (t ToolDescriptor) InputSchema() *jsonschema.Schema {
	s := &jsonschema.Schema{
		Type:       "object",
		Properties: make(map[string]*jsonschema.Schema, len(t.Parameters)),
	}
	for _, p := range t.Parameters {
		if p.Name == "" {
			continue
		}
		prop := &jsonschema.Schema{Description: p.Description}
		if jt := jsonType(p.Type); jt != "" {
			prop.Type = jt
		}
		if prop.Type == "array" {
			prop.Items = &jsonschema.Schema{}
		}
		s.Properties[p.Name] = prop
		if p.Required {
			s.Required = append(s.Required, p.Name)
		}
	}
	return s
}

// jsonType maps loosely-written type names (Go, Python or JSON spellings) to a
// JSON Schema primitive. Unknown types map to "" (any).
func jsonType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	t = strings.TrimPrefix(t, "*")
	if i := strings.IndexAny(t, "[|"); i > 0 && !strings.HasPrefix(t, "[]") {
		t = strings.TrimSpace(t[:i])
	}
	switch {
	case t == "":
		return ""
	case strings.HasPrefix(t, "[]"), t == "list", t == "tuple", t == "set", t == "array", strings.HasPrefix(t, "..."):
		return "array"
	case strings.HasPrefix(t, "map["), t == "map", t == "dict", t == "object", t == "mapping":
		return "object"
	}
	switch t {
	case "str", "string":
		return "string"
	case "int", "int8", "int16", "int32", "int64", "uint", "uint8", "uint16", "uint32", "uint64", "integer":
		return "integer"
	case "float", "float32", "float64", "number", "decimal":
		return "number"
	case "bool", "boolean":
		return "boolean"
	}
	return ""
}

// ResourceDescriptor represents passive, read-only data access aggregating methods.
type ResourceDescriptor struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Methods     []string `json:"methods"`
}

// AnalysisResult accumulates tools and resources across groups, preserving
// the order in which they were merged.
type AnalysisResult struct {
	Tools     []ToolDescriptor     `json:"tools"`
	Resources []ResourceDescriptor `json:"resources"`
}

// NewAnalysisResult returns a result with non-nil, empty collections.
func NewAnalysisResult() AnalysisResult {
	return AnalysisResult{Tools: []ToolDescriptor{}, Resources: []ResourceDescriptor{}}
}

// Merge appends other's tools and resources.
func (r *AnalysisResult) Merge(other AnalysisResult) {
	if r.Tools == nil {
		r.Tools = []ToolDescriptor{}
	}
	if r.Resources == nil {
		r.Resources = []ResourceDescriptor{}
	}
	r.Tools = append(r.Tools, other.Tools...)
	r.Resources = append(r.Resources, other.Resources...)
}

// Tier records which classification path produced a result.
type Tier string

const (
	TierBackend  Tier = "backend"
	TierFallback Tier = "fallback"
)
