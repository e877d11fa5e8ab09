// Package descriptor defines the language-neutral shapes produced by the
// introspection walker and the classification client.
//
// Walker output (ModuleDescriptor, ClassDescriptor, CallableDescriptor) is
// immutable once discovery returns. Classification output (ToolDescriptor,
// ResourceDescriptor, AnalysisResult) is derived from it and never aliases it.
// Together they form the contract consumed by server renderers:
//
//   - tools and resources may both be empty
//   - a ToolDescriptor parameter is optional unless Required is true
package descriptor

import (
	"encoding/json"
	"fmt"
	"strings"
)

// StandaloneGroup is the grouping key for callables with no declaring class.
const StandaloneGroup = "standalone"

// ModuleDescriptor describes the resolved target module.
type ModuleDescriptor struct {
	Name     string `json:"name"`
	FilePath string `json:"file_path,omitempty"`
	Package  string `json:"package,omitempty"`
	Doc      string `json:"doc"`
	Version  string `json:"version,omitempty"`
	Author   string `json:"author,omitempty"`
}

// ClassDescriptor describes one owned class (a named type in Go sources).
type ClassDescriptor struct {
	Name   string `json:"name"`
	Module string `json:"module"`
	Doc    string `json:"doc"`
	// Methods holds locally declared methods only, in discovery order.
	Methods []CallableDescriptor `json:"methods"`
	// Bases lists direct base (embedded) type names.
	Bases []string `json:"bases"`
	// Ancestors is the linearized ancestor chain, most-derived first.
	Ancestors []string `json:"ancestors"`
}

// CallableKind tags the variant of a CallableDescriptor.
type CallableKind int

const (
	KindFunction CallableKind = iota
	KindMethod
	KindStaticMethod
	KindClassMethod
)

var callableKindNames = [...]string{"function", "method", "static_method", "class_method"}

func (k CallableKind) String() string {
	if int(k) < 0 || int(k) >= len(callableKindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return callableKindNames[k]
}

// ParseCallableKind parses the textual form of a CallableKind.
func ParseCallableKind(s string) (CallableKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "method":
		return KindMethod, nil
	case "function":
		return KindFunction, nil
	case "static", "static_method", "staticmethod":
		return KindStaticMethod, nil
	case "class", "class_method", "classmethod":
		return KindClassMethod, nil
	}
	return KindMethod, fmt.Errorf("unknown callable kind %q", s)
}

func (k CallableKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *CallableKind) UnmarshalText(b []byte) error {
	v, err := ParseCallableKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// CallableDescriptor is the shared shape for methods and standalone functions.
type CallableDescriptor struct {
	Name        string                `json:"name"`
	Kind        CallableKind          `json:"kind"`
	Parameters  []ParameterDescriptor `json:"parameters"`
	ReturnType  string                `json:"return_type,omitempty"`
	Doc         string                `json:"doc"`
	IsAsync     bool                  `json:"is_async"`
	IsGenerator bool                  `json:"is_generator"`
	// DeclaringClass is empty for standalone functions.
	DeclaringClass string `json:"declaring_class,omitempty"`
	// AnalysisError is set only when normalization failed.
	AnalysisError string `json:"analysis_error,omitempty"`
}

func (c CallableDescriptor) IsStatic() bool { return c.Kind == KindStaticMethod }

func (c CallableDescriptor) IsClass() bool { return c.Kind == KindClassMethod }

// GroupKey returns the declaring class or StandaloneGroup.
func (c CallableDescriptor) GroupKey() string {
	if c.DeclaringClass == "" {
		return StandaloneGroup
	}
	return c.DeclaringClass
}

// Clone returns a deep copy so callers can hand descriptors out without sharing slices.
func (c CallableDescriptor) Clone() CallableDescriptor {
	out := c
	if c.Parameters != nil {
		out.Parameters = append([]ParameterDescriptor(nil), c.Parameters...)
	}
	return out
}

// ParamKind classifies how an argument binds to a parameter.
type ParamKind int

const (
	PositionalOnly ParamKind = iota
	PositionalOrKeyword
	VarPositional
	KeywordOnly
	VarKeyword
)

var paramKindNames = [...]string{"positional_only", "positional_or_keyword", "var_positional", "keyword_only", "var_keyword"}

func (k ParamKind) String() string {
	if int(k) < 0 || int(k) >= len(paramKindNames) {
		return fmt.Sprintf("param_kind(%d)", int(k))
	}
	return paramKindNames[k]
}

// ParseParamKind accepts the canonical names plus the Python inspect spellings.
func ParseParamKind(s string) (ParamKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "positional_only":
		return PositionalOnly, nil
	case "", "positional_or_keyword":
		return PositionalOrKeyword, nil
	case "var_positional", "*args", "variadic":
		return VarPositional, nil
	case "keyword_only":
		return KeywordOnly, nil
	case "var_keyword", "**kwargs":
		return VarKeyword, nil
	}
	return PositionalOrKeyword, fmt.Errorf("unknown parameter kind %q", s)
}

func (k ParamKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *ParamKind) UnmarshalText(b []byte) error {
	v, err := ParseParamKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// DefaultKind discriminates DefaultValue.
type DefaultKind int

const (
	DefaultAbsent DefaultKind = iota
	DefaultLiteral
	DefaultUnrepresentable
)

// DefaultValue is an opaque default: absent, a literal rendered as text, or
// something that cannot be represented. It is never evaluated.
type DefaultValue struct {
	Kind DefaultKind `json:"-"`
	Text string      `json:"-"`
}

func NoDefault() DefaultValue { return DefaultValue{} }

func Literal(text string) DefaultValue { return DefaultValue{Kind: DefaultLiteral, Text: text} }

func Unrepresentable(hint string) DefaultValue {
	return DefaultValue{Kind: DefaultUnrepresentable, Text: hint}
}

func (d DefaultValue) IsZero() bool { return d.Kind == DefaultAbsent }

func (d DefaultValue) MarshalJSON() ([]byte, error) {
	switch d.Kind {
	case DefaultLiteral:
		return json.Marshal(map[string]string{"literal": d.Text})
	case DefaultUnrepresentable:
		return json.Marshal(map[string]string{"unrepresentable": d.Text})
	}
	return []byte("null"), nil
}

func (d *DefaultValue) UnmarshalJSON(b []byte) error {
	var v *struct {
		Literal         *string `json:"literal"`
		Unrepresentable *string `json:"unrepresentable"`
	}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch {
	case v == nil:
		*d = NoDefault()
	case v.Literal != nil:
		*d = Literal(*v.Literal)
	case v.Unrepresentable != nil:
		*d = Unrepresentable(*v.Unrepresentable)
	default:
		*d = NoDefault()
	}
	return nil
}

// ParameterDescriptor describes one declared parameter.
type ParameterDescriptor struct {
	Name    string       `json:"name"`
	Type    string       `json:"type,omitempty"`
	Default DefaultValue `json:"default,omitzero"`
	Kind    ParamKind    `json:"kind"`
}
