package errmodel

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

// Category values for compact errors.
const (
	// CategoryResolution: the target module cannot be resolved. Fatal.
	CategoryResolution = "resolution"
	// CategoryNormalization: one callable could not be introspected. Recorded, never propagated.
	CategoryNormalization = "normalization"
	// CategoryTransport: the analysis backend failed during an attempt. Retried.
	CategoryTransport = "transport"
	// CategoryParse: the backend reply did not match the expected structure.
	CategoryParse      = "parse"
	CategoryValidation = "validation"
	CategorySystem     = "system"
)

// Error is the compact error payload used across the pipeline.
// It implements the error interface.
type Error struct {
	Category string         `json:"category"`
	Code     string         `json:"code"`
	Message  string         `json:"message"`
	Context  map[string]any `json:"context,omitempty"`
	Causes   []Error        `json:"causes,omitempty"`
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return e.Code + ": " + e.Message
	}
	return e.Message
}

// Unwrap exposes causes to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e == nil || len(e.Causes) == 0 {
		return nil
	}
	out := make([]error, len(e.Causes))
	for i := range e.Causes {
		out[i] = &e.Causes[i]
	}
	return out
}

// New constructs a new compact error.
func New(category, code, message string, ctx map[string]any, causes ...error) *Error {
	ce := &Error{Category: category, Code: code, Message: truncate(message, 512)}
	if len(ctx) > 0 {
		ce.Context = truncateContext(ctx)
	}
	for _, c := range causes {
		if c == nil {
			continue
		}
		ce.Causes = append(ce.Causes, *From(c))
	}
	return ce
}

// From converts any error into a compact Error. If err is already *Error, it's returned as-is.
func From(err error) *Error {
	var ce *Error
	if err == nil {
		return nil
	}
	if errors.As(err, &ce) {
		return ce
	}
	switch {
	case errors.Is(err, context.Canceled):
		return &Error{Category: CategorySystem, Code: "canceled", Message: truncate(err.Error(), 512)}
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Category: CategoryTransport, Code: "deadline_exceeded", Message: truncate(err.Error(), 512)}
	}
	// Default to system/internal for unknown error types.
	return &Error{Category: CategorySystem, Code: "internal", Message: truncate(err.Error(), 512)}
}

// Convenience constructors.
func Resolution(code, message string, ctx map[string]any, cause error) *Error {
	return New(CategoryResolution, code, message, ctx, cause)
}

func Normalization(code, message string, ctx map[string]any) *Error {
	return New(CategoryNormalization, code, message, ctx)
}

func Transport(code, message string, ctx map[string]any, cause error) *Error {
	return New(CategoryTransport, code, message, ctx, cause)
}

func Parse(code, message string, ctx map[string]any, cause error) *Error {
	return New(CategoryParse, code, message, ctx, cause)
}

func Validation(code, message string, ctx map[string]any) *Error {
	return New(CategoryValidation, code, message, ctx)
}

func System(code, message string, ctx map[string]any, cause error) *Error {
	if cause != nil {
		return New(CategorySystem, code, message, ctx, cause)
	}
	return New(CategorySystem, code, message, ctx)
}

// WithTrace records the trace id of the span in ctx, if any, on the error context.
func WithTrace(ctx context.Context, e *Error) *Error {
	if e == nil {
		return nil
	}
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.HasTraceID() {
		return e
	}
	if e.Context == nil {
		e.Context = map[string]any{}
	}
	e.Context["trace_id"] = sc.TraceID().String()
	return e
}

// truncate trims a string to max characters.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

// truncateContext trims long string values in the context map.
func truncateContext(ctx map[string]any) map[string]any {
	out := make(map[string]any, len(ctx))
	for k, v := range ctx {
		switch t := v.(type) {
		case string:
			out[k] = truncate(t, 256)
		case bool, int, int64, float64:
			out[k] = t
		default:
			b, err := json.Marshal(t)
			if err == nil && len(b) > 0 {
				out[k] = truncate(string(b), 256)
			} else {
				out[k] = t
			}
		}
	}
	return out
}

// IsCategory checks if err belongs to a specific category.
func IsCategory(err error, category string) bool {
	ce := From(err)
	return ce != nil && strings.EqualFold(ce.Category, category)
}

func IsResolution(err error) bool { return IsCategory(err, CategoryResolution) }

func IsTransport(err error) bool { return IsCategory(err, CategoryTransport) }

func IsParse(err error) bool { return IsCategory(err, CategoryParse) }
