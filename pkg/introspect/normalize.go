package introspect

import (
	"fmt"

	"github.com/wilhg/toolspec/pkg/descriptor"
	"github.com/wilhg/toolspec/pkg/errmodel"
)

// Normalize converts one callable into a descriptor. It never fails: when the
// signature cannot be extracted the descriptor carries no parameters, no
// return type, whatever doc text is available and AnalysisError.
//
// kind is used when the signature does not provide one and on degradation.
func Normalize(c Callable, declaringClass string, kind descriptor.CallableKind) (d descriptor.CallableDescriptor) {
	d = descriptor.CallableDescriptor{
		Kind:           kind,
		Parameters:     []descriptor.ParameterDescriptor{},
		DeclaringClass: declaringClass,
	}
	defer func() {
		if r := recover(); r != nil {
			degrade(&d, kind, errmodel.Normalization("panic", fmt.Sprint(r), map[string]any{"callable": d.Name}))
		}
	}()

	name, ok := safeName(c)
	d.Name = name
	d.Doc = safeDoc(c)
	if !ok {
		degrade(&d, kind, errmodel.Normalization("name", "callable name unavailable", nil))
		return d
	}

	sig, err := c.Signature()
	if err != nil {
		degrade(&d, kind, errmodel.Normalization("signature", err.Error(), map[string]any{"callable": d.Name}))
		return d
	}
	// Standalone functions stay functions; methods take the source's variant.
	if kind != descriptor.KindFunction && sig.Kind != descriptor.KindFunction {
		d.Kind = sig.Kind
	}
	if sig.Parameters != nil {
		d.Parameters = append([]descriptor.ParameterDescriptor(nil), sig.Parameters...)
	}
	d.ReturnType = sig.Returns
	d.IsAsync = sig.Async
	d.IsGenerator = sig.Generator
	return d
}

func degrade(d *descriptor.CallableDescriptor, kind descriptor.CallableKind, err *errmodel.Error) {
	d.Kind = kind
	d.Parameters = []descriptor.ParameterDescriptor{}
	d.ReturnType = ""
	d.IsAsync = false
	d.IsGenerator = false
	d.AnalysisError = err.Message
}

// safeName reports false when reading the name panics.
func safeName(c Callable) (name string, ok bool) {
	defer func() {
		if recover() != nil {
			name, ok = "", false
		}
	}()
	return c.Name(), true
}

func safeDoc(c Callable) (doc string) {
	defer func() {
		if recover() != nil {
			doc = ""
		}
	}()
	return c.Doc()
}
