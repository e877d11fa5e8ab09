package introspect

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wilhg/toolspec/pkg/descriptor"
	"github.com/wilhg/toolspec/pkg/errmodel"
	"github.com/wilhg/toolspec/pkg/logging"
)

const subsystem = "walker"

// Discovery is the walker's output for one module.
type Discovery struct {
	Module    descriptor.ModuleDescriptor     `json:"module"`
	Classes   []descriptor.ClassDescriptor    `json:"classes"`
	Functions []descriptor.CallableDescriptor `json:"functions"`
}

// Methods flattens the methods of all classes in discovery order. The
// returned descriptors are copies.
func (d *Discovery) Methods() []descriptor.CallableDescriptor {
	var out []descriptor.CallableDescriptor
	for _, c := range d.Classes {
		for _, m := range c.Methods {
			out = append(out, m.Clone())
		}
	}
	return out
}

// TotalItems counts classes, methods and functions.
func (d *Discovery) TotalItems() int {
	n := len(d.Classes) + len(d.Functions)
	for _, c := range d.Classes {
		n += len(c.Methods)
	}
	return n
}

// Walker enumerates the owned classes, methods and functions of a module.
type Walker struct {
	src    Source
	tracer trace.Tracer
}

// WalkerOption configures a Walker.
type WalkerOption func(*Walker)

// WithTracerProvider sets the tracer provider used for discovery spans.
func WithTracerProvider(tp trace.TracerProvider) WalkerOption {
	return func(w *Walker) {
		if tp != nil {
			w.tracer = tp.Tracer("introspect/walker")
		}
	}
}

// NewWalker constructs a Walker over src.
func NewWalker(src Source, opts ...WalkerOption) *Walker {
	w := &Walker{src: src, tracer: otel.Tracer("introspect/walker")}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Discover resolves id and enumerates its owned surface. The only error it
// returns is a resolution error; per-callable failures are recorded on the
// affected descriptor.
func (w *Walker) Discover(ctx context.Context, id string, includePrivate bool) (*Discovery, error) {
	ctx, span := w.tracer.Start(ctx, "Walker.Discover", trace.WithAttributes(
		attribute.String("module.id", id),
		attribute.Bool("include_private", includePrivate),
	))
	defer span.End()

	if id == "" {
		err := errmodel.Resolution("empty_id", "module identifier is empty", nil, nil)
		span.RecordError(err)
		return nil, err
	}
	mod, err := w.src.Resolve(ctx, id)
	if err != nil {
		if !errmodel.IsResolution(err) {
			err = errmodel.Resolution("unresolvable", "could not resolve module "+id, map[string]any{"module": id}, err)
		}
		span.RecordError(err)
		return nil, err
	}

	info := mod.Info()
	target := info.Name
	if target == "" {
		target = id
		info.Name = id
	}
	sep := mod.Separator()

	out := &Discovery{
		Module:    info,
		Classes:   []descriptor.ClassDescriptor{},
		Functions: []descriptor.CallableDescriptor{},
	}
	seenClass := map[string]bool{}
	seenFunc := map[string]bool{}
	for _, m := range mod.Members() {
		if !includePrivate && mod.IsPrivate(m.Name) {
			continue
		}
		if !Owns(target, m.Module, sep) {
			logging.Debug(subsystem, "skipping %s: declared in %s, outside %s", m.DisplayName(), m.Module, target)
			continue
		}
		name := m.DisplayName()
		switch {
		case m.Class != nil:
			if seenClass[name] {
				logging.Warn(subsystem, nil, "duplicate class %s in %s ignored", name, target)
				continue
			}
			seenClass[name] = true
			out.Classes = append(out.Classes, w.class(mod, m, name, includePrivate))
		case m.Func != nil:
			if seenFunc[name] {
				logging.Warn(subsystem, nil, "duplicate function %s in %s ignored", name, target)
				continue
			}
			seenFunc[name] = true
			fn := Normalize(m.Func, "", descriptor.KindFunction)
			fn.Name = name
			if fn.AnalysisError != "" {
				logging.Warn(subsystem, nil, "function %s: %s", name, fn.AnalysisError)
			}
			out.Functions = append(out.Functions, fn)
		}
	}

	methods := 0
	for _, c := range out.Classes {
		methods += len(c.Methods)
	}
	span.SetAttributes(
		attribute.Int("classes", len(out.Classes)),
		attribute.Int("methods", methods),
		attribute.Int("functions", len(out.Functions)),
	)
	logging.Info(subsystem, "discovered %d classes, %d methods, %d functions in %s", len(out.Classes), methods, len(out.Functions), target)
	return out, nil
}

func (w *Walker) class(mod Module, m Member, name string, includePrivate bool) descriptor.ClassDescriptor {
	cd := descriptor.ClassDescriptor{
		Name:      name,
		Module:    m.Module,
		Doc:       m.Class.Doc(),
		Methods:   []descriptor.CallableDescriptor{},
		Bases:     append([]string{}, m.Class.Bases()...),
		Ancestors: append([]string{}, m.Class.Ancestors()...),
	}
	seen := map[string]bool{}
	for _, c := range m.Class.Methods() {
		mname, ok := safeName(c)
		if !ok {
			logging.Warn(subsystem, nil, "skipping a method of %s: name unavailable", name)
			continue
		}
		if !includePrivate && mod.IsPrivate(mname) {
			continue
		}
		if seen[mname] {
			continue
		}
		seen[mname] = true
		md := Normalize(c, name, descriptor.KindMethod)
		if md.AnalysisError != "" {
			logging.Warn(subsystem, nil, "method %s.%s: %s", name, mname, md.AnalysisError)
		}
		cd.Methods = append(cd.Methods, md)
	}
	return cd
}
