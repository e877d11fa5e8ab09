// Package introspect discovers the callable surface of a library and
// normalizes it into descriptor shapes.
//
// How raw entities are obtained is pluggable: a Source resolves a module
// identifier into a Module whose members are enumerated in a stable order.
// Go packages are loaded by the gosource sub-package; pre-generated
// descriptor catalogues by the manifest sub-package. The Walker applies the
// ownership boundary and the private-name convention on top of any Source.
package introspect

import (
	"context"
	"strings"

	"github.com/wilhg/toolspec/pkg/descriptor"
)

// Source resolves module identifiers.
type Source interface {
	// Resolve loads the module named by id. Failures to load must be
	// reported as errmodel resolution errors.
	Resolve(ctx context.Context, id string) (Module, error)
}

// Module is a resolved target.
type Module interface {
	Info() descriptor.ModuleDescriptor
	// Members returns top-level entities in a deterministic order.
	Members() []Member
	// IsPrivate reports whether name follows the private-name convention.
	IsPrivate(name string) bool
	// Separator joins a module name and its child module names ("/" or ".").
	Separator() string
}

// Member is one top-level entity exposed by a Module. Exactly one of Class
// and Func is set.
type Member struct {
	// Name is the identifier the module exposes; privacy is tested on it.
	Name string
	// Qualifier optionally prefixes Name for display when the member comes
	// from a walked sub-module.
	Qualifier string
	// Module is the declaring module of the entity.
	Module string
	Class  Class
	Func   Callable
}

// DisplayName returns Qualifier.Name, or Name when unqualified.
func (m Member) DisplayName() string {
	if m.Qualifier == "" {
		return m.Name
	}
	return m.Qualifier + "." + m.Name
}

// Class is a raw class entity.
type Class interface {
	Doc() string
	// Methods returns locally declared methods in a deterministic order.
	Methods() []Callable
	Bases() []string
	Ancestors() []string
}

// Callable is a raw function or method.
type Callable interface {
	Name() string
	Doc() string
	// Signature extracts the parameter list. It may fail or panic on
	// callables that cannot be introspected; Normalize contains both.
	Signature() (Signature, error)
}

// Signature is the structural part of a callable.
type Signature struct {
	Kind       descriptor.CallableKind
	Parameters []descriptor.ParameterDescriptor
	Returns    string
	Async      bool
	Generator  bool
}

// Owns reports whether declaring is target itself or one of its child
// modules under sep.
func Owns(target, declaring, sep string) bool {
	if target == "" || declaring == "" {
		return false
	}
	if declaring == target {
		return true
	}
	if sep == "" {
		sep = "."
	}
	return strings.HasPrefix(declaring, target+sep)
}

// UnderscorePrivate is the private-name convention of most dynamic languages.
func UnderscorePrivate(name string) bool { return strings.HasPrefix(name, "_") }
