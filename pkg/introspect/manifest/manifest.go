// Package manifest serves descriptors from a pre-generated catalogue.
//
// Libraries that cannot be loaded in-process (other languages, closed
// binaries) are described ahead of time in a YAML or JSON document:
//
//	modules:
//	  - name: pkg
//	    version: "1.0"
//	    classes:
//	      - name: Client
//	        module: pkg.client
//	        bases: [Base]
//	        methods:
//	          - name: get
//	            params:
//	              - {name: key, type: str}
//	              - {name: timeout, type: float, default: "30", kind: keyword_only}
//	    functions:
//	      - name: connect
//	        params: [{name: url}]
//
// Declaring modules default to the enclosing module. Names with the private
// prefix (default "_") are private.
package manifest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wilhg/toolspec/pkg/descriptor"
	"github.com/wilhg/toolspec/pkg/errmodel"
	"github.com/wilhg/toolspec/pkg/introspect"
)

// Catalogue is the document root.
type Catalogue struct {
	Modules []Module `yaml:"modules" json:"modules"`
}

// Module is one resolvable module entry.
type Module struct {
	Name          string     `yaml:"name" json:"name"`
	Package       string     `yaml:"package,omitempty" json:"package,omitempty"`
	File          string     `yaml:"file,omitempty" json:"file,omitempty"`
	Doc           string     `yaml:"doc,omitempty" json:"doc,omitempty"`
	Version       string     `yaml:"version,omitempty" json:"version,omitempty"`
	Author        string     `yaml:"author,omitempty" json:"author,omitempty"`
	PrivatePrefix string     `yaml:"private_prefix,omitempty" json:"private_prefix,omitempty"`
	Separator     string     `yaml:"separator,omitempty" json:"separator,omitempty"`
	Classes       []Class    `yaml:"classes,omitempty" json:"classes,omitempty"`
	Functions     []Callable `yaml:"functions,omitempty" json:"functions,omitempty"`
}

// Class is a class entry.
type Class struct {
	Name      string     `yaml:"name" json:"name"`
	Module    string     `yaml:"module,omitempty" json:"module,omitempty"`
	Doc       string     `yaml:"doc,omitempty" json:"doc,omitempty"`
	Bases     []string   `yaml:"bases,omitempty" json:"bases,omitempty"`
	Ancestors []string   `yaml:"ancestors,omitempty" json:"ancestors,omitempty"`
	Methods   []Callable `yaml:"methods,omitempty" json:"methods,omitempty"`
}

// Callable is a method or function entry. Error marks an entry whose
// signature could not be captured when the catalogue was generated.
type Callable struct {
	Name      string  `yaml:"name" json:"name"`
	Module    string  `yaml:"module,omitempty" json:"module,omitempty"`
	Kind      string  `yaml:"kind,omitempty" json:"kind,omitempty"`
	Doc       string  `yaml:"doc,omitempty" json:"doc,omitempty"`
	Params    []Param `yaml:"params,omitempty" json:"params,omitempty"`
	Returns   string  `yaml:"returns,omitempty" json:"returns,omitempty"`
	Async     bool    `yaml:"async,omitempty" json:"async,omitempty"`
	Generator bool    `yaml:"generator,omitempty" json:"generator,omitempty"`
	Error     string  `yaml:"error,omitempty" json:"error,omitempty"`
}

// Param is a parameter entry. Default is kept as text and never evaluated;
// Unrepresentable marks a default that the generator could not render.
type Param struct {
	Name            string  `yaml:"name" json:"name"`
	Type            string  `yaml:"type,omitempty" json:"type,omitempty"`
	Kind            string  `yaml:"kind,omitempty" json:"kind,omitempty"`
	Default         *string `yaml:"default,omitempty" json:"default,omitempty"`
	Unrepresentable bool    `yaml:"unrepresentable,omitempty" json:"unrepresentable,omitempty"`
}

// Parse decodes a catalogue. JSON documents are accepted as YAML.
func Parse(data []byte) (*Catalogue, error) {
	var c Catalogue
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalogue: %w", err)
	}
	for i, m := range c.Modules {
		if strings.TrimSpace(m.Name) == "" {
			return nil, fmt.Errorf("parse catalogue: module %d has no name", i)
		}
	}
	return &c, nil
}

// Load reads and parses the catalogue at path.
func Load(path string) (*Catalogue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Source resolves module names against a catalogue.
type Source struct {
	cat *Catalogue
}

var _ introspect.Source = (*Source)(nil)

// New returns a Source over cat.
func New(cat *Catalogue) *Source { return &Source{cat: cat} }

// Open loads the catalogue at path. A missing or malformed catalogue is a
// resolution error since nothing in it can be resolved.
func Open(path string) (*Source, error) {
	cat, err := Load(path)
	if err != nil {
		return nil, errmodel.Resolution("catalogue", "could not load catalogue "+path, map[string]any{"path": path}, err)
	}
	return New(cat), nil
}

var errUnknownModule = errors.New("module not in catalogue")

func (s *Source) Resolve(ctx context.Context, id string) (introspect.Module, error) {
	if err := ctx.Err(); err != nil {
		return nil, errmodel.Resolution("canceled", err.Error(), nil, err)
	}
	for i := range s.cat.Modules {
		if s.cat.Modules[i].Name == id {
			return &module{m: &s.cat.Modules[i]}, nil
		}
	}
	return nil, errmodel.Resolution("not_found", "module "+id+" is not in the catalogue", map[string]any{"module": id}, errUnknownModule)
}

type module struct {
	m *Module
}

func (m *module) Info() descriptor.ModuleDescriptor {
	return descriptor.ModuleDescriptor{
		Name:     m.m.Name,
		FilePath: m.m.File,
		Package:  m.m.Package,
		Doc:      m.m.Doc,
		Version:  m.m.Version,
		Author:   m.m.Author,
	}
}

func (m *module) IsPrivate(name string) bool {
	prefix := m.m.PrivatePrefix
	if prefix == "" {
		return introspect.UnderscorePrivate(name)
	}
	return strings.HasPrefix(name, prefix)
}

func (m *module) Separator() string {
	if m.m.Separator == "" {
		return "."
	}
	return m.m.Separator
}

// Members lists classes then functions in catalogue order.
func (m *module) Members() []introspect.Member {
	out := make([]introspect.Member, 0, len(m.m.Classes)+len(m.m.Functions))
	for i := range m.m.Classes {
		c := &m.m.Classes[i]
		out = append(out, introspect.Member{
			Name:   c.Name,
			Module: m.declaring(c.Module),
			Class:  &class{c: c},
		})
	}
	for i := range m.m.Functions {
		f := &m.m.Functions[i]
		out = append(out, introspect.Member{
			Name:   f.Name,
			Module: m.declaring(f.Module),
			Func:   &callable{c: f, function: true},
		})
	}
	return out
}

func (m *module) declaring(mod string) string {
	if mod == "" {
		return m.m.Name
	}
	return mod
}

type class struct {
	c *Class
}

func (c *class) Doc() string { return c.c.Doc }

func (c *class) Methods() []introspect.Callable {
	out := make([]introspect.Callable, 0, len(c.c.Methods))
	for i := range c.c.Methods {
		out = append(out, &callable{c: &c.c.Methods[i]})
	}
	return out
}

func (c *class) Bases() []string { return c.c.Bases }

// Ancestors defaults to the class followed by its bases.
func (c *class) Ancestors() []string {
	if len(c.c.Ancestors) > 0 {
		return c.c.Ancestors
	}
	return append([]string{c.c.Name}, c.c.Bases...)
}

type callable struct {
	c        *Callable
	function bool
}

func (c *callable) Name() string { return c.c.Name }

func (c *callable) Doc() string { return c.c.Doc }

func (c *callable) Signature() (introspect.Signature, error) {
	if c.c.Error != "" {
		return introspect.Signature{}, errors.New(c.c.Error)
	}
	sig := introspect.Signature{
		Kind:      descriptor.KindFunction,
		Returns:   c.c.Returns,
		Async:     c.c.Async,
		Generator: c.c.Generator,
	}
	if !c.function {
		k, err := descriptor.ParseCallableKind(c.c.Kind)
		if err != nil {
			return introspect.Signature{}, err
		}
		sig.Kind = k
	}
	for _, p := range c.c.Params {
		pk, err := descriptor.ParseParamKind(p.Kind)
		if err != nil {
			return introspect.Signature{}, fmt.Errorf("parameter %s: %w", p.Name, err)
		}
		pd := descriptor.ParameterDescriptor{Name: p.Name, Type: p.Type, Kind: pk}
		switch {
		case p.Unrepresentable:
			hint := ""
			if p.Default != nil {
				hint = *p.Default
			}
			pd.Default = descriptor.Unrepresentable(hint)
		case p.Default != nil:
			pd.Default = descriptor.Literal(*p.Default)
		}
		sig.Parameters = append(sig.Parameters, pd)
	}
	return sig, nil
}
