package introspect

import (
	"context"
	"errors"

	"github.com/wilhg/toolspec/pkg/descriptor"
)

type stubCallable struct {
	name      string
	doc       string
	sig       Signature
	err       error
	panic     bool
	namePanic bool
}

func (c stubCallable) Name() string {
	if c.namePanic {
		panic("name exploded")
	}
	return c.name
}
func (c stubCallable) Doc() string { return c.doc }
func (c stubCallable) Signature() (Signature, error) {
	if c.panic {
		panic("signature exploded")
	}
	return c.sig, c.err
}

type stubClass struct {
	doc       string
	methods   []Callable
	bases     []string
	ancestors []string
}

func (c stubClass) Doc() string { return c.doc }
func (c stubClass) Methods() []Callable { return c.methods }
func (c stubClass) Bases() []string { return c.bases }
func (c stubClass) Ancestors() []string { return c.ancestors }

type stubModule struct {
	info    descriptor.ModuleDescriptor
	members []Member
}

func (m stubModule) Info() descriptor.ModuleDescriptor { return m.info }
func (m stubModule) Members() []Member { return m.members }
func (m stubModule) IsPrivate(name string) bool { return UnderscorePrivate(name) }
func (m stubModule) Separator() string { return "." }

type stubSource map[string]stubModule

func (s stubSource) Resolve(_ context.Context, id string) (Module, error) {
	m, ok := s[id]
	if !ok {
		return nil, errors.New("no module named " + id)
	}
	return m, nil
}

func fn(name string, params ...string) stubCallable {
	c := stubCallable{name: name, doc: name + " doc"}
	for _, p := range params {
		c.sig.Parameters = append(c.sig.Parameters, descriptor.ParameterDescriptor{Name: p, Kind: descriptor.PositionalOrKeyword})
	}
	return c
}

// sampleSource models a package "pkg" with a sub-module, a re-exported
// foreign class and private members at every level.
func sampleSource() stubSource {
	client := stubClass{
		doc: "Client talks to the service.",
		methods: []Callable{
			fn("get", "key"),
			fn("put", "key", "value"),
			fn("_internal"),
			stubCallable{name: "broken", doc: "broken doc", err: errors.New("no signature")},
		},
		bases:     []string{"Base"},
		ancestors: []string{"Client", "Base", "object"},
	}
	helper := stubClass{
		doc:     "Helper lives in a child module.",
		methods: []Callable{fn("assist")},
	}
	foreign := stubClass{methods: []Callable{fn("read")}}
	return stubSource{
		"pkg": stubModule{
			info: descriptor.ModuleDescriptor{Name: "pkg", Doc: "Sample package.", Version: "1.2.3"},
			members: []Member{
				{Name: "Client", Module: "pkg", Class: client},
				{Name: "Helper", Module: "pkg.sub", Class: helper},
				{Name: "Foreign", Module: "other_pkg", Class: foreign},
				{Name: "_Hidden", Module: "pkg", Class: stubClass{methods: []Callable{fn("x")}}},
				{Name: "connect", Module: "pkg", Func: fn("connect", "url")},
				{Name: "_internal", Module: "pkg", Func: fn("_internal")},
				{Name: "dumps", Module: "json", Func: fn("dumps", "obj")},
				{Name: "connect", Module: "pkg", Func: fn("connect", "url", "timeout")},
			},
		},
	}
}
