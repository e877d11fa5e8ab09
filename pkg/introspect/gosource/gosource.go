// Package gosource resolves Go import paths into introspect modules using
// golang.org/x/tools/go/packages and go/types.
//
// Named types that are structs, interfaces or carry methods are classes;
// package-level funcs are functions. An alias whose target is declared in
// another module is a re-export and is reported with that module as its
// declaring module, so the ownership test drops it.
package gosource

import (
	"context"
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/tools/go/packages"

	"github.com/wilhg/toolspec/pkg/descriptor"
	"github.com/wilhg/toolspec/pkg/errmodel"
	"github.com/wilhg/toolspec/pkg/introspect"
	"github.com/wilhg/toolspec/pkg/logging"
)

const subsystem = "gosource"

const loadMode = packages.NeedName | packages.NeedFiles | packages.NeedTypes |
	packages.NeedSyntax | packages.NeedTypesInfo | packages.NeedModule

// Options configures package loading.
type Options struct {
	// Dir is the directory the go command runs in. Empty means the current directory.
	Dir string
	// Recursive also walks every package under the target import path.
	Recursive bool
	// BuildTags are passed to the go command as -tags.
	BuildTags []string
	// Env overrides the go command environment. Nil inherits the process environment.
	Env []string
}

// Source loads Go packages.
type Source struct {
	opts Options
}

// New returns a Source with opts.
func New(opts Options) *Source { return &Source{opts: opts} }

var _ introspect.Source = (*Source)(nil)

// Resolve loads id (and its sub-packages when recursive) and returns the
// package surface.
func (s *Source) Resolve(ctx context.Context, id string) (introspect.Module, error) {
	cfg := &packages.Config{
		Context: ctx,
		Mode:    loadMode,
		Dir:     s.opts.Dir,
		Env:     s.opts.Env,
		Fset:    token.NewFileSet(),
	}
	if len(s.opts.BuildTags) > 0 {
		cfg.BuildFlags = []string{"-tags=" + strings.Join(s.opts.BuildTags, ",")}
	}
	patterns := []string{id}
	if s.opts.Recursive {
		patterns = append(patterns, strings.TrimSuffix(id, "/")+"/...")
	}
	pkgs, err := packages.Load(cfg, patterns...)
	if err != nil {
		return nil, errmodel.Resolution("load_failed", "could not load "+id, map[string]any{"module": id}, err)
	}
	if len(pkgs) == 0 {
		return nil, errmodel.Resolution("not_found", "no packages match "+id, map[string]any{"module": id}, nil)
	}
	sort.Slice(pkgs, func(i, j int) bool { return pkgs[i].PkgPath < pkgs[j].PkgPath })

	root := rootPackage(pkgs, id)
	if err := rootError(root, id); err != nil {
		return nil, err
	}

	m := &module{root: root, docs: docIndex{}}
	for _, p := range pkgs {
		if p != root && !strings.HasPrefix(p.PkgPath, root.PkgPath+"/") {
			continue
		}
		if p.Types == nil {
			logging.Warn(subsystem, nil, "skipping %s: no type information", p.PkgPath)
			continue
		}
		for _, e := range p.Errors {
			logging.Warn(subsystem, nil, "%s: %s", p.PkgPath, e.Msg)
		}
		m.docs.add(p.Syntax)
		m.pkgs = append(m.pkgs, p)
	}
	return m, nil
}

// rootError reports whether root is unusable. A package with Go files and
// type information is kept even when it does not compile: the go command
// reports its compile diagnostics as list errors, and the affected callables
// degrade individually.
func rootError(root *packages.Package, id string) error {
	if len(root.GoFiles) == 0 {
		msg := "no Go files in " + id
		if len(root.Errors) > 0 {
			msg = root.Errors[0].Msg
		}
		return errmodel.Resolution("not_found", msg, map[string]any{"module": id}, nil)
	}
	if root.Types == nil || len(root.Syntax) == 0 {
		return errmodel.Resolution("no_types", "no type information for "+id, map[string]any{"module": id}, nil)
	}
	return nil
}

// rootPackage is the package whose path equals id, else the shortest path
// (relative patterns such as "." or "./...").
func rootPackage(pkgs []*packages.Package, id string) *packages.Package {
	root := pkgs[0]
	for _, p := range pkgs {
		if p.PkgPath == id {
			return p
		}
		if len(p.PkgPath) < len(root.PkgPath) {
			root = p
		}
	}
	return root
}

type module struct {
	root *packages.Package
	pkgs []*packages.Package
	docs docIndex
}

func (m *module) Info() descriptor.ModuleDescriptor {
	info := descriptor.ModuleDescriptor{
		Name:    m.root.PkgPath,
		Package: m.root.Name,
		Doc:     packageDoc(m.root.Syntax),
	}
	if len(m.root.GoFiles) > 0 {
		info.FilePath = filepath.Dir(m.root.GoFiles[0])
	}
	if m.root.Module != nil {
		info.Version = m.root.Module.Version
	}
	return info
}

func (m *module) IsPrivate(name string) bool { return !token.IsExported(name) }

func (m *module) Separator() string { return "/" }

// Members lists each package's scope in name order, root package first.
// A type reached twice (a re-export alias and its original) is listed once.
func (m *module) Members() []introspect.Member {
	var out []introspect.Member
	seen := map[*types.TypeName]bool{}
	for _, p := range m.pkgs {
		qualifier := strings.TrimPrefix(strings.TrimPrefix(p.PkgPath, m.root.PkgPath), "/")
		scope := p.Types.Scope()
		for _, name := range scope.Names() {
			switch obj := scope.Lookup(name).(type) {
			case *types.TypeName:
				mem, target, ok := m.typeMember(obj)
				if !ok || seen[target] {
					continue
				}
				seen[target] = true
				mem.Qualifier = qualifier
				out = append(out, mem)
			case *types.Func:
				out = append(out, introspect.Member{
					Name:      name,
					Qualifier: qualifier,
					Module:    obj.Pkg().Path(),
					Func:      &callable{fn: obj, docs: m.docs},
				})
			}
		}
	}
	return out
}

func (m *module) typeMember(obj *types.TypeName) (introspect.Member, *types.TypeName, bool) {
	named, ok := types.Unalias(obj.Type()).(*types.Named)
	if !ok {
		return introspect.Member{}, nil, false
	}
	target := named.Obj()
	if target.Pkg() == nil || !isClass(named) {
		return introspect.Member{}, nil, false
	}
	doc := m.docs.get(obj.Pos())
	if doc == "" {
		doc = m.docs.get(target.Pos())
	}
	return introspect.Member{
		Name:   obj.Name(),
		Module: target.Pkg().Path(),
		Class:  &class{named: named, doc: doc, docs: m.docs},
	}, target, true
}

func isClass(named *types.Named) bool {
	switch named.Underlying().(type) {
	case *types.Struct, *types.Interface:
		return true
	}
	return named.NumMethods() > 0
}

type class struct {
	named *types.Named
	doc   string
	docs  docIndex
}

func (c *class) Doc() string { return c.doc }

// Methods returns the methods declared on the type itself, sorted by name.
// Promoted methods of embedded types are not included.
func (c *class) Methods() []introspect.Callable {
	var fns []*types.Func
	if iface, ok := c.named.Underlying().(*types.Interface); ok {
		for i := 0; i < iface.NumExplicitMethods(); i++ {
			fns = append(fns, iface.ExplicitMethod(i))
		}
	} else {
		for i := 0; i < c.named.NumMethods(); i++ {
			fns = append(fns, c.named.Method(i))
		}
	}
	sort.Slice(fns, func(i, j int) bool { return fns[i].Name() < fns[j].Name() })
	out := make([]introspect.Callable, 0, len(fns))
	for _, fn := range fns {
		out = append(out, &callable{fn: fn, docs: c.docs})
	}
	return out
}

func (c *class) Bases() []string {
	qual := types.RelativeTo(c.named.Obj().Pkg())
	var out []string
	for _, t := range embedded(c.named) {
		out = append(out, types.TypeString(t, qual))
	}
	return out
}

// Ancestors is the type followed by its embedded types, breadth first.
func (c *class) Ancestors() []string {
	qual := types.RelativeTo(c.named.Obj().Pkg())
	out := []string{types.TypeString(c.named, qual)}
	seen := map[string]bool{out[0]: true}
	queue := embedded(c.named)
	for len(queue) > 0 {
		t := queue[0]
		queue = queue[1:]
		name := types.TypeString(t, qual)
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
		if n, ok := types.Unalias(deref(t)).(*types.Named); ok {
			queue = append(queue, embedded(n)...)
		}
	}
	return out
}

// embedded returns the embedded fields of a struct or the embedded
// interfaces of an interface, with pointers removed.
func embedded(n *types.Named) []types.Type {
	var out []types.Type
	switch u := n.Underlying().(type) {
	case *types.Struct:
		for i := 0; i < u.NumFields(); i++ {
			if f := u.Field(i); f.Embedded() {
				out = append(out, deref(f.Type()))
			}
		}
	case *types.Interface:
		for i := 0; i < u.NumEmbeddeds(); i++ {
			out = append(out, u.EmbeddedType(i))
		}
	}
	return out
}

func deref(t types.Type) types.Type {
	if p, ok := t.(*types.Pointer); ok {
		return p.Elem()
	}
	return t
}

type callable struct {
	fn   *types.Func
	docs docIndex
}

func (c *callable) Name() string { return c.fn.Name() }

func (c *callable) Doc() string { return c.docs.get(c.fn.Pos()) }

func (c *callable) Signature() (introspect.Signature, error) {
	sig, ok := c.fn.Type().(*types.Signature)
	if !ok {
		return introspect.Signature{}, fmt.Errorf("%s has no signature", c.fn.Name())
	}
	qual := types.RelativeTo(c.fn.Pkg())
	out := introspect.Signature{Kind: descriptor.KindFunction}
	if sig.Recv() != nil {
		out.Kind = descriptor.KindMethod
	}

	params := sig.Params()
	for i := 0; i < params.Len(); i++ {
		v := params.At(i)
		p := descriptor.ParameterDescriptor{
			Name: v.Name(),
			Type: types.TypeString(v.Type(), qual),
			Kind: descriptor.PositionalOnly,
		}
		if p.Name == "" || p.Name == "_" {
			p.Name = fmt.Sprintf("arg%d", i)
		}
		if sig.Variadic() && i == params.Len()-1 {
			p.Kind = descriptor.VarPositional
			if s, ok := v.Type().(*types.Slice); ok {
				p.Type = "..." + types.TypeString(s.Elem(), qual)
			}
		}
		if invalid(p.Type) {
			return introspect.Signature{}, fmt.Errorf("parameter %s of %s has an unresolved type", p.Name, c.fn.Name())
		}
		out.Parameters = append(out.Parameters, p)
	}

	results := sig.Results()
	switch results.Len() {
	case 0:
	case 1:
		out.Returns = types.TypeString(results.At(0).Type(), qual)
	default:
		parts := make([]string, results.Len())
		for i := range parts {
			parts[i] = types.TypeString(results.At(i).Type(), qual)
		}
		out.Returns = "(" + strings.Join(parts, ", ") + ")"
	}
	if invalid(out.Returns) {
		return introspect.Signature{}, fmt.Errorf("result of %s has an unresolved type", c.fn.Name())
	}
	if results.Len() > 0 {
		first := results.At(0).Type()
		out.Async = isRecvChan(first)
		out.Generator = isSeq(first)
	}
	return out, nil
}

func invalid(typeString string) bool { return strings.Contains(typeString, "invalid type") }

func isRecvChan(t types.Type) bool {
	ch, ok := t.Underlying().(*types.Chan)
	return ok && ch.Dir() == types.RecvOnly
}

// isSeq matches the range-over-func shape: func(yield func(...) bool).
func isSeq(t types.Type) bool {
	sig, ok := t.Underlying().(*types.Signature)
	if !ok || sig.Params().Len() != 1 || sig.Results().Len() != 0 {
		return false
	}
	yield, ok := sig.Params().At(0).Type().Underlying().(*types.Signature)
	if !ok || yield.Results().Len() != 1 {
		return false
	}
	b, ok := yield.Results().At(0).Type().Underlying().(*types.Basic)
	return ok && b.Kind() == types.Bool
}

// docIndex maps declaration name positions to doc comment text.
type docIndex map[token.Pos]string

func (d docIndex) get(pos token.Pos) string { return d[pos] }

func (d docIndex) add(files []*ast.File) {
	for _, f := range files {
		ast.Inspect(f, func(n ast.Node) bool {
			switch n := n.(type) {
			case *ast.FuncDecl:
				d.set(n.Name.Pos(), n.Doc)
				return false
			case *ast.GenDecl:
				if n.Tok != token.TYPE {
					return false
				}
				for _, spec := range n.Specs {
					ts := spec.(*ast.TypeSpec)
					doc := ts.Doc
					if doc == nil && len(n.Specs) == 1 {
						doc = n.Doc
					}
					d.set(ts.Name.Pos(), doc)
				}
			case *ast.InterfaceType:
				for _, field := range n.Methods.List {
					for _, name := range field.Names {
						d.set(name.Pos(), field.Doc)
					}
				}
			}
			return true
		})
	}
}

func (d docIndex) set(pos token.Pos, cg *ast.CommentGroup) {
	if cg == nil {
		return
	}
	if text := strings.TrimSpace(cg.Text()); text != "" {
		d[pos] = text
	}
}

func packageDoc(files []*ast.File) string {
	for _, f := range files {
		if f.Doc != nil {
			return strings.TrimSpace(f.Doc.Text())
		}
	}
	return ""
}
