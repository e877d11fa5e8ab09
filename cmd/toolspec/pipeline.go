package main

import (
	"context"

	"github.com/wilhg/toolspec/pkg/classify"
	"github.com/wilhg/toolspec/pkg/config"
	"github.com/wilhg/toolspec/pkg/convert"
	"github.com/wilhg/toolspec/pkg/errmodel"
	"github.com/wilhg/toolspec/pkg/introspect"
	"github.com/wilhg/toolspec/pkg/introspect/gosource"
	"github.com/wilhg/toolspec/pkg/introspect/manifest"
	"github.com/wilhg/toolspec/pkg/logging"
	"github.com/wilhg/toolspec/pkg/prompt"
	"github.com/wilhg/toolspec/pkg/store"
	"github.com/wilhg/toolspec/pkg/store/sqlstore"
)

func (a *app) source() (introspect.Source, error) {
	switch a.cfg.Source {
	case config.SourceManifest:
		return manifest.Open(a.cfg.Manifest)
	default:
		return gosource.New(gosource.Options{
			Dir:       a.cfg.Dir,
			Recursive: a.cfg.Recursive,
			BuildTags: a.cfg.BuildTags,
		}), nil
	}
}

// openStore opens the configured run store. "memory" keeps runs for the
// lifetime of the process only.
func (a *app) openStore(ctx context.Context) (store.RunStore, error) {
	switch a.cfg.Store {
	case "":
		return nil, nil
	case "memory":
		return store.NewMemory(), nil
	}
	st, err := sqlstore.Open(ctx, a.cfg.Store)
	if err != nil {
		return nil, errmodel.System("store", "cannot open run store", nil, err)
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, errmodel.System("store", "cannot migrate run store", nil, err)
	}
	return st, nil
}

func (a *app) requireStore(ctx context.Context) (store.RunStore, error) {
	st, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, errmodel.Validation("store_required", "this command needs --store (or TOOLSPEC_STORE)", nil)
	}
	return st, nil
}

// prompts returns the built-in prompts overlaid with any files in PromptsDir.
func (a *app) prompts() (*prompt.Store, error) {
	ps := prompt.Defaults()
	if a.cfg.PromptsDir == "" {
		return ps, nil
	}
	loaded, err := ps.LoadDir(a.cfg.PromptsDir)
	if err != nil {
		return nil, errmodel.Validation("prompts_dir", err.Error(), map[string]any{"dir": a.cfg.PromptsDir})
	}
	for _, p := range loaded {
		logging.Debug("cli", "prompt %s v%d loaded from %s", p.Name, p.Version, p.Meta["source"])
	}
	return ps, nil
}

// converter wires the source, backend, prompts and run store. The returned
// close func releases the store.
func (a *app) converter(ctx context.Context) (*convert.Converter, func(), error) {
	src, err := a.source()
	if err != nil {
		return nil, nil, err
	}
	ps, err := a.prompts()
	if err != nil {
		return nil, nil, err
	}
	runs, err := a.openStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	opts := []convert.Option{
		convert.WithSourceName(a.cfg.Source),
		convert.WithClassifierOptions(classify.WithPrompts(ps)),
	}
	// An unavailable backend is logged by ResolveBackend; groups fall back.
	if backend, _ := convert.ResolveBackend(ctx, a.cfg.Convert("")); backend != nil {
		opts = append(opts, convert.WithBackend(backend))
	}
	closeFn := func() {}
	if runs != nil {
		opts = append(opts, convert.WithRunStore(runs))
		closeFn = func() { _ = runs.Close() }
	}
	return convert.New(src, opts...), closeFn, nil
}
