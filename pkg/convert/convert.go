// Package convert drives the pipeline end to end: discover the target
// module, group its methods by declaring class, classify each group and
// merge the partial results into one report.
//
// Only resolution failures are fatal. Every other failure degrades the
// affected group to the fallback classifier and is reported as an advisory.
package convert

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wilhg/toolspec/pkg/adapters/llm"
	"github.com/wilhg/toolspec/pkg/classify"
	"github.com/wilhg/toolspec/pkg/descriptor"
	"github.com/wilhg/toolspec/pkg/errmodel"
	"github.com/wilhg/toolspec/pkg/introspect"
	"github.com/wilhg/toolspec/pkg/logging"
	"github.com/wilhg/toolspec/pkg/store"
)

const subsystem = "convert"

// Config selects the target and how it is classified.
type Config struct {
	Module         string
	IncludePrivate bool
	// Filter keeps only methods whose name matches this case-insensitive regex.
	Filter      string
	Provider    string
	Model       string
	APIKey      string
	MaxRetries  int
	BackoffUnit time.Duration
}

// Counts summarises a report.
type Counts struct {
	Classes        int `json:"classes"`
	Methods        int `json:"methods"`
	Functions      int `json:"functions"`
	Tools          int `json:"tools"`
	Resources      int `json:"resources"`
	FallbackGroups int `json:"fallback_groups"`
}

// ToolSchema is the JSON Schema of one tool's arguments.
type ToolSchema struct {
	Name        string             `json:"name"`
	InputSchema *jsonschema.Schema `json:"input_schema"`
}

// Report is the output of one conversion run.
type Report struct {
	RunID       uuid.UUID                       `json:"run_id"`
	StartedAt   time.Time                       `json:"started_at"`
	DurationMS  int64                           `json:"duration_ms"`
	Module      descriptor.ModuleDescriptor     `json:"module"`
	Classes     []descriptor.ClassDescriptor    `json:"classes"`
	Functions   []descriptor.CallableDescriptor `json:"functions"`
	Result      descriptor.AnalysisResult       `json:"result"`
	// ToolSchemas follows Result.Tools order; names may repeat across groups.
	ToolSchemas []ToolSchema                    `json:"tool_schemas"`
	Groups      []classify.Outcome              `json:"groups"`
	Counts      Counts                          `json:"counts"`
	Advisories  []string                        `json:"advisories,omitempty"`
}

// Converter runs conversions over one descriptor source.
type Converter struct {
	walker     *introspect.Walker
	backend    llm.LLM
	sourceName string
	clientOpts []classify.Option
	runs       store.RunStore
	tp         trace.TracerProvider
	tracer     trace.Tracer
	now        func() time.Time
}

// Option configures a Converter.
type Option func(*Converter)

// WithBackend sets the analysis backend. Without one every group falls back.
func WithBackend(b llm.LLM) Option { return func(c *Converter) { c.backend = b } }

// WithClassifierOptions appends options applied to every classification client.
func WithClassifierOptions(opts ...classify.Option) Option {
	return func(c *Converter) { c.clientOpts = append(c.clientOpts, opts...) }
}

// WithRunStore persists every report.
func WithRunStore(s store.RunStore) Option { return func(c *Converter) { c.runs = s } }

// WithSourceName records which descriptor source produced the report.
func WithSourceName(name string) Option { return func(c *Converter) { c.sourceName = name } }

// WithTracerProvider sets the tracer provider for the whole pipeline.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Converter) {
		if tp != nil {
			c.tp = tp
			c.tracer = tp.Tracer("convert")
		}
	}
}

// New builds a Converter reading descriptors from src.
func New(src introspect.Source, opts ...Option) *Converter {
	c := &Converter{tracer: otel.Tracer("convert"), now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	var wopts []introspect.WalkerOption
	if c.tp != nil {
		wopts = append(wopts, introspect.WithTracerProvider(c.tp))
	}
	c.walker = introspect.NewWalker(src, wopts...)
	return c
}

// Discover runs only the walker.
func (c *Converter) Discover(ctx context.Context, id string, includePrivate bool) (*introspect.Discovery, error) {
	return c.walker.Discover(ctx, id, includePrivate)
}

// Convert discovers cfg.Module and classifies its methods group by group, in
// group order. It fails only when the module cannot be resolved or the
// method filter is not a valid pattern.
func (c *Converter) Convert(ctx context.Context, cfg Config) (*Report, error) {
	ctx, span := c.tracer.Start(ctx, "Convert", trace.WithAttributes(
		attribute.String("module.id", cfg.Module),
		attribute.Bool("backend", c.backend != nil),
	))
	defer span.End()

	started := c.now()
	disc, err := c.walker.Discover(ctx, cfg.Module, cfg.IncludePrivate)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "resolution failed")
		return nil, err
	}

	methods := disc.Methods()
	if cfg.Filter != "" {
		methods, err = introspect.FilterByPattern(methods, cfg.Filter)
		if err != nil {
			span.SetStatus(codes.Error, "bad filter")
			return nil, errmodel.Validation("filter", err.Error(), map[string]any{"pattern": cfg.Filter})
		}
	}

	client := classify.New(c.classifierOptions(cfg, disc.Module.Name)...)
	rep := &Report{
		RunID:     uuid.New(),
		StartedAt: started.UTC(),
		Module:    disc.Module,
		Classes:   disc.Classes,
		Functions: disc.Functions,
		Result:    descriptor.NewAnalysisResult(),
		Groups:    []classify.Outcome{},
	}
	if rep.Classes == nil {
		rep.Classes = []descriptor.ClassDescriptor{}
	}
	if rep.Functions == nil {
		rep.Functions = []descriptor.CallableDescriptor{}
	}
	for _, g := range introspect.GroupByClass(methods) {
		out := client.Classify(ctx, g.Key, g.Methods)
		rep.Result.Merge(out.Result)
		rep.Groups = append(rep.Groups, out)
		if out.Tier == descriptor.TierFallback {
			rep.Counts.FallbackGroups++
		}
		if out.Advisory != "" {
			rep.Advisories = append(rep.Advisories, g.Key+": "+out.Advisory)
		}
	}

	rep.ToolSchemas = make([]ToolSchema, 0, len(rep.Result.Tools))
	for _, tl := range rep.Result.Tools {
		rep.ToolSchemas = append(rep.ToolSchemas, ToolSchema{Name: tl.Name, InputSchema: tl.InputSchema()})
	}

	rep.Counts.Classes = len(disc.Classes)
	rep.Counts.Methods = len(methods)
	rep.Counts.Functions = len(disc.Functions)
	rep.Counts.Tools = len(rep.Result.Tools)
	rep.Counts.Resources = len(rep.Result.Resources)
	rep.DurationMS = c.now().Sub(started).Milliseconds()

	span.SetAttributes(
		attribute.String("run.id", rep.RunID.String()),
		attribute.Int("tools", rep.Counts.Tools),
		attribute.Int("resources", rep.Counts.Resources),
		attribute.Int("fallback_groups", rep.Counts.FallbackGroups),
	)
	logging.Info(subsystem, "%s: %d classes, %d methods, %d functions -> %d tools, %d resources (%d fallback groups)",
		rep.Module.Name, rep.Counts.Classes, rep.Counts.Methods, rep.Counts.Functions,
		rep.Counts.Tools, rep.Counts.Resources, rep.Counts.FallbackGroups)

	if c.runs != nil {
		if err := c.save(ctx, cfg, rep); err != nil {
			logging.Warn(subsystem, err, "run %s not persisted", rep.RunID)
			rep.Advisories = append(rep.Advisories, "run store: "+err.Error())
		}
	}
	return rep, nil
}

func (c *Converter) classifierOptions(cfg Config, module string) []classify.Option {
	opts := []classify.Option{classify.WithModule(module)}
	if c.backend != nil {
		opts = append(opts, classify.WithBackend(c.backend))
	}
	if cfg.Model != "" {
		opts = append(opts, classify.WithModel(cfg.Model))
	}
	if cfg.MaxRetries > 0 {
		opts = append(opts, classify.WithMaxRetries(cfg.MaxRetries))
	}
	if cfg.BackoffUnit > 0 {
		opts = append(opts, classify.WithBackoffUnit(cfg.BackoffUnit))
	}
	if c.tp != nil {
		opts = append(opts, classify.WithTracerProvider(c.tp))
	}
	return append(opts, c.clientOpts...)
}

func (c *Converter) save(ctx context.Context, cfg Config, rep *Report) error {
	body, err := json.Marshal(rep)
	if err != nil {
		return err
	}
	provider := cfg.Provider
	if c.backend == nil {
		provider = "none"
	}
	return c.runs.SaveRun(ctx, store.RunRecord{
		ID:             rep.RunID.String(),
		Module:         rep.Module.Name,
		Source:         c.sourceName,
		Provider:       provider,
		CreatedAt:      rep.StartedAt,
		DurationMS:     rep.DurationMS,
		Classes:        rep.Counts.Classes,
		Methods:        rep.Counts.Methods,
		Functions:      rep.Counts.Functions,
		Tools:          rep.Counts.Tools,
		Resources:      rep.Counts.Resources,
		FallbackGroups: rep.Counts.FallbackGroups,
		Report:         body,
	})
}

// ResolveBackend builds the backend named by cfg.Provider. An empty provider
// or "none" means no backend. A provider that cannot be built (typically a
// missing credential) is not fatal: it is logged and nil is returned with
// the reason, so every group falls back.
func ResolveBackend(ctx context.Context, cfg Config) (llm.LLM, error) {
	if cfg.Provider == "" || cfg.Provider == "none" {
		return nil, nil
	}
	bcfg := map[string]any{}
	if cfg.APIKey != "" {
		bcfg[llm.CfgAPIKey] = cfg.APIKey
	}
	if cfg.Model != "" {
		bcfg[llm.CfgModel] = cfg.Model
	}
	b, err := llm.New(ctx, cfg.Provider, bcfg)
	if err != nil {
		logging.Warn(subsystem, err, "backend %s unavailable; all groups will use the fallback classifier", cfg.Provider)
		return nil, err
	}
	return b, nil
}

// DecodeReport parses a persisted report.
func DecodeReport(data []byte) (*Report, error) {
	var rep Report
	if err := json.Unmarshal(data, &rep); err != nil {
		return nil, errmodel.Parse("report", "stored report is not valid", nil, err)
	}
	return &rep, nil
}
