package convert

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wilhg/toolspec/pkg/classify"
	"github.com/wilhg/toolspec/pkg/descriptor"
	"github.com/wilhg/toolspec/pkg/errmodel"
	"github.com/wilhg/toolspec/pkg/introspect"
	"github.com/wilhg/toolspec/pkg/logging"
)

// MethodAnalysis carries the per-method helper outputs.
type MethodAnalysis struct {
	Name            string                      `json:"name"`
	Description     string                      `json:"description"`
	DescriptionTier descriptor.Tier             `json:"description_tier"`
	Parameters      []classify.ParamDescription `json:"parameters"`
	ParametersTier  descriptor.Tier             `json:"parameters_tier"`
}

// GroupAnalysis carries the per-group helper outputs.
type GroupAnalysis struct {
	Group          string              `json:"group"`
	Categories     []classify.Category `json:"categories"`
	CategoriesTier descriptor.Tier     `json:"categories_tier"`
	Grouping       classify.Grouping   `json:"grouping"`
	GroupingTier   descriptor.Tier     `json:"grouping_tier"`
	Methods        []MethodAnalysis    `json:"methods"`
}

// Analysis is the output of Analyze.
type Analysis struct {
	Module descriptor.ModuleDescriptor `json:"module"`
	Groups []GroupAnalysis             `json:"groups"`
}

// Analyze discovers cfg.Module and runs the auxiliary helpers over every
// class group: categories and a tool grouping per group, a tool description
// and parameter descriptions per method. Each helper falls back on its own,
// so only resolution and filter errors are returned.
func (c *Converter) Analyze(ctx context.Context, cfg Config) (*Analysis, error) {
	ctx, span := c.tracer.Start(ctx, "Analyze", trace.WithAttributes(attribute.String("module.id", cfg.Module)))
	defer span.End()

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
	out := &Analysis{Module: disc.Module, Groups: []GroupAnalysis{}}
	fallbacks := 0
	for _, g := range introspect.GroupByClass(methods) {
		ga := GroupAnalysis{Group: g.Key, Methods: make([]MethodAnalysis, 0, len(g.Methods))}
		ga.Categories, ga.CategoriesTier = client.Categorize(ctx, g.Methods)
		ga.Grouping, ga.GroupingTier = client.SuggestGrouping(ctx, g.Methods)
		for _, m := range g.Methods {
			ma := MethodAnalysis{Name: m.Name}
			ma.Description, ma.DescriptionTier = client.DescribeTool(ctx, m)
			ma.Parameters, ma.ParametersTier = client.DescribeParameters(ctx, m)
			ga.Methods = append(ga.Methods, ma)
		}
		if ga.CategoriesTier == descriptor.TierFallback {
			fallbacks++
		}
		out.Groups = append(out.Groups, ga)
	}

	span.SetAttributes(attribute.Int("groups", len(out.Groups)))
	logging.Info(subsystem, "%s: analysed %d groups, %d methods (%d fallback groups)",
		out.Module.Name, len(out.Groups), len(methods), fallbacks)
	return out, nil
}
