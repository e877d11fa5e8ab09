package convert

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/wilhg/toolspec/pkg/adapters/llm/fake"
	_ "github.com/wilhg/toolspec/pkg/adapters/llm/openai"
	"github.com/wilhg/toolspec/pkg/classify"
	"github.com/wilhg/toolspec/pkg/descriptor"
	"github.com/wilhg/toolspec/pkg/errmodel"
	"github.com/wilhg/toolspec/pkg/introspect/manifest"
	"github.com/wilhg/toolspec/pkg/prompt"
	"github.com/wilhg/toolspec/pkg/store"
)

const catalogue = `
modules:
  - name: sdk
    doc: Sample SDK.
    classes:
      - name: Client
        methods:
          - name: alpha
            params: [{name: self}, {name: key, type: str}]
          - name: _beta
          - name: gamma
      - name: Admin
        module: sdk.admin
        methods:
          - name: reset
      - name: Empty
      - name: Vendored
        module: thirdparty
        methods:
          - name: leak
    functions:
      - name: connect
        params: [{name: url, type: str}]
  - name: quiet
    classes:
      - name: Internal
        methods:
          - name: _hidden
`

const clientReply = `{"tools": [{"name": "alpha_tool", "description": "Alpha", "parameters": [{"name": "key", "type": "string", "required": true}], "return_description": "Alpha result"}], "resources": [{"name": "alphas", "description": "Alpha data", "methods": ["alpha"]}]}`

func source(t *testing.T) *manifest.Source {
	t.Helper()
	cat, err := manifest.Parse([]byte(catalogue))
	require.NoError(t, err)
	return manifest.New(cat)
}

func quickClient() Option {
	return WithClassifierOptions(
		classify.WithEstimator(prompt.RuneEstimator),
		classify.WithSleep(func(context.Context, time.Duration) error { return nil }),
	)
}

func toolNames(r descriptor.AnalysisResult) []string {
	out := []string{}
	for _, tl := range r.Tools {
		out = append(out, tl.Name)
	}
	return out
}

func TestConvert_FallbackFloorWithoutBackend(t *testing.T) {
	rep, err := New(source(t)).Convert(context.Background(), Config{Module: "sdk"})
	require.NoError(t, err)

	assert.Equal(t, []string{"alpha", "gamma", "reset"}, toolNames(rep.Result))
	for _, tl := range rep.Result.Tools {
		assert.Equal(t, "Execute "+tl.Name+" operation", tl.Description)
		assert.Empty(t, tl.Parameters)
	}
	require.Len(t, rep.ToolSchemas, 3)
	for i, ts := range rep.ToolSchemas {
		assert.Equal(t, rep.Result.Tools[i].Name, ts.Name)
		assert.Equal(t, "object", ts.InputSchema.Type)
		assert.Empty(t, ts.InputSchema.Properties)
		assert.Empty(t, ts.InputSchema.Required)
	}
	assert.Empty(t, rep.Result.Resources)
	assert.Equal(t, Counts{Classes: 3, Methods: 3, Functions: 1, Tools: 3, Resources: 0, FallbackGroups: 2}, rep.Counts)

	require.Len(t, rep.Groups, 2)
	assert.Equal(t, "Client", rep.Groups[0].Group)
	assert.Equal(t, "Admin", rep.Groups[1].Group)
	for _, g := range rep.Groups {
		assert.Equal(t, descriptor.TierFallback, g.Tier)
	}
	require.Len(t, rep.Advisories, 2)
	assert.Contains(t, rep.Advisories[0], classify.ErrNoBackend.Error())
	assert.NotEqual(t, [16]byte{}, [16]byte(rep.RunID))
}

func TestConvert_StandaloneFunctionsAreReportedNotClassified(t *testing.T) {
	rep, err := New(source(t)).Convert(context.Background(), Config{Module: "sdk"})
	require.NoError(t, err)

	require.Len(t, rep.Functions, 1)
	assert.Equal(t, "connect", rep.Functions[0].Name)
	assert.NotContains(t, toolNames(rep.Result), "connect")
	for _, g := range rep.Groups {
		assert.NotEqual(t, descriptor.StandaloneGroup, g.Group)
	}
}

func TestConvert_IncludePrivate(t *testing.T) {
	rep, err := New(source(t)).Convert(context.Background(), Config{Module: "sdk", IncludePrivate: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "_beta", "gamma", "reset"}, toolNames(rep.Result))
}

func TestConvert_NoPublicMethodsYieldsNoTools(t *testing.T) {
	rep, err := New(source(t)).Convert(context.Background(), Config{Module: "quiet"})
	require.NoError(t, err)
	assert.Empty(t, rep.Result.Tools)
	assert.Empty(t, rep.Groups)
	assert.Equal(t, 1, rep.Counts.Classes)
}

func TestConvert_BackendAndPerGroupDegradation(t *testing.T) {
	backend := fake.Replies(clientReply, "I could not analyse these methods.")
	rep, err := New(source(t), WithBackend(backend), quickClient()).Convert(context.Background(), Config{Module: "sdk", Model: "gpt-test"})
	require.NoError(t, err)

	assert.Equal(t, []string{"alpha_tool", "reset"}, toolNames(rep.Result))
	require.Len(t, rep.Result.Resources, 1)
	assert.Equal(t, "alphas", rep.Result.Resources[0].Name)
	assert.Equal(t, descriptor.TierBackend, rep.Groups[0].Tier)
	assert.Equal(t, descriptor.TierFallback, rep.Groups[1].Tier)
	assert.Equal(t, 1, rep.Counts.FallbackGroups)
	assert.Equal(t, 2, rep.Counts.Tools)
	assert.Equal(t, 1, rep.Counts.Resources)
	require.Len(t, rep.ToolSchemas, 2)
	assert.Equal(t, "alpha_tool", rep.ToolSchemas[0].Name)
	assert.Equal(t, []string{"key"}, rep.ToolSchemas[0].InputSchema.Required)
	require.Contains(t, rep.ToolSchemas[0].InputSchema.Properties, "key")
	assert.Equal(t, "string", rep.ToolSchemas[0].InputSchema.Properties["key"].Type)
	require.Len(t, rep.Advisories, 1)
	assert.Contains(t, rep.Advisories[0], "Admin: ")

	calls := backend.Calls()
	require.Len(t, calls, 2)
	assert.Contains(t, calls[0].Messages[1].Content, "Client class in the sdk SDK")
	assert.Equal(t, "gpt-test", calls[0].Opts["model"])
}

func TestConvert_ExhaustedRetriesDegrade(t *testing.T) {
	backend := fake.New(fake.Step{Err: errors.New("503")})
	rep, err := New(source(t), WithBackend(backend), quickClient()).Convert(context.Background(), Config{Module: "sdk", MaxRetries: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "gamma", "reset"}, toolNames(rep.Result))
	assert.Len(t, backend.Calls(), 4)
	for _, g := range rep.Groups {
		assert.Equal(t, 2, g.Attempts)
	}
}

func TestConvert_ResolutionErrorIsFatal(t *testing.T) {
	rep, err := New(source(t)).Convert(context.Background(), Config{Module: "nonexistent"})
	assert.Nil(t, rep)
	require.Error(t, err)
	assert.True(t, errmodel.IsResolution(err))
}

func TestConvert_Filter(t *testing.T) {
	rep, err := New(source(t)).Convert(context.Background(), Config{Module: "sdk", Filter: "^A"})
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha"}, toolNames(rep.Result))
	assert.Equal(t, 1, rep.Counts.Methods)

	_, err = New(source(t)).Convert(context.Background(), Config{Module: "sdk", Filter: "("})
	require.Error(t, err)
	assert.True(t, errmodel.IsCategory(err, errmodel.CategoryValidation))
}

func TestConvert_PersistsRun(t *testing.T) {
	runs := store.NewMemory()
	rep, err := New(source(t), WithRunStore(runs), WithSourceName("manifest")).Convert(context.Background(), Config{Module: "sdk"})
	require.NoError(t, err)

	list, err := runs.ListRuns(context.Background(), "sdk", 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	rec := list[0]
	assert.Equal(t, rep.RunID.String(), rec.ID)
	assert.Equal(t, "manifest", rec.Source)
	assert.Equal(t, "none", rec.Provider)
	assert.Equal(t, 3, rec.Tools)
	assert.Equal(t, 2, rec.FallbackGroups)

	decoded, err := DecodeReport(rec.Report)
	require.NoError(t, err)
	assert.Equal(t, rep.RunID, decoded.RunID)
	assert.Equal(t, toolNames(rep.Result), toolNames(decoded.Result))
	assert.Equal(t, rep.Counts, decoded.Counts)
	require.Len(t, decoded.ToolSchemas, 3)
	assert.Equal(t, "object", decoded.ToolSchemas[0].InputSchema.Type)
	assert.Equal(t, descriptor.TierFallback, decoded.Groups[0].Tier)
}

type failingStore struct{ *store.Memory }

func (failingStore) SaveRun(context.Context, store.RunRecord) error { return errors.New("disk full") }

func TestConvert_StoreFailureIsAdvisory(t *testing.T) {
	rep, err := New(source(t), WithRunStore(failingStore{store.NewMemory()})).Convert(context.Background(), Config{Module: "sdk"})
	require.NoError(t, err)
	assert.Contains(t, rep.Advisories, "run store: disk full")
}

func TestConvert_Spans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	_, err := New(source(t), WithTracerProvider(tp)).Convert(context.Background(), Config{Module: "sdk"})
	require.NoError(t, err)

	var names []string
	for _, s := range sr.Ended() {
		names = append(names, s.Name())
	}
	assert.Equal(t, []string{"Walker.Discover", "Classify", "Classify", "Convert"}, names)
	root := sr.Ended()[3]
	for _, s := range sr.Ended()[:3] {
		assert.Equal(t, root.SpanContext().SpanID(), s.Parent().SpanID())
	}
}

func TestAnalyze_Fallback(t *testing.T) {
	a, err := New(source(t)).Analyze(context.Background(), Config{Module: "sdk"})
	require.NoError(t, err)
	assert.Equal(t, "sdk", a.Module.Name)

	require.Len(t, a.Groups, 2)
	client := a.Groups[0]
	assert.Equal(t, "Client", client.Group)
	assert.Equal(t, descriptor.TierFallback, client.CategoriesTier)
	require.Len(t, client.Categories, 1)
	assert.Equal(t, "General", client.Categories[0].Name)
	assert.Equal(t, descriptor.TierFallback, client.GroupingTier)
	assert.Empty(t, client.Grouping.ToolGroups)
	assert.Equal(t, []classify.StandaloneTool{
		{Name: "alpha", Description: "Standalone method"},
		{Name: "gamma", Description: "Standalone method"},
	}, client.Grouping.StandaloneTools)

	require.Len(t, client.Methods, 2)
	alpha := client.Methods[0]
	assert.Equal(t, "Execute alpha operation", alpha.Description)
	assert.Equal(t, descriptor.TierFallback, alpha.DescriptionTier)
	assert.Equal(t, descriptor.TierFallback, alpha.ParametersTier)
	require.NotEmpty(t, alpha.Parameters)
	last := alpha.Parameters[len(alpha.Parameters)-1]
	assert.Equal(t, classify.ParamDescription{Name: "key", Description: "Parameter key", Type: "str", Required: true, Constraints: "No constraints specified"}, last)
	assert.Empty(t, client.Methods[1].Parameters)

	assert.Equal(t, "Admin", a.Groups[1].Group)
}

func TestAnalyze_Backend(t *testing.T) {
	backend := fake.Replies(
		`{"categories": {"Data": [{"name": "gamma", "reason": "reads"}]}}`,
		`{"tool_groups": [], "standalone_tools": [{"name": "gamma", "description": "alone"}]}`,
		"Read the gamma value.",
	)
	a, err := New(source(t), WithBackend(backend), quickClient()).Analyze(context.Background(), Config{Module: "sdk", Filter: "^gamma$"})
	require.NoError(t, err)

	require.Len(t, a.Groups, 1)
	g := a.Groups[0]
	assert.Equal(t, descriptor.TierBackend, g.CategoriesTier)
	assert.Equal(t, "Data", g.Categories[0].Name)
	assert.Equal(t, descriptor.TierBackend, g.GroupingTier)
	assert.Equal(t, []classify.StandaloneTool{{Name: "gamma", Description: "alone"}}, g.Grouping.StandaloneTools)
	require.Len(t, g.Methods, 1)
	assert.Equal(t, "Read the gamma value.", g.Methods[0].Description)
	assert.Equal(t, descriptor.TierBackend, g.Methods[0].DescriptionTier)
	assert.Len(t, backend.Calls(), 3)
}

func TestAnalyze_Errors(t *testing.T) {
	_, err := New(source(t)).Analyze(context.Background(), Config{Module: "nonexistent"})
	assert.True(t, errmodel.IsResolution(err))

	_, err = New(source(t)).Analyze(context.Background(), Config{Module: "sdk", Filter: "("})
	assert.True(t, errmodel.IsCategory(err, errmodel.CategoryValidation))
}

func TestResolveBackend(t *testing.T) {
	ctx := context.Background()

	b, err := ResolveBackend(ctx, Config{})
	assert.NoError(t, err)
	assert.Nil(t, b)
	b, err = ResolveBackend(ctx, Config{Provider: "none"})
	assert.NoError(t, err)
	assert.Nil(t, b)

	b, err = ResolveBackend(ctx, Config{Provider: "fake"})
	require.NoError(t, err)
	assert.Equal(t, "fake", b.Name())

	t.Setenv("OPENAI_API_KEY", "")
	b, err = ResolveBackend(ctx, Config{Provider: "openai"})
	assert.Error(t, err)
	assert.Nil(t, b)

	b, err = ResolveBackend(ctx, Config{Provider: "openai", APIKey: "sk-test"})
	require.NoError(t, err)
	assert.Equal(t, "openai", b.Name())

	_, err = ResolveBackend(ctx, Config{Provider: "bogus"})
	assert.Error(t, err)
}
