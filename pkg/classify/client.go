// Package classify turns groups of discovered methods into tool and resource
// definitions.
//
// A Client asks an analysis backend (any llm.LLM) first. Transport failures
// are retried up to the attempt limit with exponential backoff; once attempts
// are exhausted, a malformed reply is received, or no backend is configured,
// the group degrades to Fallback, which derives one tool per method from its
// name alone. Classify never fails: the Outcome records which tier produced
// the result.
package classify

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wilhg/toolspec/pkg/adapters/llm"
	"github.com/wilhg/toolspec/pkg/descriptor"
	"github.com/wilhg/toolspec/pkg/errmodel"
	"github.com/wilhg/toolspec/pkg/introspect"
	"github.com/wilhg/toolspec/pkg/logging"
	"github.com/wilhg/toolspec/pkg/prompt"
)

const subsystem = "classify"

// Request settings sent with every backend call.
const (
	DefaultMaxRetries  = 3
	DefaultBackoffUnit = time.Second
	Temperature        = 0.1
	MaxOutputTokens    = 4000
)

// ErrNoBackend is the advisory recorded when no backend is configured.
var ErrNoBackend = errors.New("no analysis backend configured")

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Outcome is the result of classifying one group.
type Outcome struct {
	Group        string                    `json:"group"`
	Methods      int                       `json:"methods"`
	Tier         descriptor.Tier           `json:"tier"`
	Attempts     int                       `json:"attempts"`
	PromptTokens int                       `json:"prompt_tokens"`
	Advisory     string                    `json:"advisory,omitempty"`
	Err          error                     `json:"-"`
	Result       descriptor.AnalysisResult `json:"-"`
}

// Client classifies method groups. It is safe for sequential use; calls for
// one group never overlap.
type Client struct {
	backend     llm.LLM
	model       string
	module      string
	maxAttempts int
	unit        time.Duration
	sleep       SleepFunc
	prompts     *prompt.Store
	estimate    prompt.TokenEstimator
	tracer      trace.Tracer
}

// Option configures a Client.
type Option func(*Client)

// WithBackend sets the analysis backend. A nil backend forces Fallback.
func WithBackend(b llm.LLM) Option { return func(c *Client) { c.backend = b } }

// WithModel overrides the backend's default model.
func WithModel(model string) Option { return func(c *Client) { c.model = model } }

// WithModule names the SDK in composed requests.
func WithModule(name string) Option { return func(c *Client) { c.module = name } }

// WithMaxRetries sets the attempt limit per call. Values below 1 mean 1.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n < 1 {
			n = 1
		}
		c.maxAttempts = n
	}
}

// WithBackoffUnit sets the base wait; the i-th retry waits 2^i units.
func WithBackoffUnit(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.unit = d
		}
	}
}

// WithSleep replaces the wait between attempts.
func WithSleep(fn SleepFunc) Option {
	return func(c *Client) {
		if fn != nil {
			c.sleep = fn
		}
	}
}

// WithPrompts replaces the prompt store.
func WithPrompts(s *prompt.Store) Option {
	return func(c *Client) {
		if s != nil {
			c.prompts = s
		}
	}
}

// WithEstimator sets the prompt token estimator.
func WithEstimator(est prompt.TokenEstimator) Option {
	return func(c *Client) {
		if est != nil {
			c.estimate = est
		}
	}
}

// WithTracerProvider sets the tracer provider for classification spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) {
		if tp != nil {
			c.tracer = tp.Tracer("classify")
		}
	}
}

// New builds a Client. Without WithBackend every call uses Fallback.
func New(opts ...Option) *Client {
	c := &Client{
		maxAttempts: DefaultMaxRetries,
		unit:        DefaultBackoffUnit,
		sleep:       sleepCtx,
		tracer:      otel.Tracer("classify"),
		module:      "target",
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.prompts == nil {
		c.prompts = prompt.Defaults()
	}
	if c.estimate == nil {
		model := c.model
		if model == "" {
			model = "gpt-4o"
		}
		c.estimate = prompt.LazyEstimator(model)
	}
	return c
}

// HasBackend reports whether a backend is configured.
func (c *Client) HasBackend() bool { return c.backend != nil }

// Compose renders the group request: the group name and each method as
// name(param, ...), without types.
func (c *Client) Compose(group string, methods []descriptor.CallableDescriptor) (string, error) {
	sigs := make([]string, 0, len(methods))
	for _, m := range methods {
		sigs = append(sigs, m.Name+"("+strings.Join(introspect.ParamNames(m), ", ")+")")
	}
	return c.prompts.Render(prompt.NameGroupAnalysis, map[string]any{
		"Group":      group,
		"Module":     c.module,
		"Signatures": sigs,
	})
}

// Classify produces tools and resources for one group. It does not modify methods.
func (c *Client) Classify(ctx context.Context, group string, methods []descriptor.CallableDescriptor) Outcome {
	ctx, span := c.tracer.Start(ctx, "Classify", trace.WithAttributes(
		attribute.String("group", group),
		attribute.Int("methods", len(methods)),
	))
	defer span.End()

	out := Outcome{Group: group, Methods: len(methods)}
	finish := func() Outcome {
		span.SetAttributes(
			attribute.String("tier", string(out.Tier)),
			attribute.Int("attempts", out.Attempts),
			attribute.Int("prompt_tokens", out.PromptTokens),
		)
		if out.Err != nil {
			out.Advisory = out.Err.Error()
		}
		return out
	}
	fallback := func(err error) Outcome {
		out.Tier = descriptor.TierFallback
		out.Result = Fallback(methods)
		out.Err = err
		logging.Warn(subsystem, err, "group %s: using fallback for %d methods", group, len(methods))
		return finish()
	}

	if c.backend == nil {
		return fallback(ErrNoBackend)
	}
	request, err := c.Compose(group, methods)
	if err != nil {
		return fallback(errmodel.System("compose", "could not compose request", map[string]any{"group": group}, err))
	}
	out.PromptTokens = c.estimate(request)

	text, attempts, err := c.dispatch(ctx, group, request)
	out.Attempts = attempts
	if err != nil {
		return fallback(err)
	}
	res, err := ParseAnalysis(text)
	if err != nil {
		// A malformed reply is not retried.
		span.SetStatus(codes.Error, "unparsable reply")
		return fallback(err)
	}
	out.Tier = descriptor.TierBackend
	out.Result = res
	logging.Info(subsystem, "group %s: %d tools, %d resources after %d attempt(s)", group, len(res.Tools), len(res.Resources), attempts)
	return finish()
}

// dispatch sends request until one attempt returns a reply or attempts run
// out, waiting 2^i units after the i-th failure. It returns the reply text,
// the number of attempts made, and the last transport error.
func (c *Client) dispatch(ctx context.Context, key, request string) (string, int, error) {
	system, err := c.prompts.Render(prompt.NameSystem, nil)
	if err != nil {
		return "", 0, errmodel.System("compose", "could not render system prompt", nil, err)
	}
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: system},
		{Role: llm.RoleUser, Content: request},
	}
	opts := map[string]any{llm.OptTemperature: Temperature, llm.OptMaxTokens: MaxOutputTokens}
	if c.model != "" {
		opts[llm.OptModel] = c.model
	}

	b := &backoff.ExponentialBackOff{
		InitialInterval:     c.unit,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         time.Duration(math.MaxInt64),
	}
	b.Reset()

	var last error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		text, err := c.attempt(ctx, key, attempt, messages, opts)
		if err == nil {
			return text, attempt, nil
		}
		last = err
		logging.Warn(subsystem, err, "%s: attempt %d/%d failed", key, attempt, c.maxAttempts)
		if attempt == c.maxAttempts {
			break
		}
		if err := c.sleep(ctx, b.NextBackOff()); err != nil {
			return "", attempt, errmodel.From(err)
		}
	}
	return "", c.maxAttempts, last
}

func (c *Client) attempt(ctx context.Context, key string, n int, messages []llm.Message, opts map[string]any) (string, error) {
	ctx, span := c.tracer.Start(ctx, "Classify.attempt", trace.WithAttributes(
		attribute.String("group", key),
		attribute.Int("attempt", n),
	))
	defer span.End()

	res, err := c.backend.Generate(ctx, messages, opts)
	if err != nil {
		terr := errmodel.WithTrace(ctx, errmodel.Transport("backend", fmt.Sprintf("%s: %v", c.backend.Name(), err), map[string]any{"attempt": n}, err))
		span.RecordError(terr)
		span.SetStatus(codes.Error, "backend failure")
		return "", terr
	}
	span.SetAttributes(attribute.Int("output_tokens", res.OutputTokens))
	return res.Text, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Fallback derives one tool per method from its name. It is pure and total
// and never produces resources.
func Fallback(methods []descriptor.CallableDescriptor) descriptor.AnalysisResult {
	out := descriptor.NewAnalysisResult()
	for _, m := range methods {
		out.Tools = append(out.Tools, descriptor.ToolDescriptor{
			Name:              m.Name,
			Description:       fmt.Sprintf("Execute %s operation", m.Name),
			Parameters:        []descriptor.ParamSpec{},
			ReturnDescription: "Operation result",
		})
	}
	return out
}
