// Package fake provides a scripted LLM for tests and offline runs.
package fake

import (
	"context"
	"sync"

	"github.com/wilhg/toolspec/pkg/adapters/llm"
)

// Step is one scripted reply: Err is returned when set, else Text.
type Step struct {
	Text string
	Err  error
}

// EmptyReply is what an unscripted fake answers.
const EmptyReply = `{"tools": [], "resources": []}`

// Call records one Generate invocation.
type Call struct {
	Messages []llm.Message
	Opts     map[string]any
}

// LLM replays its script in order, repeating the last step once exhausted.
type LLM struct {
	mu    sync.Mutex
	steps []Step
	calls []Call
}

// New returns a fake that replies with steps in order.
func New(steps ...Step) *LLM { return &LLM{steps: steps} }

// Replies is shorthand for a script of successful text replies.
func Replies(texts ...string) *LLM {
	steps := make([]Step, len(texts))
	for i, t := range texts {
		steps[i] = Step{Text: t}
	}
	return New(steps...)
}

func (f *LLM) Name() string { return "fake" }

func (f *LLM) Generate(ctx context.Context, messages []llm.Message, opts map[string]any) (llm.GenerateResult, error) {
	f.mu.Lock()
	i := len(f.calls)
	f.calls = append(f.calls, Call{Messages: append([]llm.Message(nil), messages...), Opts: opts})
	var st Step
	switch {
	case len(f.steps) == 0:
		st = Step{Text: EmptyReply}
	case i < len(f.steps):
		st = f.steps[i]
	default:
		st = f.steps[len(f.steps)-1]
	}
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return llm.GenerateResult{}, err
	}
	if st.Err != nil {
		return llm.GenerateResult{}, st.Err
	}
	model, _ := llm.String(opts, llm.OptModel)
	return llm.GenerateResult{Text: st.Text, Model: model}, nil
}

// Calls returns the recorded invocations.
func (f *LLM) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// Factory builds a fake from cfg["replies"] ([]string); absent means unscripted.
func Factory(_ context.Context, cfg map[string]any) (llm.LLM, error) {
	replies, _ := cfg["replies"].([]string)
	return Replies(replies...), nil
}

func init() {
	_ = llm.Register("fake", Factory)
}
