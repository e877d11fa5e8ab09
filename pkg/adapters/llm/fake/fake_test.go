package fake

import (
	"context"
	"errors"
	"testing"

	"github.com/wilhg/toolspec/pkg/adapters/llm"
)

func TestScriptReplay(t *testing.T) {
	boom := errors.New("boom")
	f := New(Step{Err: boom}, Step{Text: "a"})
	ctx := context.Background()

	if _, err := f.Generate(ctx, nil, nil); !errors.Is(err, boom) {
		t.Fatalf("step 1 err = %v", err)
	}
	for i := 0; i < 2; i++ {
		res, err := f.Generate(ctx, []llm.Message{{Role: llm.RoleUser, Content: "x"}}, map[string]any{llm.OptModel: "m"})
		if err != nil || res.Text != "a" || res.Model != "m" {
			t.Fatalf("call %d = %+v %v", i, res, err)
		}
	}
	if n := len(f.Calls()); n != 3 {
		t.Fatalf("calls = %d", n)
	}
	if got := f.Calls()[1].Messages[0].Content; got != "x" {
		t.Fatalf("recorded message = %q", got)
	}
}

func TestUnscripted(t *testing.T) {
	res, err := New().Generate(context.Background(), nil, nil)
	if err != nil || res.Text != EmptyReply {
		t.Fatalf("unscripted = %+v %v", res, err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New().Generate(ctx, nil, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("canceled err = %v", err)
	}
}

func TestFactory(t *testing.T) {
	m, err := llm.New(context.Background(), "fake", map[string]any{"replies": []string{"r1"}})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	res, _ := m.Generate(context.Background(), nil, nil)
	if res.Text != "r1" {
		t.Fatalf("text = %q", res.Text)
	}
}
