package eval

import (
	"reflect"
	"testing"

	"github.com/wilhg/toolspec/pkg/descriptor"
)

func TestCompare(t *testing.T) {
	before := descriptor.AnalysisResult{
		Tools: []descriptor.ToolDescriptor{
			{Name: "get", Description: "Execute get operation"},
			{Name: "put", Description: "Execute put operation"},
			{Name: "drop"},
		},
		Resources: []descriptor.ResourceDescriptor{{Name: "items", Methods: []string{"get"}}},
	}
	after := descriptor.AnalysisResult{
		Tools: []descriptor.ToolDescriptor{
			{Name: "get", Description: "Fetch an item"},
			{Name: "put", Description: "Execute put operation"},
			{Name: "list"},
		},
		Resources: []descriptor.ResourceDescriptor{{Name: "items", Methods: []string{"get"}}, {Name: "users"}},
	}

	d := Compare(before, after)
	want := Delta{
		AddedTools:       []string{"list"},
		RemovedTools:     []string{"drop"},
		ChangedTools:     []string{"get"},
		AddedResources:   []string{"users"},
		RemovedResources: []string{},
		ChangedResources: []string{},
	}
	if !reflect.DeepEqual(d, want) {
		t.Fatalf("delta=%+v want %+v", d, want)
	}
	if d.Empty() {
		t.Fatal("delta reported empty")
	}
	if !Compare(after, after).Empty() {
		t.Fatal("self comparison not empty")
	}
}
