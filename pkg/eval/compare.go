package eval

import (
	"reflect"
	"sort"

	"github.com/wilhg/toolspec/pkg/descriptor"
)

// Delta lists the tool and resource names that differ between two results.
type Delta struct {
	AddedTools       []string `json:"added_tools"`
	RemovedTools     []string `json:"removed_tools"`
	ChangedTools     []string `json:"changed_tools"`
	AddedResources   []string `json:"added_resources"`
	RemovedResources []string `json:"removed_resources"`
	ChangedResources []string `json:"changed_resources"`
}

// Empty reports whether the results were equivalent.
func (d Delta) Empty() bool {
	return len(d.AddedTools)+len(d.RemovedTools)+len(d.ChangedTools)+
		len(d.AddedResources)+len(d.RemovedResources)+len(d.ChangedResources) == 0
}

// Compare matches tools and resources by name. When a name repeats, the
// first occurrence is compared. Every list is sorted.
func Compare(before, after descriptor.AnalysisResult) Delta {
	var d Delta
	d.AddedTools, d.RemovedTools, d.ChangedTools = diff(index(before.Tools, toolName), index(after.Tools, toolName))
	d.AddedResources, d.RemovedResources, d.ChangedResources = diff(index(before.Resources, resourceName), index(after.Resources, resourceName))
	return d
}

func toolName(t descriptor.ToolDescriptor) string         { return t.Name }
func resourceName(r descriptor.ResourceDescriptor) string { return r.Name }

func index[T any](xs []T, name func(T) string) map[string]T {
	out := make(map[string]T, len(xs))
	for _, x := range xs {
		if _, ok := out[name(x)]; !ok {
			out[name(x)] = x
		}
	}
	return out
}

func diff[T any](a, b map[string]T) (added, removed, changed []string) {
	added, removed, changed = []string{}, []string{}, []string{}
	for n, x := range a {
		y, ok := b[n]
		switch {
		case !ok:
			removed = append(removed, n)
		case !reflect.DeepEqual(x, y):
			changed = append(changed, n)
		}
	}
	for n := range b {
		if _, ok := a[n]; !ok {
			added = append(added, n)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)
	sort.Strings(changed)
	return added, removed, changed
}
