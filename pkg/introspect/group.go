package introspect

import (
	"fmt"
	"regexp"

	"github.com/wilhg/toolspec/pkg/descriptor"
)

// Group is one classification unit: a class name (or the standalone
// sentinel) and its methods in discovery order.
type Group struct {
	Key     string                          `json:"key"`
	Methods []descriptor.CallableDescriptor `json:"methods"`
}

// GroupByClass partitions methods by declaring class. Groups appear in
// first-seen order and keep the input order of their members.
func GroupByClass(methods []descriptor.CallableDescriptor) []Group {
	index := map[string]int{}
	var groups []Group
	for _, m := range methods {
		key := m.GroupKey()
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, Group{Key: key})
		}
		groups[i].Methods = append(groups[i].Methods, m)
	}
	return groups
}

// FilterByPattern keeps methods whose name matches pattern, ignoring case.
// An empty pattern keeps everything.
func FilterByPattern(methods []descriptor.CallableDescriptor, pattern string) ([]descriptor.CallableDescriptor, error) {
	if pattern == "" {
		return methods, nil
	}
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, fmt.Errorf("filter pattern %q: %w", pattern, err)
	}
	out := make([]descriptor.CallableDescriptor, 0, len(methods))
	for _, m := range methods {
		if re.MatchString(m.Name) {
			out = append(out, m)
		}
	}
	return out, nil
}
