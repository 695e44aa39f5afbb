package journey

import "sort"

// ItemSet is a membership-only set of item ids. It is treated as immutable
// once it is part of a State; With returns a copy.
type ItemSet map[string]struct{}

// NewItemSet builds a set from ids, dropping empty strings and duplicates.
func NewItemSet(ids ...string) ItemSet {
	s := make(ItemSet, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		s[id] = struct{}{}
	}
	return s
}

func (s ItemSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

func (s ItemSet) Len() int {
	return len(s)
}

// With returns a copy of s that also contains id.
func (s ItemSet) With(id string) ItemSet {
	out := make(ItemSet, len(s)+1)
	for k := range s {
		out[k] = struct{}{}
	}
	out[id] = struct{}{}
	return out
}

// Sorted returns the ids in lexical order. Used wherever the set is
// serialized so equal sets always encode the same way.
func (s ItemSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
