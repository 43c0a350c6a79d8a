package workitem

import "sort"

// Selection tracks which derived items are active for the next
// dispatch. It is always a subset of [0, count); operations referencing
// an index outside that range are no-ops. A fresh selection covers all
// items, matching the reset applied after every new derivation.
type Selection struct {
	count   int
	members map[int]struct{}
}

func NewSelection(count int) *Selection {
	s := &Selection{count: count, members: make(map[int]struct{}, count)}
	s.SelectAll()
	return s
}

// Toggle adds the index if absent and removes it if present.
func (s *Selection) Toggle(index int) {
	if index < 0 || index >= s.count {
		return
	}
	if _, ok := s.members[index]; ok {
		delete(s.members, index)
		return
	}
	s.members[index] = struct{}{}
}

func (s *Selection) SelectAll() {
	for i := 0; i < s.count; i++ {
		s.members[i] = struct{}{}
	}
}

func (s *Selection) DeselectAll() {
	clear(s.members)
}

func (s *Selection) Has(index int) bool {
	_, ok := s.members[index]
	return ok
}

func (s *Selection) Len() int {
	return len(s.members)
}

// Indices returns the selected indices in ascending numeric order,
// regardless of the order they were toggled in.
func (s *Selection) Indices() []int {
	indices := make([]int, 0, len(s.members))
	for i := range s.members {
		indices = append(indices, i)
	}
	sort.Ints(indices)
	return indices
}

// Apply returns the selected items in ascending index order.
func (s *Selection) Apply(items []Item) []Item {
	selected := make([]Item, 0, len(s.members))
	for _, item := range items {
		if s.Has(item.Index) {
			selected = append(selected, item)
		}
	}
	return selected
}
