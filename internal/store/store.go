// Package store holds sidebar UI state shared between the thread list and
// its views.
package store

import (
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/tOgg1/margin/internal/threading"
)

// Store is the sidebar's selection, expansion, filter, and sort state.
// Subscribers run after every change, outside the lock.
type Store struct {
	mu       sync.Mutex
	selected map[string]struct{}
	expanded map[string]struct{}
	focused  string
	filter   string
	sort     threading.SortKey

	nextSub int
	subs    map[int]func()
}

// New returns an empty store sorted by sortKey.
func New(sortKey threading.SortKey) *Store {
	if sortKey == "" {
		sortKey = threading.SortLocation
	}
	return &Store{
		selected: make(map[string]struct{}),
		expanded: make(map[string]struct{}),
		sort:     sortKey,
		subs:     make(map[int]func()),
	}
}

// Subscribe registers fn to run after every state change and returns a
// function that removes it.
func (s *Store) Subscribe(fn func()) func() {
	if fn == nil {
		return func() {}
	}
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// update applies fn under the lock and notifies subscribers when it reports
// a change.
func (s *Store) update(fn func() bool) {
	s.mu.Lock()
	changed := fn()
	var subs []func()
	if changed {
		keys := make([]int, 0, len(s.subs))
		for id := range s.subs {
			keys = append(keys, id)
		}
		sort.Ints(keys)
		for _, id := range keys {
			subs = append(subs, s.subs[id])
		}
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn()
	}
}

// Select replaces the selection with ids.
func (s *Store) Select(ids ...string) {
	s.update(func() bool {
		next := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			if id = strings.TrimSpace(id); id != "" {
				next[id] = struct{}{}
			}
		}
		if sameKeys(s.selected, next) {
			return false
		}
		s.selected = next
		return true
	})
}

// ToggleSelected adds or removes id from the selection.
func (s *Store) ToggleSelected(id string) {
	id = strings.TrimSpace(id)
	if id == "" {
		return
	}
	s.update(func() bool {
		if _, ok := s.selected[id]; ok {
			delete(s.selected, id)
		} else {
			s.selected[id] = struct{}{}
		}
		return true
	})
}

// ClearSelection empties the selection.
func (s *Store) ClearSelection() {
	s.update(func() bool {
		if len(s.selected) == 0 {
			return false
		}
		s.selected = make(map[string]struct{})
		return true
	})
}

// Selected returns the selected IDs in sorted order.
func (s *Store) Selected() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.selected))
	for id := range s.selected {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// HasSelection reports whether any annotation is selected.
func (s *Store) HasSelection() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.selected) > 0
}

// IsSelected reports whether id is selected.
func (s *Store) IsSelected(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.selected[id]
	return ok
}

// SetFocused marks id as the focused thread.
func (s *Store) SetFocused(id string) {
	s.update(func() bool {
		if s.focused == id {
			return false
		}
		s.focused = id
		return true
	})
}

// Focused returns the focused thread ID.
func (s *Store) Focused() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.focused
}

// ToggleExpanded flips whether id's body is shown in full.
func (s *Store) ToggleExpanded(id string) {
	if id == "" {
		return
	}
	s.update(func() bool {
		if _, ok := s.expanded[id]; ok {
			delete(s.expanded, id)
		} else {
			s.expanded[id] = struct{}{}
		}
		return true
	})
}

// IsExpanded reports whether id's body is expanded.
func (s *Store) IsExpanded(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.expanded[id]
	return ok
}

// SetFilter sets the thread filter query.
func (s *Store) SetFilter(query string) {
	s.update(func() bool {
		if s.filter == query {
			return false
		}
		s.filter = query
		return true
	})
}

// Filter returns the thread filter query.
func (s *Store) Filter() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter
}

// SetSort changes the thread order.
func (s *Store) SetSort(key threading.SortKey) {
	s.update(func() bool {
		if s.sort == key {
			return false
		}
		s.sort = key
		return true
	})
}

// CycleSort advances to the next sort key and returns it.
func (s *Store) CycleSort() threading.SortKey {
	var next threading.SortKey
	s.update(func() bool {
		s.sort = s.sort.Next()
		next = s.sort
		return true
	})
	return next
}

// Sort returns the current thread order.
func (s *Store) Sort() threading.SortKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sort
}

func sameKeys(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}
