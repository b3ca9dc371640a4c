package downtime

import (
	"iter"
	"sort"
	"time"
)

// Store maps downtime ids to the downtimes of a single checkable.
//
// Store does no locking on its own. It must only be accessed while holding the lock of the
// checkable it belongs to. A nil *Store behaves like an empty one for all reading methods.
type Store struct {
	downtimes map[string]*Downtime
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{downtimes: make(map[string]*Downtime)}
}

// Add inserts d, replacing any downtime with the same id.
func (s *Store) Add(d *Downtime) {
	if s.downtimes == nil {
		s.downtimes = make(map[string]*Downtime)
	}

	s.downtimes[d.Id] = d
}

// Remove deletes the given ids and returns how many of them were present.
func (s *Store) Remove(ids ...string) int {
	if s == nil {
		return 0
	}

	var removed int
	for _, id := range ids {
		if _, ok := s.downtimes[id]; ok {
			delete(s.downtimes, id)
			removed++
		}
	}

	return removed
}

// Get returns the downtime with the given id or nil.
func (s *Store) Get(id string) *Downtime {
	if s == nil {
		return nil
	}

	return s.downtimes[id]
}

// All yields all id-downtime pairs in no particular order.
func (s *Store) All() iter.Seq2[string, *Downtime] {
	return func(yield func(string, *Downtime) bool) {
		if s == nil {
			return
		}

		for id, d := range s.downtimes {
			if !yield(id, d) {
				return
			}
		}
	}
}

// Ids returns the sorted ids of all downtimes.
func (s *Store) Ids() []string {
	ids := make([]string, 0, s.Len())
	for id := range s.All() {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	return ids
}

// Expired returns the sorted ids of all downtimes whose window has passed at now.
func (s *Store) Expired(now time.Time) []string {
	var ids []string
	for id, d := range s.All() {
		if d.IsExpired(now) {
			ids = append(ids, id)
		}
	}

	sort.Strings(ids)

	return ids
}

// AnyActive reports whether any downtime is in effect at now.
func (s *Store) AnyActive(now time.Time) bool {
	for _, d := range s.All() {
		if d.IsActive(now) {
			return true
		}
	}

	return false
}

// Len returns the number of downtimes.
func (s *Store) Len() int {
	if s == nil {
		return 0
	}

	return len(s.downtimes)
}

// IsEmpty reports whether the store holds no downtimes.
func (s *Store) IsEmpty() bool {
	return s.Len() == 0
}
