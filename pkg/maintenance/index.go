package maintenance

import (
	"github.com/icinga/icingad/pkg/checkable"
	"sync"
	"weak"
)

// Index maps downtime ids and legacy ids to the checkables owning them.
//
// It is a cache derived from the checkables' downtime stores, replaced as a whole on rebuild,
// and may lag behind them until the next rebuild. Owners are referenced weakly
// so that the index never keeps a removed checkable alive.
type Index struct {
	mu      sync.Mutex
	owners  map[string]weak.Pointer[checkable.Checkable]
	legacy  map[int]string
	pending bool
}

// Lookup returns the checkable owning the downtime with the given id
// as of the last rebuild, or nil.
func (i *Index) Lookup(id string) *checkable.Checkable {
	i.mu.Lock()
	wp, ok := i.owners[id]
	i.mu.Unlock()

	if !ok {
		return nil
	}

	return wp.Value()
}

// LookupLegacy returns the id of the downtime with the given legacy id
// as of the last rebuild, or an empty string.
func (i *Index) LookupLegacy(legacyId int) string {
	i.mu.Lock()
	defer i.mu.Unlock()

	return i.legacy[legacyId]
}

// markPending reports whether a refresh has to be scheduled, i.e. none is pending yet.
func (i *Index) markPending() bool {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.pending {
		return false
	}

	i.pending = true

	return true
}

func (i *Index) clearPending() {
	i.mu.Lock()
	i.pending = false
	i.mu.Unlock()
}

func (i *Index) swap(owners map[string]weak.Pointer[checkable.Checkable], legacy map[int]string) {
	i.mu.Lock()
	i.owners = owners
	i.legacy = legacy
	i.mu.Unlock()
}
