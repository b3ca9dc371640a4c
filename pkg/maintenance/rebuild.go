package maintenance

import (
	"github.com/icinga/icingad/pkg/checkable"
	"github.com/icinga/icingad/pkg/downtime"
	"go.uber.org/zap"
	"time"
	"weak"
)

type collision struct {
	owner    *checkable.Checkable
	downtime *downtime.Downtime
}

// Rebuild recreates the index from the downtime stores of all checkables and swaps it in.
//
// Downtimes sharing a legacy id with one seen before get a fresh legacy id.
// The legacy id counter is advanced past the greatest legacy id found.
// The first rebuild arms the expiration sweeper.
func (m *Manager) Rebuild() {
	start := time.Now()

	m.index.clearPending()

	owners := make(map[string]weak.Pointer[checkable.Checkable])
	legacy := make(map[int]string)
	var collisions []collision
	var maxLegacyId int

	// The index lock is not held here as each checkable gets locked.
	for _, c := range m.registry.Checkables() {
		wp := weak.Make(c)

		c.Lock()
		for id, d := range c.Downtimes().All() {
			owners[id] = wp

			if d.LegacyId > maxLegacyId {
				maxLegacyId = d.LegacyId
			}

			if _, taken := legacy[d.LegacyId]; taken || d.LegacyId <= 0 {
				collisions = append(collisions, collision{owner: c, downtime: d})
				continue
			}

			legacy[d.LegacyId] = id
		}
		c.Unlock()
	}

	m.advanceLegacyId(maxLegacyId)

	touched := make(map[*checkable.Checkable]struct{})
	for _, col := range collisions {
		// Allocated before locking the owner, see the lock order of Manager.
		fresh := m.NextLegacyId()

		col.owner.Lock()
		// The downtime may have been removed in the meantime, leaving fresh unused.
		if col.owner.Downtimes().Get(col.downtime.Id) == col.downtime {
			old := col.downtime.LegacyId
			col.downtime.LegacyId = fresh
			legacy[col.downtime.LegacyId] = col.downtime.Id
			touched[col.owner] = struct{}{}

			m.logger.Debugw("Reassigned colliding downtime legacy id",
				zap.String("id", col.downtime.Id), zap.Int("old", old), zap.Int("new", col.downtime.LegacyId))
		}
		col.owner.Unlock()
	}

	for c := range touched {
		c.NotifyAttributeChanged(checkable.AttrDowntimes)
	}

	m.index.swap(owners, legacy)

	LegacyIdCollisionsTotal.Add(float64(len(collisions)))
	IndexedDowntimes.Set(float64(len(owners)))
	IndexRebuildSeconds.Observe(time.Since(start).Seconds())

	if !m.ready.Swap(true) {
		m.logger.Infof("Indexed %d downtimes", len(owners))
	}

	m.armSweeper()
}
