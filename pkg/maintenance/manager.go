// Package maintenance implements the downtime lifecycle: scheduling and removing downtimes,
// the legacy id index, expiration and the trigger cascade of flexible downtimes.
package maintenance

import (
	"context"
	"github.com/google/uuid"
	"github.com/icinga/icinga-go-library/logging"
	"github.com/icinga/icinga-go-library/periodic"
	"github.com/icinga/icingad/pkg/checkable"
	"github.com/icinga/icingad/pkg/downtime"
	"github.com/icinga/icingad/pkg/history"
	"go.uber.org/zap"
	"sync"
	"sync/atomic"
	"time"
)

// Option configures NewManager.
type Option func(*Manager)

// WithClock makes the Manager take the current time from now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// Manager owns the downtime lifecycle of all checkables of a registry.
//
// Lock order: a checkable's lock is never held while taking the index lock or the legacy id lock.
type Manager struct {
	ctx      context.Context
	registry *checkable.Registry
	history  history.Sink
	logger   *logging.Logger
	options  Options
	now      func() time.Time

	index Index

	legacyMu     sync.Mutex
	nextLegacyId int

	sweeperOnce sync.Once
	sweeperMu   sync.Mutex
	sweeper     periodic.Stopper

	ready atomic.Bool
}

// NewManager returns a Manager whose timers run until ctx is done.
func NewManager(
	ctx context.Context, registry *checkable.Registry, sink history.Sink, logger *logging.Logger, options Options,
	opts ...Option,
) *Manager {
	m := &Manager{
		ctx:          ctx,
		registry:     registry,
		history:      sink,
		logger:       logger,
		options:      options,
		now:          time.Now,
		nextLegacyId: 1,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Now returns the current time as seen by the Manager.
func (m *Manager) Now() time.Time {
	return m.now()
}

// Ready reports whether the index has been built at least once.
func (m *Manager) Ready() bool {
	return m.ready.Load()
}

// NextLegacyId allocates a fresh legacy id.
func (m *Manager) NextLegacyId() int {
	m.legacyMu.Lock()
	defer m.legacyMu.Unlock()

	id := m.nextLegacyId
	m.nextLegacyId++

	return id
}

// advanceLegacyId makes sure ids allocated from now on are greater than max.
func (m *Manager) advanceLegacyId(max int) {
	m.legacyMu.Lock()
	defer m.legacyMu.Unlock()

	if m.nextLegacyId <= max {
		m.nextLegacyId = max + 1
	}
}

// AddDowntime schedules a new downtime on c and returns its id.
//
// If triggeredBy is set, the new downtime is registered as child of that downtime, so that
// triggering the parent also triggers it. An unknown parent is logged and ignored.
func (m *Manager) AddDowntime(
	c *checkable.Checkable, author, comment string, start, end time.Time, fixed bool, triggeredBy string,
	duration time.Duration,
) string {
	d := &downtime.Downtime{
		Id:          uuid.NewString(),
		LegacyId:    m.NextLegacyId(),
		EntryTime:   m.now(),
		Author:      author,
		Comment:     comment,
		StartTime:   start,
		EndTime:     end,
		Fixed:       fixed,
		Duration:    duration,
		TriggeredBy: triggeredBy,
	}

	if triggeredBy != "" {
		m.registerChild(triggeredBy, d.Id)
	}

	c.Lock()
	store := c.Downtimes()
	if store == nil {
		store = downtime.NewStore()
		c.SetDowntimes(store)
	}
	store.Add(d)
	c.Unlock()

	c.NotifyAttributeChanged(checkable.AttrDowntimes)
	m.Invalidate()

	DowntimesTotal.WithLabelValues("scheduled").Inc()
	m.logger.Debugw("Scheduled downtime",
		zap.String("object", c.Name()), zap.String("id", d.Id), zap.Int("legacy_id", d.LegacyId),
		zap.Time("start", start), zap.Time("end", end), zap.Bool("fixed", fixed))

	m.record(history.DowntimeScheduled, c, d)

	return d.Id
}

func (m *Manager) registerChild(parentId, childId string) {
	owner := m.Owner(parentId)
	if owner == nil {
		m.logger.Warnw("Can't register downtime as child of an unknown downtime",
			zap.String("id", childId), zap.String("triggered_by", parentId))

		return
	}

	owner.Lock()
	parent := owner.Downtimes().Get(parentId)
	if parent != nil {
		parent.AddTrigger(childId)
	}
	owner.Unlock()

	if parent != nil {
		owner.NotifyAttributeChanged(checkable.AttrDowntimes)
	}
}

// RemoveDowntime removes the downtime with the given id. Unknown ids are ignored.
func (m *Manager) RemoveDowntime(id string) {
	owner := m.index.Lookup(id)
	if owner == nil {
		return
	}

	owner.Lock()
	d := owner.Downtimes().Get(id)
	if d != nil {
		owner.Downtimes().Remove(id)
	}
	owner.Unlock()

	if d == nil {
		return
	}

	owner.NotifyAttributeChanged(checkable.AttrDowntimes)
	m.Invalidate()

	DowntimesTotal.WithLabelValues("removed").Inc()
	m.logger.Debugw("Removed downtime",
		zap.String("object", owner.Name()), zap.String("id", id), zap.Int("legacy_id", d.LegacyId))

	m.record(history.DowntimeRemoved, owner, d)
}

// Owner returns the checkable owning the downtime with the given id, or nil.
// The index result is checked against the checkable's store.
func (m *Manager) Owner(id string) *checkable.Checkable {
	owner := m.index.Lookup(id)
	if owner == nil {
		return nil
	}

	owner.Lock()
	defer owner.Unlock()

	if owner.Downtimes().Get(id) == nil {
		return nil
	}

	return owner
}

// GetDowntime returns a copy of the downtime with the given id, or nil.
func (m *Manager) GetDowntime(id string) *downtime.Downtime {
	owner := m.index.Lookup(id)
	if owner == nil {
		return nil
	}

	owner.Lock()
	defer owner.Unlock()

	if d := owner.Downtimes().Get(id); d != nil {
		return d.Clone()
	}

	return nil
}

// LookupLegacy returns the id of the downtime with the given legacy id, or an empty string.
func (m *Manager) LookupLegacy(legacyId int) string {
	return m.index.LookupLegacy(legacyId)
}

// IsInDowntime reports whether any downtime of c is in effect at now.
func (m *Manager) IsInDowntime(c *checkable.Checkable, now time.Time) bool {
	return c.IsInDowntime(now)
}

// Invalidate marks the index stale. Unless a rebuild is already pending,
// one is scheduled after the cache refresh delay.
func (m *Manager) Invalidate() {
	if m.index.markPending() {
		after(m.ctx, m.options.CacheRefreshDelay, m.Rebuild)
	}
}

// Close stops the expiration sweeper.
func (m *Manager) Close() {
	m.sweeperMu.Lock()
	defer m.sweeperMu.Unlock()

	if m.sweeper != nil {
		m.sweeper.Stop()
	}
}

func (m *Manager) armSweeper() {
	m.sweeperOnce.Do(func() {
		m.sweeperMu.Lock()
		defer m.sweeperMu.Unlock()

		m.sweeper = periodic.Start(m.ctx, m.options.ExpireInterval, func(periodic.Tick) {
			m.Sweep(m.now())
		})

		m.logger.Debugf("Removing expired downtimes every %s", m.options.ExpireInterval)
	})
}

func (m *Manager) record(typ history.EventType, c *checkable.Checkable, d *downtime.Downtime) {
	m.history.Record(history.Event{
		Time:        m.now(),
		Type:        typ,
		ObjectType:  c.Kind().String(),
		Object:      c.Name(),
		ReferenceId: d.Id,
		LegacyId:    d.LegacyId,
		Author:      d.Author,
		Text:        d.Comment,
	})
}
