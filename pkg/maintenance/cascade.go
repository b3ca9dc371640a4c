package maintenance

import (
	"github.com/icinga/icingad/pkg/checkable"
	"github.com/icinga/icingad/pkg/downtime"
	"github.com/icinga/icingad/pkg/history"
	"go.uber.org/zap"
	"time"
)

// cascade carries the state of one top-level trigger call.
type cascade struct {
	now       time.Time
	visited   map[string]struct{}
	touched   []*checkable.Checkable
	triggered []triggered
}

type triggered struct {
	owner    *checkable.Checkable
	downtime *downtime.Downtime
}

func newCascade(now time.Time) *cascade {
	return &cascade{now: now, visited: make(map[string]struct{})}
}

func (cc *cascade) touch(c *checkable.Checkable) {
	for _, t := range cc.touched {
		if t == c {
			return
		}
	}

	cc.touched = append(cc.touched, c)
}

// TriggerAll triggers all downtimes of c and the downtimes depending on them.
func (m *Manager) TriggerAll(c *checkable.Checkable) {
	c.Lock()
	ids := c.Downtimes().Ids()
	c.Unlock()

	cc := newCascade(m.now())
	for _, id := range ids {
		m.trigger(cc, c, id)
	}

	m.finish(cc)
}

// TriggerOne triggers the downtime with the given id and the downtimes depending on it.
// Downtimes outside their window are not triggered. A downtime keeps the time it was first triggered at.
func (m *Manager) TriggerOne(id string) {
	cc := newCascade(m.now())
	m.trigger(cc, nil, id)
	m.finish(cc)
}

// trigger visits the downtime with the given id, then its children depth-first.
// If owner is nil, it is looked up in the index.
func (m *Manager) trigger(cc *cascade, owner *checkable.Checkable, id string) {
	if _, ok := cc.visited[id]; ok {
		return
	}
	cc.visited[id] = struct{}{}

	if owner == nil {
		if owner = m.index.Lookup(id); owner == nil {
			return
		}
	}

	owner.Lock()
	d := owner.Downtimes().Get(id)
	if d == nil || !d.InWindow(cc.now) {
		owner.Unlock()
		return
	}

	if d.TriggerTime.IsZero() {
		d.TriggerTime = cc.now
		cc.triggered = append(cc.triggered, triggered{owner: owner, downtime: d.Clone()})
	}

	children := d.TriggerIds()
	owner.Unlock()

	cc.touch(owner)

	for _, child := range children {
		m.trigger(cc, nil, child)
	}
}

func (m *Manager) finish(cc *cascade) {
	for _, c := range cc.touched {
		c.NotifyAttributeChanged(checkable.AttrDowntimes)
	}

	for _, t := range cc.triggered {
		DowntimesTotal.WithLabelValues("triggered").Inc()
		m.logger.Debugw("Triggered downtime",
			zap.String("object", t.owner.Name()), zap.String("id", t.downtime.Id), zap.Time("at", cc.now))

		m.record(history.DowntimeTriggered, t.owner, t.downtime)
	}
}
