// Package downtime provides scheduled downtimes and the per-checkable store holding them.
package downtime

import (
	"sort"
	"time"
)

// Downtime is a scheduled maintenance window of a checkable.
//
// A fixed downtime is in effect for its whole [StartTime, EndTime] window.
// A flexible one only takes effect after it has been triggered, see IsActive.
type Downtime struct {
	Id        string    `json:"id"`
	LegacyId  int       `json:"legacy_id"`
	EntryTime time.Time `json:"entry_time"`
	Author    string    `json:"author"`
	Comment   string    `json:"comment"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Fixed     bool      `json:"fixed"`

	// Duration only matters for flexible downtimes.
	Duration time.Duration `json:"duration"`

	// TriggeredBy is the id of the downtime which triggers this one, if any.
	TriggeredBy string `json:"triggered_by"`

	// Triggers contains the ids of the downtimes this one triggers.
	Triggers map[string]struct{} `json:"triggers"`

	// TriggerTime is the zero time until the downtime has been triggered.
	TriggerTime time.Time `json:"trigger_time"`
}

// InWindow reports whether now is within [StartTime, EndTime].
func (d *Downtime) InWindow(now time.Time) bool {
	return !now.Before(d.StartTime) && !now.After(d.EndTime)
}

// IsTriggered reports whether the downtime has been triggered.
func (d *Downtime) IsTriggered() bool {
	return !d.TriggerTime.IsZero()
}

// IsActive reports whether the downtime is in effect at now.
//
// A flexible downtime counts as active once Duration has passed since it was triggered,
// not during that period.
// TODO(downtimes): Clarify with upstream whether flexible downtimes should rather be active
// within [TriggerTime, TriggerTime+Duration] before changing this.
func (d *Downtime) IsActive(now time.Time) bool {
	if !d.InWindow(now) {
		return false
	}

	if d.Fixed {
		return true
	}

	if !d.IsTriggered() {
		return false
	}

	return d.TriggerTime.Add(d.Duration).Before(now)
}

// IsExpired reports whether the downtime's window has passed.
func (d *Downtime) IsExpired(now time.Time) bool {
	return d.EndTime.Before(now)
}

// AddTrigger registers the downtime id as triggered by d.
func (d *Downtime) AddTrigger(id string) {
	if d.Triggers == nil {
		d.Triggers = make(map[string]struct{})
	}

	d.Triggers[id] = struct{}{}
}

// TriggerIds returns the sorted ids of the downtimes triggered by d.
func (d *Downtime) TriggerIds() []string {
	ids := make([]string, 0, len(d.Triggers))
	for id := range d.Triggers {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	return ids
}

// Clone returns a deep copy of d.
func (d *Downtime) Clone() *Downtime {
	clone := *d
	if d.Triggers != nil {
		clone.Triggers = make(map[string]struct{}, len(d.Triggers))
		for id := range d.Triggers {
			clone.Triggers[id] = struct{}{}
		}
	}

	return &clone
}
