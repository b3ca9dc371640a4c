// Package history records downtime, comment and acknowledgement events into an SQL database.
package history

import "time"

// EventType names what happened.
type EventType string

const (
	DowntimeScheduled EventType = "downtime_scheduled"
	DowntimeTriggered EventType = "downtime_triggered"
	DowntimeRemoved   EventType = "downtime_removed"
	DowntimeExpired   EventType = "downtime_expired"
	CommentAdded      EventType = "comment_added"
	CommentRemoved    EventType = "comment_removed"
	AckSet            EventType = "ack_set"
	AckCleared        EventType = "ack_cleared"
)

// Event is a single history entry.
type Event struct {
	Time       time.Time `db:"event_time"`
	Type       EventType `db:"event_type"`
	ObjectType string    `db:"object_type"`
	Object     string    `db:"object_name"`
	// Id of the downtime or comment, empty for acknowledgements.
	ReferenceId string `db:"reference_id"`
	LegacyId    int    `db:"legacy_id"`
	Author      string `db:"author"`
	Text        string `db:"text"`
}

// Sink accepts history events. Record must not block.
type Sink interface {
	Record(Event)
}

// Discard is a Sink dropping all events.
var Discard Sink = discard{}

type discard struct{}

func (discard) Record(Event) {}
