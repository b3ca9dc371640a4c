// Package checkable implements the monitored objects (hosts and services) and the registry
// keeping track of them and their group memberships.
package checkable

import (
	"fmt"
	"github.com/icinga/icingad/pkg/downtime"
	"sync"
	"time"
)

// Attribute names passed to the attribute changed hook.
const (
	AttrDowntimes       = "downtimes"
	AttrComments        = "comments"
	AttrAcknowledgement = "acknowledgement"
	AttrState           = "state"
	AttrChecks          = "checks"
	AttrNotifications   = "notifications"
)

// Kind distinguishes hosts from services.
type Kind uint8

const (
	KindHost Kind = iota + 1
	KindService
)

// String implements the fmt.Stringer interface.
func (k Kind) String() string {
	switch k {
	case KindHost:
		return "host"
	case KindService:
		return "service"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// State is the numeric check state as used by check plugins.
// Hosts only use 0 (UP), 1 (DOWN) and 2 (UNREACHABLE).
type State uint8

const (
	StateOk State = iota
	StateWarning
	StateCritical
	StateUnknown
)

// AcknowledgementType describes whether and how a problem has been acknowledged.
type AcknowledgementType uint8

const (
	AcknowledgementNone AcknowledgementType = iota
	AcknowledgementNormal
	AcknowledgementSticky
)

// AttributeChangedFunc is called after an attribute of a Checkable has been changed.
type AttributeChangedFunc func(c *Checkable, attr string)

// Checkable is a host or a service.
//
// The downtime store is only safe to access while holding the Checkable's lock (see Lock).
// All other methods do their own locking and must not be called while holding it.
type Checkable struct {
	kind      Kind
	name      string
	host      *Checkable
	onChanged AttributeChangedFunc

	mu     sync.Mutex
	groups []string

	downtimes *downtime.Store
	comments  map[string]*Comment

	state     State
	output    string
	lastCheck time.Time

	nextCheck      time.Time
	forceNextCheck bool
	activeChecks   bool
	passiveChecks  bool

	notifications         bool
	forceNextNotification bool
	notificationDelay     time.Time

	acknowledgement       AcknowledgementType
	acknowledgementExpiry time.Time
}

func newCheckable(kind Kind, name string, host *Checkable, groups []string, onChanged AttributeChangedFunc) *Checkable {
	return &Checkable{
		kind:          kind,
		name:          name,
		host:          host,
		onChanged:     onChanged,
		groups:        append([]string(nil), groups...),
		comments:      make(map[string]*Comment),
		activeChecks:  true,
		passiveChecks: true,
		notifications: true,
	}
}

// Kind returns whether c is a host or a service.
func (c *Checkable) Kind() Kind {
	return c.kind
}

// Name returns the host name for hosts and the full "host!service" name for services.
func (c *Checkable) Name() string {
	if c.host != nil {
		return c.host.name + "!" + c.name
	}

	return c.name
}

// ShortName returns the name without the host prefix.
func (c *Checkable) ShortName() string {
	return c.name
}

// Host returns the host of a service, or c itself for hosts.
func (c *Checkable) Host() *Checkable {
	if c.host != nil {
		return c.host
	}

	return c
}

// Groups returns the names of the groups c is a member of.
func (c *Checkable) Groups() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]string(nil), c.groups...)
}

// InGroup reports whether c is a member of the group.
func (c *Checkable) InGroup(group string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, g := range c.groups {
		if g == group {
			return true
		}
	}

	return false
}

func (c *Checkable) setGroups(groups []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.groups = append([]string(nil), groups...)
}

// Lock acquires c's exclusive lock which guards its downtime store.
func (c *Checkable) Lock() {
	c.mu.Lock()
}

// Unlock releases the lock acquired by Lock.
func (c *Checkable) Unlock() {
	c.mu.Unlock()
}

// Downtimes returns c's downtime store, which may be nil. The caller must hold c's lock.
func (c *Checkable) Downtimes() *downtime.Store {
	return c.downtimes
}

// SetDowntimes replaces c's downtime store. The caller must hold c's lock.
func (c *Checkable) SetDowntimes(store *downtime.Store) {
	c.downtimes = store
}

// NotifyAttributeChanged signals that the given attribute has been changed.
// Must not be called while holding c's lock.
func (c *Checkable) NotifyAttributeChanged(attr string) {
	if c.onChanged != nil {
		c.onChanged(c, attr)
	}
}

// IsInDowntime reports whether any of c's downtimes is in effect at now.
func (c *Checkable) IsInDowntime(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.downtimes.AnyActive(now)
}

// State returns the last known check state.
func (c *Checkable) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

// Output returns the output of the last check.
func (c *Checkable) Output() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.output
}

// LastCheck returns when the last check result has been processed.
func (c *Checkable) LastCheck() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.lastCheck
}

// ProcessCheckResult records a check result.
// A non-sticky acknowledgement is removed once the checkable recovers.
func (c *Checkable) ProcessCheckResult(state State, output string, checkTime time.Time) {
	c.mu.Lock()
	c.state = state
	c.output = output
	c.lastCheck = checkTime

	clearedAck := state == StateOk && c.acknowledgement != AcknowledgementNone
	if clearedAck {
		c.acknowledgement = AcknowledgementNone
		c.acknowledgementExpiry = time.Time{}
	}
	c.mu.Unlock()

	c.NotifyAttributeChanged(AttrState)
	if clearedAck {
		c.NotifyAttributeChanged(AttrAcknowledgement)
	}
}

// ActiveChecksEnabled reports whether active checks are enabled.
func (c *Checkable) ActiveChecksEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.activeChecks
}

// SetActiveChecksEnabled enables or disables active checks.
func (c *Checkable) SetActiveChecksEnabled(enabled bool) {
	c.mu.Lock()
	c.activeChecks = enabled
	c.mu.Unlock()

	c.NotifyAttributeChanged(AttrChecks)
}

// PassiveChecksEnabled reports whether passive check results are accepted.
func (c *Checkable) PassiveChecksEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.passiveChecks
}

// SetPassiveChecksEnabled enables or disables passive checks.
func (c *Checkable) SetPassiveChecksEnabled(enabled bool) {
	c.mu.Lock()
	c.passiveChecks = enabled
	c.mu.Unlock()

	c.NotifyAttributeChanged(AttrChecks)
}

// NextCheck returns when the next check is planned. The zero time means not planned yet.
func (c *Checkable) NextCheck() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.nextCheck
}

// ForceNextCheck reports whether the next check runs regardless of enabled checks and time periods.
func (c *Checkable) ForceNextCheck() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.forceNextCheck
}

// ScheduleCheck plans the next check at the given time.
func (c *Checkable) ScheduleCheck(at time.Time, forced bool) {
	c.mu.Lock()
	c.nextCheck = at
	if forced {
		c.forceNextCheck = true
	}
	c.mu.Unlock()

	c.NotifyAttributeChanged(AttrChecks)
}

// NotificationsEnabled reports whether notifications are enabled.
func (c *Checkable) NotificationsEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.notifications
}

// SetNotificationsEnabled enables or disables notifications.
func (c *Checkable) SetNotificationsEnabled(enabled bool) {
	c.mu.Lock()
	c.notifications = enabled
	c.mu.Unlock()

	c.NotifyAttributeChanged(AttrNotifications)
}

// ForceNextNotification reports whether a custom notification has been requested.
func (c *Checkable) ForceNextNotification() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.forceNextNotification
}

// RequestCustomNotification requests a custom notification. A forced one is sent
// even if notifications are disabled or c is in downtime.
func (c *Checkable) RequestCustomNotification(forced bool) {
	c.mu.Lock()
	c.forceNextNotification = forced || c.forceNextNotification
	c.mu.Unlock()

	c.NotifyAttributeChanged(AttrNotifications)
}

// NotificationDelay returns the time before which no notification may be sent.
func (c *Checkable) NotificationDelay() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.notificationDelay
}

// DelayNotifications suppresses notifications until the given time.
func (c *Checkable) DelayNotifications(until time.Time) {
	c.mu.Lock()
	c.notificationDelay = until
	c.mu.Unlock()

	c.NotifyAttributeChanged(AttrNotifications)
}

// Acknowledgement returns the acknowledgement in effect at now.
// An acknowledgement whose expiry time has passed counts as none.
func (c *Checkable) Acknowledgement(now time.Time) AcknowledgementType {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.acknowledgementExpiry.IsZero() && c.acknowledgementExpiry.Before(now) {
		return AcknowledgementNone
	}

	return c.acknowledgement
}

// Acknowledge acknowledges the current problem. A zero expiry never expires.
func (c *Checkable) Acknowledge(ack AcknowledgementType, expiry time.Time) {
	c.mu.Lock()
	c.acknowledgement = ack
	c.acknowledgementExpiry = expiry
	c.mu.Unlock()

	c.NotifyAttributeChanged(AttrAcknowledgement)
}

// ClearAcknowledgement removes the acknowledgement, if any.
func (c *Checkable) ClearAcknowledgement() {
	c.mu.Lock()
	c.acknowledgement = AcknowledgementNone
	c.acknowledgementExpiry = time.Time{}
	c.mu.Unlock()

	c.NotifyAttributeChanged(AttrAcknowledgement)
}
