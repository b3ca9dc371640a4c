package maintenance

import (
	"github.com/icinga/icingad/pkg/checkable"
	"github.com/icinga/icingad/pkg/downtime"
	"github.com/icinga/icingad/pkg/history"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"time"
)

// Sweep removes all downtimes whose end time lies before now and returns how many it removed.
// Each checkable is notified at most once. Failing to process one checkable does not stop the others.
func (m *Manager) Sweep(now time.Time) int {
	var total int

	for _, c := range m.registry.Checkables() {
		n, err := m.sweep(c, now)
		if err != nil {
			m.logger.Errorw("Can't remove expired downtimes", zap.String("object", c.Name()), zap.Error(err))
		}

		total += n
	}

	if total > 0 {
		DowntimesTotal.WithLabelValues("expired").Add(float64(total))
		m.logger.Infof("Removed %d expired downtimes", total)
		m.Invalidate()
	}

	return total
}

func (m *Manager) sweep(c *checkable.Checkable, now time.Time) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("panic: %v", r)
		}
	}()

	expired := func() []*downtime.Downtime {
		c.Lock()
		defer c.Unlock()

		store := c.Downtimes()
		ids := store.Expired(now)

		expired := make([]*downtime.Downtime, 0, len(ids))
		for _, id := range ids {
			expired = append(expired, store.Get(id))
		}

		store.Remove(ids...)

		return expired
	}()

	n = len(expired)
	if n == 0 {
		return 0, nil
	}

	c.NotifyAttributeChanged(checkable.AttrDowntimes)

	for _, d := range expired {
		m.record(history.DowntimeExpired, c, d)
	}

	return n, nil
}
