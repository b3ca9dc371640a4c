package command

import (
	"github.com/icinga/icingad/pkg/checkable"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"time"
)

func processHostCheckResult(p *Processor, ts time.Time, args []string) error {
	h, err := p.host(args[0])
	if err != nil {
		return err
	}

	status, err := parseInt(args[1], "status")
	if err != nil {
		return err
	}

	// UP, DOWN or UNREACHABLE.
	if status < 0 || status > 2 {
		return errors.Errorf("invalid status %d for host %q", status, h.Name())
	}

	return p.processCheckResult(h, checkable.State(status), args[2], ts)
}

func processServiceCheckResult(p *Processor, ts time.Time, args []string) error {
	s, err := p.service(args[0], args[1])
	if err != nil {
		return err
	}

	status, err := parseInt(args[2], "status")
	if err != nil {
		return err
	}

	if status < int64(checkable.StateOk) || status > int64(checkable.StateUnknown) {
		return errors.Errorf("invalid status %d for service %q", status, s.Name())
	}

	return p.processCheckResult(s, checkable.State(status), args[3], ts)
}

// processCheckResult records a passive check result. A problem triggers the checkable's
// flexible downtimes, a recovery removes the acknowledgement.
func (p *Processor) processCheckResult(c *checkable.Checkable, state checkable.State, output string, ts time.Time) error {
	if !c.PassiveChecksEnabled() {
		return errors.Errorf("passive checks are disabled for %s %q", c.Kind(), c.Name())
	}

	now := p.manager.Now()
	acknowledged := c.Acknowledgement(now) != checkable.AcknowledgementNone

	c.ProcessCheckResult(state, output, ts)

	if state != checkable.StateOk {
		p.manager.TriggerAll(c)
	} else if acknowledged {
		p.clearAcknowledgement(c)
	}

	p.logger.Debugw("Processed passive check result",
		zap.String("object", c.Name()), zap.Uint8("state", uint8(state)))

	return nil
}

func scheduleHostCheck(forced bool) handler {
	return func(p *Processor, _ time.Time, args []string) error {
		h, err := p.host(args[0])
		if err != nil {
			return err
		}

		planned, err := parseTimeArg(args[1], "check time")
		if err != nil {
			return err
		}

		p.scheduleCheck(h, planned, forced)

		return nil
	}
}

func scheduleSvcCheck(forced bool) handler {
	return func(p *Processor, _ time.Time, args []string) error {
		s, err := p.service(args[0], args[1])
		if err != nil {
			return err
		}

		planned, err := parseTimeArg(args[2], "check time")
		if err != nil {
			return err
		}

		p.scheduleCheck(s, planned, forced)

		return nil
	}
}

func scheduleHostSvcChecks(forced bool) handler {
	return func(p *Processor, _ time.Time, args []string) error {
		services, err := p.servicesOf(args[0])
		if err != nil {
			return err
		}

		planned, err := parseTimeArg(args[1], "check time")
		if err != nil {
			return err
		}

		for _, s := range services {
			p.scheduleCheck(s, planned, forced)
		}

		return nil
	}
}

// scheduleCheck reschedules the next check. Unless forced, a check is only moved to an earlier time.
func (p *Processor) scheduleCheck(c *checkable.Checkable, planned time.Time, forced bool) {
	if next := c.NextCheck(); !forced && !next.IsZero() && planned.After(next) {
		p.logger.Debugw("Ignoring reschedule request for a later time than the next check",
			zap.String("object", c.Name()), zap.Time("planned", planned), zap.Time("next", next))

		return
	}

	c.ScheduleCheck(planned, forced)
}

func setActiveChecks(enabled bool) objectHandler {
	return func(p *Processor, c *checkable.Checkable) error {
		c.SetActiveChecksEnabled(enabled)
		p.logger.Debugw("Changed active checks", zap.String("object", c.Name()), zap.Bool("enabled", enabled))

		return nil
	}
}

func setPassiveChecks(enabled bool) objectHandler {
	return func(p *Processor, c *checkable.Checkable) error {
		c.SetPassiveChecksEnabled(enabled)
		p.logger.Debugw("Changed passive checks", zap.String("object", c.Name()), zap.Bool("enabled", enabled))

		return nil
	}
}
