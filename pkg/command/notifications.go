package command

import (
	"github.com/icinga/icingad/pkg/checkable"
	"go.uber.org/zap"
	"time"
)

// Bit of the options argument of custom notifications forcing the notification.
const notificationOptionForced = 2

func setNotifications(enabled bool) objectHandler {
	return func(p *Processor, c *checkable.Checkable) error {
		c.SetNotificationsEnabled(enabled)
		p.logger.Debugw("Changed notifications", zap.String("object", c.Name()), zap.Bool("enabled", enabled))

		return nil
	}
}

func sendCustomHostNotification(p *Processor, _ time.Time, args []string) error {
	h, err := p.host(args[0])
	if err != nil {
		return err
	}

	return p.sendCustomNotification(h, args[1:])
}

func sendCustomSvcNotification(p *Processor, _ time.Time, args []string) error {
	s, err := p.service(args[0], args[1])
	if err != nil {
		return err
	}

	return p.sendCustomNotification(s, args[2:])
}

// sendCustomNotification parses options;author;comment.
func (p *Processor) sendCustomNotification(c *checkable.Checkable, args []string) error {
	options, err := parseInt(args[0], "options")
	if err != nil {
		return err
	}

	forced := options&notificationOptionForced != 0
	c.RequestCustomNotification(forced)

	p.logger.Infow("Requested custom notification",
		zap.String("object", c.Name()), zap.String("author", args[1]), zap.Bool("forced", forced))

	return nil
}

func delayHostNotification(p *Processor, _ time.Time, args []string) error {
	h, err := p.host(args[0])
	if err != nil {
		return err
	}

	return p.delayNotification(h, args[1])
}

func delaySvcNotification(p *Processor, _ time.Time, args []string) error {
	s, err := p.service(args[0], args[1])
	if err != nil {
		return err
	}

	return p.delayNotification(s, args[2])
}

func (p *Processor) delayNotification(c *checkable.Checkable, until string) error {
	t, err := parseTimeArg(until, "notification time")
	if err != nil {
		return err
	}

	c.DelayNotifications(t)
	p.logger.Debugw("Delayed notifications", zap.String("object", c.Name()), zap.Time("until", t))

	return nil
}
