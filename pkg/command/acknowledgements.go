package command

import (
	"github.com/icinga/icingad/pkg/checkable"
	"github.com/icinga/icingad/pkg/history"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"time"
)

// Value of the sticky argument requesting a sticky acknowledgement.
const stickyAcknowledgement = 2

type acknowledgement struct {
	sticky     bool
	persistent bool
	expiry     time.Time
	author     string
	comment    string
}

// parseAcknowledgement parses sticky;notify;persistent[;timestamp];author;comment.
func (p *Processor) parseAcknowledgement(args []string, expire bool) (acknowledgement, error) {
	var ack acknowledgement

	sticky, err := parseInt(args[0], "sticky")
	if err != nil {
		return ack, err
	}
	ack.sticky = sticky == stickyAcknowledgement

	// args[1] asks for a notification about the acknowledgement, which is up to the notification pipeline.
	if _, err := parseBool(args[1], "notify"); err != nil {
		return ack, err
	}

	if ack.persistent, err = parseBool(args[2], "persistent"); err != nil {
		return ack, err
	}

	rest := args[3:]
	if expire {
		if ack.expiry, err = parseTimeArg(rest[0], "expiry"); err != nil {
			return ack, err
		}

		if !ack.expiry.After(p.manager.Now()) {
			return ack, errors.New("acknowledgement expire time must be in the future")
		}

		rest = rest[1:]
	}

	ack.author, ack.comment = rest[0], rest[1]

	return ack, nil
}

func acknowledgeSvcProblem(expire bool) handler {
	return func(p *Processor, ts time.Time, args []string) error {
		s, err := p.service(args[0], args[1])
		if err != nil {
			return err
		}

		ack, err := p.parseAcknowledgement(args[2:], expire)
		if err != nil {
			return err
		}

		return p.acknowledge(s, ack, ts)
	}
}

func acknowledgeHostProblem(expire bool) handler {
	return func(p *Processor, ts time.Time, args []string) error {
		h, err := p.host(args[0])
		if err != nil {
			return err
		}

		ack, err := p.parseAcknowledgement(args[1:], expire)
		if err != nil {
			return err
		}

		return p.acknowledge(h, ack, ts)
	}
}

func (p *Processor) acknowledge(c *checkable.Checkable, ack acknowledgement, ts time.Time) error {
	if c.State() == checkable.StateOk {
		return errors.Errorf("%s %q is OK", c.Kind(), c.Name())
	}

	typ := checkable.AcknowledgementNormal
	if ack.sticky {
		typ = checkable.AcknowledgementSticky
	}

	cm := p.registry.NewComment(c, checkable.CommentAcknowledgement, ack.author, ack.comment, ack.persistent, ts, ack.expiry)
	c.Acknowledge(typ, ack.expiry)

	p.history.Record(history.Event{
		Time:        p.manager.Now(),
		Type:        history.AckSet,
		ObjectType:  c.Kind().String(),
		Object:      c.Name(),
		ReferenceId: cm.Id,
		LegacyId:    cm.LegacyId,
		Author:      ack.author,
		Text:        ack.comment,
	})

	p.logger.Infow("Acknowledged problem",
		zap.String("object", c.Name()), zap.String("author", ack.author), zap.Bool("sticky", ack.sticky))

	return nil
}

func removeSvcAcknowledgement(p *Processor, _ time.Time, args []string) error {
	s, err := p.service(args[0], args[1])
	if err != nil {
		return err
	}

	p.clearAcknowledgement(s)

	return nil
}

func removeHostAcknowledgement(p *Processor, _ time.Time, args []string) error {
	h, err := p.host(args[0])
	if err != nil {
		return err
	}

	p.clearAcknowledgement(h)

	return nil
}

// clearAcknowledgement removes the acknowledgement together with its comments.
func (p *Processor) clearAcknowledgement(c *checkable.Checkable) {
	c.ClearAcknowledgement()

	for _, cm := range c.RemoveComments(checkable.CommentAcknowledgement) {
		p.recordComment(history.CommentRemoved, c, cm)
	}

	p.history.Record(history.Event{
		Time:       p.manager.Now(),
		Type:       history.AckCleared,
		ObjectType: c.Kind().String(),
		Object:     c.Name(),
	})
}
