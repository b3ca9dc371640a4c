package command

import (
	"github.com/icinga/icingad/pkg/checkable"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"time"
)

type downtimeRequest struct {
	start, end  time.Time
	fixed       bool
	triggeredBy string
	duration    time.Duration
	author      string
	comment     string
}

// parseDowntime parses start;end;fixed;trigger_id;duration;author;comment.
func (p *Processor) parseDowntime(args []string) (downtimeRequest, error) {
	var req downtimeRequest
	var err error

	if req.start, err = parseTimeArg(args[0], "start time"); err != nil {
		return req, err
	}

	if req.end, err = parseTimeArg(args[1], "end time"); err != nil {
		return req, err
	}

	if req.fixed, err = parseBool(args[2], "fixed"); err != nil {
		return req, err
	}

	if args[3] != "" {
		legacyId, err := parseInt(args[3], "trigger id")
		if err != nil {
			return req, err
		}

		if legacyId != 0 {
			req.triggeredBy = p.manager.LookupLegacy(int(legacyId))
			if req.triggeredBy == "" {
				p.logger.Warnw("Ignoring unknown triggering downtime", zap.Int64("trigger_id", legacyId))
			}
		}
	}

	if req.duration, err = parseSeconds(args[4], "duration"); err != nil {
		return req, err
	}

	req.author, req.comment = args[5], args[6]

	return req, nil
}

func (p *Processor) scheduleDowntime(c *checkable.Checkable, req downtimeRequest) string {
	id := p.manager.AddDowntime(c, req.author, req.comment, req.start, req.end, req.fixed, req.triggeredBy, req.duration)

	p.logger.Infow("Scheduled downtime",
		zap.String("object", c.Name()), zap.String("id", id), zap.String("author", req.author),
		zap.Time("start", req.start), zap.Time("end", req.end), zap.Bool("fixed", req.fixed))

	return id
}

func scheduleSvcDowntime(p *Processor, _ time.Time, args []string) error {
	s, err := p.service(args[0], args[1])
	if err != nil {
		return err
	}

	req, err := p.parseDowntime(args[2:])
	if err != nil {
		return err
	}

	p.scheduleDowntime(s, req)

	return nil
}

// downtimeTargets resolves the checkables a downtime is scheduled for from the first argument.
type downtimeTargets func(p *Processor, name string) ([]*checkable.Checkable, error)

func hostTargets(p *Processor, name string) ([]*checkable.Checkable, error) {
	h, err := p.host(name)
	if err != nil {
		return nil, err
	}

	return []*checkable.Checkable{h}, nil
}

func hostAndServiceTargets(p *Processor, name string) ([]*checkable.Checkable, error) {
	h, err := p.host(name)
	if err != nil {
		return nil, err
	}

	return append([]*checkable.Checkable{h}, p.registry.ServicesOf(h)...), nil
}

func hostgroupHostTargets(p *Processor, name string) ([]*checkable.Checkable, error) {
	return p.hostgroup(name)
}

func hostgroupServiceTargets(p *Processor, name string) ([]*checkable.Checkable, error) {
	return p.hostgroupServices(name)
}

func servicegroupHostTargets(p *Processor, name string) ([]*checkable.Checkable, error) {
	return p.servicegroupHosts(name)
}

func servicegroupServiceTargets(p *Processor, name string) ([]*checkable.Checkable, error) {
	return p.servicegroup(name)
}

// scheduleDowntimes schedules the same downtime for all targets.
func scheduleDowntimes(targets downtimeTargets) handler {
	return func(p *Processor, _ time.Time, args []string) error {
		checkables, err := targets(p, args[0])
		if err != nil {
			return err
		}

		req, err := p.parseDowntime(args[1:])
		if err != nil {
			return err
		}

		for _, c := range checkables {
			p.scheduleDowntime(c, req)
		}

		return nil
	}
}

func delDowntime(p *Processor, _ time.Time, args []string) error {
	legacyId, err := parseInt(args[0], "downtime id")
	if err != nil {
		return err
	}

	id := p.manager.LookupLegacy(int(legacyId))
	if id == "" {
		return errors.Errorf("downtime %d does not exist", legacyId)
	}

	p.manager.RemoveDowntime(id)
	p.logger.Infow("Removed downtime", zap.Int64("legacy_id", legacyId), zap.String("id", id))

	return nil
}
