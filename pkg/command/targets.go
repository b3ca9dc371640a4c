package command

import (
	"github.com/icinga/icingad/pkg/checkable"
	"go.uber.org/multierr"
	"time"
)

// objectHandler applies a command to a single checkable.
type objectHandler func(p *Processor, c *checkable.Checkable) error

func forHost(h objectHandler) handler {
	return func(p *Processor, _ time.Time, args []string) error {
		c, err := p.host(args[0])
		if err != nil {
			return err
		}

		return h(p, c)
	}
}

func forService(h objectHandler) handler {
	return func(p *Processor, _ time.Time, args []string) error {
		c, err := p.service(args[0], args[1])
		if err != nil {
			return err
		}

		return h(p, c)
	}
}

func forHostServices(h objectHandler) handler {
	return forAll(func(p *Processor, args []string) ([]*checkable.Checkable, error) {
		return p.servicesOf(args[0])
	}, h)
}

func forHostgroupServices(h objectHandler) handler {
	return forAll(func(p *Processor, args []string) ([]*checkable.Checkable, error) {
		return p.hostgroupServices(args[0])
	}, h)
}

func forServicegroupServices(h objectHandler) handler {
	return forAll(func(p *Processor, args []string) ([]*checkable.Checkable, error) {
		return p.servicegroup(args[0])
	}, h)
}

// forAll applies h to all checkables resolved from the arguments.
// A failure for one checkable does not keep h from being applied to the others.
func forAll(resolve func(*Processor, []string) ([]*checkable.Checkable, error), h objectHandler) handler {
	return func(p *Processor, _ time.Time, args []string) error {
		targets, err := resolve(p, args)
		if err != nil {
			return err
		}

		for _, c := range targets {
			err = multierr.Append(err, h(p, c))
		}

		return err
	}
}
