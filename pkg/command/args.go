package command

import (
	"github.com/icinga/icingad/pkg/checkable"
	"github.com/pkg/errors"
	"math"
	"strconv"
	"strings"
	"time"
)

func parseInt(s, name string) (int64, error) {
	i, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s %q", name, s)
	}

	return i, nil
}

// parseBool accepts integers, any non-zero value is true.
func parseBool(s, name string) (bool, error) {
	i, err := parseInt(s, name)

	return i != 0, err
}

// maxSeconds is the greatest number of seconds a time.Duration can hold.
const maxSeconds = math.MaxInt64 / int64(time.Second)

func parseSeconds(s, name string) (time.Duration, error) {
	i, err := parseInt(s, name)
	if err != nil {
		return 0, err
	}

	if i < 0 {
		return 0, errors.Errorf("%s must not be negative", name)
	}

	if i > maxSeconds {
		return 0, errors.Errorf("%s must not exceed %d seconds", name, maxSeconds)
	}

	return time.Duration(i) * time.Second, nil
}

func parseTimeArg(s, name string) (time.Time, error) {
	t, err := parseTime(s)

	return t, errors.Wrapf(err, "invalid %s", name)
}

func (p *Processor) host(name string) (*checkable.Checkable, error) {
	if h := p.registry.Host(name); h != nil {
		return h, nil
	}

	return nil, errors.Errorf("host %q does not exist", name)
}

func (p *Processor) service(host, name string) (*checkable.Checkable, error) {
	if s := p.registry.Service(host, name); s != nil {
		return s, nil
	}

	return nil, errors.Errorf("service %q on host %q does not exist", name, host)
}

// servicesOf returns the host's services.
func (p *Processor) servicesOf(name string) ([]*checkable.Checkable, error) {
	h, err := p.host(name)
	if err != nil {
		return nil, err
	}

	return p.registry.ServicesOf(h), nil
}

func (p *Processor) hostgroup(name string) ([]*checkable.Checkable, error) {
	members, ok := p.registry.HostgroupMembers(name)
	if !ok {
		return nil, errors.Errorf("hostgroup %q does not exist", name)
	}

	return members, nil
}

func (p *Processor) servicegroup(name string) ([]*checkable.Checkable, error) {
	members, ok := p.registry.ServicegroupMembers(name)
	if !ok {
		return nil, errors.Errorf("servicegroup %q does not exist", name)
	}

	return members, nil
}

// hostgroupServices returns the services of all hosts of the hostgroup.
func (p *Processor) hostgroupServices(name string) ([]*checkable.Checkable, error) {
	hosts, err := p.hostgroup(name)
	if err != nil {
		return nil, err
	}

	var services []*checkable.Checkable
	for _, h := range hosts {
		services = append(services, p.registry.ServicesOf(h)...)
	}

	return services, nil
}

// servicegroupHosts returns the hosts of all services of the servicegroup, each host once.
func (p *Processor) servicegroupHosts(name string) ([]*checkable.Checkable, error) {
	services, err := p.servicegroup(name)
	if err != nil {
		return nil, err
	}

	var hosts []*checkable.Checkable
	seen := make(map[*checkable.Checkable]struct{})
	for _, s := range services {
		if _, ok := seen[s.Host()]; !ok {
			seen[s.Host()] = struct{}{}
			hosts = append(hosts, s.Host())
		}
	}

	return hosts, nil
}
