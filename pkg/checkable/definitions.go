package checkable

import (
	"github.com/goccy/go-yaml"
	"github.com/pkg/errors"
	"os"
)

// Definitions describes the configured objects.
type Definitions struct {
	Hostgroups    []string         `yaml:"hostgroups"`
	Servicegroups []string         `yaml:"servicegroups"`
	Hosts         []HostDefinition `yaml:"hosts"`
}

// HostDefinition describes a host and its services.
type HostDefinition struct {
	Name     string              `yaml:"name"`
	Groups   []string            `yaml:"groups"`
	Services []ServiceDefinition `yaml:"services"`
}

// ServiceDefinition describes a service.
type ServiceDefinition struct {
	Name   string   `yaml:"name"`
	Groups []string `yaml:"groups"`
}

// Validate checks that all objects are named and unique.
func (d *Definitions) Validate() error {
	hosts := make(map[string]struct{}, len(d.Hosts))

	for _, h := range d.Hosts {
		if h.Name == "" {
			return errors.New("host without name")
		}
		if _, ok := hosts[h.Name]; ok {
			return errors.Errorf("duplicate host %q", h.Name)
		}
		hosts[h.Name] = struct{}{}

		services := make(map[string]struct{}, len(h.Services))
		for _, s := range h.Services {
			if s.Name == "" {
				return errors.Errorf("service without name on host %q", h.Name)
			}
			if _, ok := services[s.Name]; ok {
				return errors.Errorf("duplicate service %q on host %q", s.Name, h.Name)
			}
			services[s.Name] = struct{}{}
		}
	}

	return nil
}

// LoadDefinitions reads and validates object definitions from a YAML file.
func LoadDefinitions(path string) (*Definitions, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "can't open object definitions")
	}
	defer func() { _ = f.Close() }()

	d := &Definitions{}
	if err := yaml.NewDecoder(f, yaml.DisallowUnknownField()).Decode(d); err != nil {
		return nil, errors.Wrapf(err, "can't parse object definitions %q", path)
	}

	if err := d.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid object definitions %q", path)
	}

	return d, nil
}

// SyncResult lists the checkables a Sync added and removed.
type SyncResult struct {
	Added   []*Checkable
	Removed []*Checkable
}

// Sync reconciles the registry with defs. Checkables which are still defined keep their
// runtime state, vanished ones are removed together with their downtimes.
func (r *Registry) Sync(defs *Definitions) SyncResult {
	var result SyncResult
	groupUpdates := make(map[*Checkable][]string)

	r.mu.Lock()

	wantedHosts := make(map[string]HostDefinition, len(defs.Hosts))
	wantedServices := make(map[string]ServiceDefinition)
	for _, h := range defs.Hosts {
		wantedHosts[h.Name] = h
		for _, s := range h.Services {
			wantedServices[h.Name+"!"+s.Name] = s
		}
	}

	for key, s := range r.services {
		if _, ok := wantedServices[key]; !ok {
			delete(r.services, key)
			result.Removed = append(result.Removed, s)
		}
	}

	for name, h := range r.hosts {
		if _, ok := wantedHosts[name]; !ok {
			delete(r.hosts, name)
			result.Removed = append(result.Removed, h)
		}
	}

	r.hostgroups = make(map[string]struct{})
	r.servicegroups = make(map[string]struct{})
	for _, g := range defs.Hostgroups {
		r.hostgroups[g] = struct{}{}
	}
	for _, g := range defs.Servicegroups {
		r.servicegroups[g] = struct{}{}
	}

	for _, hd := range defs.Hosts {
		h, ok := r.hosts[hd.Name]
		if ok {
			groupUpdates[h] = hd.Groups
		} else {
			h = newCheckable(KindHost, hd.Name, nil, hd.Groups, r.onChanged)
			r.hosts[hd.Name] = h
			result.Added = append(result.Added, h)
		}

		for _, g := range hd.Groups {
			r.hostgroups[g] = struct{}{}
		}

		for _, sd := range hd.Services {
			key := hd.Name + "!" + sd.Name
			if s, ok := r.services[key]; ok {
				groupUpdates[s] = sd.Groups
			} else {
				s = newCheckable(KindService, sd.Name, h, sd.Groups, r.onChanged)
				r.services[key] = s
				result.Added = append(result.Added, s)
			}

			for _, g := range sd.Groups {
				r.servicegroups[g] = struct{}{}
			}
		}
	}

	r.mu.Unlock()

	for c, groups := range groupUpdates {
		c.setGroups(groups)
	}

	for _, c := range result.Removed {
		c.Lock()
		hadDowntimes := !c.Downtimes().IsEmpty()
		c.SetDowntimes(nil)
		c.Unlock()

		if hadDowntimes {
			c.NotifyAttributeChanged(AttrDowntimes)
		}
	}

	sortByName(result.Added)
	sortByName(result.Removed)

	return result
}
