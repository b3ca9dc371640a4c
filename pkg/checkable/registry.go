package checkable

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"sort"
	"sync"
	"time"
)

// Registry keeps track of all hosts, services and groups.
type Registry struct {
	onChanged AttributeChangedFunc

	mu            sync.RWMutex
	hosts         map[string]*Checkable
	services      map[string]*Checkable // Keyed by "host!service".
	hostgroups    map[string]struct{}
	servicegroups map[string]struct{}

	commentMu     sync.Mutex
	nextCommentId int
}

// NewRegistry returns an empty Registry.
// onChanged, if not nil, is called for every attribute change of any of its checkables.
func NewRegistry(onChanged AttributeChangedFunc) *Registry {
	return &Registry{
		onChanged:     onChanged,
		hosts:         make(map[string]*Checkable),
		services:      make(map[string]*Checkable),
		hostgroups:    make(map[string]struct{}),
		servicegroups: make(map[string]struct{}),
		nextCommentId: 1,
	}
}

// AddHost registers a host and returns it. An already registered host is returned as is.
func (r *Registry) AddHost(name string, groups ...string) *Checkable {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.hosts[name]; ok {
		return h
	}

	h := newCheckable(KindHost, name, nil, groups, r.onChanged)
	r.hosts[name] = h

	for _, g := range groups {
		r.hostgroups[g] = struct{}{}
	}

	return h
}

// AddService registers a service of an already registered host and returns it.
func (r *Registry) AddService(host, name string, groups ...string) (*Checkable, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.hosts[host]
	if !ok {
		return nil, errors.Errorf("host %q does not exist", host)
	}

	key := host + "!" + name
	if s, ok := r.services[key]; ok {
		return s, nil
	}

	s := newCheckable(KindService, name, h, groups, r.onChanged)
	r.services[key] = s

	for _, g := range groups {
		r.servicegroups[g] = struct{}{}
	}

	return s, nil
}

// Host returns the host with the given name or nil.
func (r *Registry) Host(name string) *Checkable {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.hosts[name]
}

// Service returns the service of the given host or nil.
func (r *Registry) Service(host, name string) *Checkable {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.services[host+"!"+name]
}

// Hosts returns all hosts ordered by name.
func (r *Registry) Hosts() []*Checkable {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return sortedValues(r.hosts)
}

// Services returns all services ordered by full name.
func (r *Registry) Services() []*Checkable {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return sortedValues(r.services)
}

// Checkables returns all checkables of the given kinds, or of all kinds if none given.
func (r *Registry) Checkables(kinds ...Kind) []*Checkable {
	if len(kinds) == 0 {
		kinds = []Kind{KindHost, KindService}
	}

	var all []*Checkable
	for _, k := range kinds {
		switch k {
		case KindHost:
			all = append(all, r.Hosts()...)
		case KindService:
			all = append(all, r.Services()...)
		}
	}

	return all
}

// ServicesOf returns the services of the given host ordered by name.
func (r *Registry) ServicesOf(host *Checkable) []*Checkable {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var services []*Checkable
	for _, s := range r.services {
		if s.host == host {
			services = append(services, s)
		}
	}

	sortByName(services)

	return services
}

// HostgroupMembers returns the hosts of the given group and whether the group exists.
func (r *Registry) HostgroupMembers(group string) ([]*Checkable, bool) {
	r.mu.RLock()
	_, ok := r.hostgroups[group]
	hosts := sortedValues(r.hosts)
	r.mu.RUnlock()

	if !ok {
		return nil, false
	}

	return filterGroup(hosts, group), true
}

// ServicegroupMembers returns the services of the given group and whether the group exists.
func (r *Registry) ServicegroupMembers(group string) ([]*Checkable, bool) {
	r.mu.RLock()
	_, ok := r.servicegroups[group]
	services := sortedValues(r.services)
	r.mu.RUnlock()

	if !ok {
		return nil, false
	}

	return filterGroup(services, group), true
}

// NewComment attaches a new comment with a fresh legacy id to c and returns a copy of it.
func (r *Registry) NewComment(c *Checkable, typ CommentType, author, text string, persistent bool, now, expire time.Time) Comment {
	r.commentMu.Lock()
	legacyId := r.nextCommentId
	r.nextCommentId++
	r.commentMu.Unlock()

	cm := &Comment{
		Id:         uuid.NewString(),
		LegacyId:   legacyId,
		EntryType:  typ,
		EntryTime:  now,
		Author:     author,
		Text:       text,
		Persistent: persistent,
		ExpireTime: expire,
	}

	c.AddComment(cm)

	return *cm
}

// CommentByLegacyId finds the comment with the given legacy id and its owner.
func (r *Registry) CommentByLegacyId(legacyId int) (*Checkable, Comment, bool) {
	for _, c := range r.Checkables() {
		if cm, ok := c.CommentByLegacyId(legacyId); ok {
			return c, cm, true
		}
	}

	return nil, Comment{}, false
}

func sortedValues(m map[string]*Checkable) []*Checkable {
	values := make([]*Checkable, 0, len(m))
	for _, c := range m {
		values = append(values, c)
	}

	sortByName(values)

	return values
}

func sortByName(checkables []*Checkable) {
	sort.Slice(checkables, func(i, j int) bool {
		return checkables[i].Name() < checkables[j].Name()
	})
}

func filterGroup(checkables []*Checkable, group string) []*Checkable {
	var members []*Checkable
	for _, c := range checkables {
		if c.InGroup(group) {
			members = append(members, c)
		}
	}

	return members
}
