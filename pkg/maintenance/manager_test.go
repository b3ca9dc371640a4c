package maintenance

import (
	"context"
	"fmt"
	"github.com/google/go-cmp/cmp"
	"github.com/icinga/icinga-go-library/logging"
	"github.com/icinga/icingad/pkg/checkable"
	"github.com/icinga/icingad/pkg/downtime"
	"github.com/icinga/icingad/pkg/history"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type clock struct {
	now atomic.Int64
}

func (c *clock) Now() time.Time {
	return time.Unix(c.now.Load(), 0)
}

func (c *clock) Set(unix int64) {
	c.now.Store(unix)
}

type notifications struct {
	mu     sync.Mutex
	counts map[string]int
	broken string
}

func (n *notifications) record(c *checkable.Checkable, attr string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if c.Name() == n.broken {
		panic("broken attribute hook")
	}

	if n.counts == nil {
		n.counts = make(map[string]int)
	}
	n.counts[c.Name()+"/"+attr]++
}

func (n *notifications) count(key string) int {
	n.mu.Lock()
	defer n.mu.Unlock()

	return n.counts[key]
}

func (n *notifications) panicOn(name string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.broken = name
}

func (n *notifications) reset() {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.counts = nil
}

type events struct {
	mu     sync.Mutex
	events []history.Event
}

func (e *events) Record(ev history.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.events = append(e.events, ev)
}

func (e *events) types() []history.EventType {
	e.mu.Lock()
	defer e.mu.Unlock()

	var types []history.EventType
	for _, ev := range e.events {
		types = append(types, ev.Type)
	}

	return types
}

type fixture struct {
	registry      *checkable.Registry
	manager       *Manager
	clock         *clock
	notifications *notifications
	history       *events
}

func newFixture(t *testing.T, options Options) *fixture {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	f := &fixture{clock: &clock{}, notifications: &notifications{}, history: &events{}}
	f.clock.Set(100)
	f.registry = checkable.NewRegistry(f.notifications.record)

	logger := logging.NewLogger(zaptest.NewLogger(t).Sugar(), time.Second)
	f.manager = NewManager(ctx, f.registry, f.history, logger, options, WithClock(f.clock.Now))
	t.Cleanup(f.manager.Close)

	return f
}

func defaultOptions() Options {
	// Long enough for tests calling Rebuild themselves.
	return Options{CacheRefreshDelay: time.Hour, ExpireInterval: time.Hour}
}

func legacyIds(t *testing.T, r *checkable.Registry) []int {
	t.Helper()

	var ids []int
	for _, c := range r.Checkables() {
		c.Lock()
		for _, d := range c.Downtimes().All() {
			ids = append(ids, d.LegacyId)
		}
		c.Unlock()
	}

	return ids
}

func requireUnique(t *testing.T, ids []int) {
	t.Helper()

	seen := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		_, dup := seen[id]
		require.False(t, dup, "legacy id %d used twice", id)
		require.Positive(t, id)
		seen[id] = struct{}{}
	}
}

func TestManager_AddDowntime(t *testing.T) {
	f := newFixture(t, defaultOptions())
	h := f.registry.AddHost("db1")

	id := f.manager.AddDowntime(h, "alice", "maintenance", time.Unix(100, 0), time.Unix(200, 0), true, "", 0)
	require.NotEmpty(t, id)
	require.Equal(t, 1, f.notifications.count("db1/downtimes"))

	// Not indexed yet.
	require.Nil(t, f.manager.GetDowntime(id))
	require.False(t, f.manager.Ready())

	f.manager.Rebuild()
	require.True(t, f.manager.Ready())

	expected := &downtime.Downtime{
		Id:        id,
		LegacyId:  1,
		EntryTime: time.Unix(100, 0),
		Author:    "alice",
		Comment:   "maintenance",
		StartTime: time.Unix(100, 0),
		EndTime:   time.Unix(200, 0),
		Fixed:     true,
	}
	if diff := cmp.Diff(expected, f.manager.GetDowntime(id)); diff != "" {
		t.Errorf("downtime mismatch (-want +got):\n%s", diff)
	}

	require.Equal(t, id, f.manager.LookupLegacy(1))
	require.Same(t, h, f.manager.Owner(id))
	require.True(t, f.manager.IsInDowntime(h, time.Unix(150, 0)))

	f.manager.RemoveDowntime(id)
	require.Equal(t, 2, f.notifications.count("db1/downtimes"))
	require.Nil(t, f.manager.GetDowntime(id))
	require.Nil(t, f.manager.Owner(id))

	// Unknown ids are ignored.
	f.manager.RemoveDowntime(id)
	f.manager.RemoveDowntime("unknown")
	require.Equal(t, 2, f.notifications.count("db1/downtimes"))

	require.Equal(t, []history.EventType{history.DowntimeScheduled, history.DowntimeRemoved}, f.history.types())
}

func TestManager_Invalidate(t *testing.T) {
	f := newFixture(t, Options{CacheRefreshDelay: 20 * time.Millisecond, ExpireInterval: time.Hour})
	h := f.registry.AddHost("db1")

	var ids []string
	for i := 0; i < 10; i++ {
		ids = append(ids, f.manager.AddDowntime(h, "alice", "", time.Unix(100, 0), time.Unix(200, 0), true, "", 0))
	}

	require.Eventually(t, func() bool {
		return f.manager.LookupLegacy(10) == ids[9]
	}, 2*time.Second, 5*time.Millisecond)

	for i, id := range ids {
		require.Same(t, h, f.manager.Owner(id))
		require.Equal(t, id, f.manager.LookupLegacy(i+1))
	}

	f.manager.RemoveDowntime(ids[0])
	require.Eventually(t, func() bool {
		return f.manager.LookupLegacy(1) == ""
	}, 2*time.Second, 5*time.Millisecond)
}

// rebuilds returns how many index rebuilds have been observed since startup.
func rebuilds(t *testing.T) uint64 {
	t.Helper()

	var m dto.Metric
	require.NoError(t, IndexRebuildSeconds.Write(&m))

	return m.GetHistogram().GetSampleCount()
}

func TestManager_InvalidateDebounces(t *testing.T) {
	const delay = 100 * time.Millisecond

	f := newFixture(t, Options{CacheRefreshDelay: delay, ExpireInterval: time.Hour})
	h := f.registry.AddHost("db1")
	before := rebuilds(t)

	var ids []string
	for i := 0; i < 50; i++ {
		ids = append(ids, f.manager.AddDowntime(h, "alice", "", time.Unix(100, 0), time.Unix(200, 0), true, "", 0))
	}

	require.Eventually(t, func() bool {
		return rebuilds(t) > before
	}, 2*time.Second, 5*time.Millisecond)

	// Give a second rebuild the chance to show up.
	time.Sleep(3 * delay)
	require.Equal(t, uint64(1), rebuilds(t)-before, "a burst of changes must cause exactly one rebuild")

	for i, id := range ids {
		require.Equal(t, id, f.manager.LookupLegacy(i+1))
	}
}

func TestManager_Concurrent(t *testing.T) {
	const (
		workers   = 4
		downtimes = 100
	)

	f := newFixture(t, Options{CacheRefreshDelay: time.Millisecond, ExpireInterval: time.Hour})

	var hosts []*checkable.Checkable
	for i := 0; i < workers; i++ {
		hosts = append(hosts, f.registry.AddHost(fmt.Sprintf("host%d", i)))
	}

	kept := make([][]string, workers)
	removed := make([][]string, workers)
	done := make(chan struct{})

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for i := 0; i < downtimes; i++ {
				h := hosts[(w+i)%workers]
				id := f.manager.AddDowntime(h, "", "", time.Unix(0, 0), time.Unix(1000, 0), false, "", time.Minute)

				if i%2 == 0 {
					// Removal needs the downtime to be indexed first.
					assert.Eventually(t, func() bool {
						f.manager.RemoveDowntime(id)

						h.Lock()
						defer h.Unlock()

						return h.Downtimes().Get(id) == nil
					}, 2*time.Second, time.Millisecond)

					removed[w] = append(removed[w], id)
				} else {
					kept[w] = append(kept[w], id)
				}
			}
		}()
	}

	var background sync.WaitGroup
	background.Add(3)
	go func() {
		defer background.Done()

		for i := 1; ; i++ {
			select {
			case <-done:
				return
			default:
				f.manager.TriggerOne(f.manager.LookupLegacy(i % (workers * downtimes)))
				f.manager.TriggerAll(hosts[i%workers])
			}
		}
	}()
	go func() {
		defer background.Done()

		for {
			select {
			case <-done:
				return
			default:
				f.manager.Sweep(f.clock.Now())
			}
		}
	}()
	go func() {
		defer background.Done()

		for {
			select {
			case <-done:
				return
			default:
				f.manager.Rebuild()
			}
		}
	}()

	wg.Wait()
	close(done)
	background.Wait()

	ids := legacyIds(t, f.registry)
	require.Len(t, ids, workers*downtimes/2)
	requireUnique(t, ids)

	for w := 0; w < workers; w++ {
		for _, id := range removed[w] {
			require.Nil(t, f.manager.GetDowntime(id), id)
		}
	}

	// A delayed rebuild started before the workers were done may still swap in its index.
	require.Eventually(t, func() bool {
		f.manager.Rebuild()

		for w := 0; w < workers; w++ {
			for _, id := range kept[w] {
				d := f.manager.GetDowntime(id)
				if d == nil || f.manager.LookupLegacy(d.LegacyId) != id {
					return false
				}
			}
		}

		return true
	}, 2*time.Second, 10*time.Millisecond)
}

func TestManager_LegacyIdsUnique(t *testing.T) {
	f := newFixture(t, defaultOptions())
	hosts := []*checkable.Checkable{f.registry.AddHost("a"), f.registry.AddHost("b"), f.registry.AddHost("c")}

	for i := 0; i < 60; i++ {
		f.manager.AddDowntime(hosts[i%len(hosts)], "", "", time.Unix(100, 0), time.Unix(200, 0), true, "", 0)
		if i%7 == 0 {
			f.manager.Rebuild()
		}
	}
	f.manager.Rebuild()

	ids := legacyIds(t, f.registry)
	require.Len(t, ids, 60)
	requireUnique(t, ids)
}

func TestManager_RebuildRepairsCollisions(t *testing.T) {
	f := newFixture(t, defaultOptions())

	var maxLegacyId int
	for i := 0; i < 10; i++ {
		h := f.registry.AddHost(fmt.Sprintf("host%d", i))
		store := downtime.NewStore()

		for j := 0; j < 100; j++ {
			// Only 50 distinct legacy ids for 1000 downtimes.
			legacyId := (i*100+j)%50 + 1
			if legacyId > maxLegacyId {
				maxLegacyId = legacyId
			}

			store.Add(&downtime.Downtime{
				Id:        fmt.Sprintf("%d-%d", i, j),
				LegacyId:  legacyId,
				StartTime: time.Unix(100, 0),
				EndTime:   time.Unix(200, 0),
				Fixed:     true,
			})
		}

		h.Lock()
		h.SetDowntimes(store)
		h.Unlock()
	}

	f.manager.Rebuild()

	ids := legacyIds(t, f.registry)
	require.Len(t, ids, 1000)
	requireUnique(t, ids)

	var max int
	for _, id := range ids {
		if id > max {
			max = id
		}
		require.NotEmpty(t, f.manager.LookupLegacy(id))
	}

	require.GreaterOrEqual(t, max, maxLegacyId)
	require.Greater(t, f.manager.NextLegacyId(), max)

	// Every object had colliding downtimes, all got notified once.
	for i := 0; i < 10; i++ {
		require.Equal(t, 1, f.notifications.count(fmt.Sprintf("host%d/downtimes", i)))
	}
}

func TestManager_RebuildAdvancesCounter(t *testing.T) {
	f := newFixture(t, defaultOptions())
	h := f.registry.AddHost("db1")

	store := downtime.NewStore()
	store.Add(&downtime.Downtime{Id: "restored", LegacyId: 41})
	h.Lock()
	h.SetDowntimes(store)
	h.Unlock()

	f.manager.Rebuild()
	require.Equal(t, "restored", f.manager.LookupLegacy(41))

	id := f.manager.AddDowntime(h, "", "", time.Unix(100, 0), time.Unix(200, 0), true, "", 0)
	f.manager.Rebuild()
	require.Equal(t, id, f.manager.LookupLegacy(42))
}

func TestManager_Sweep(t *testing.T) {
	f := newFixture(t, defaultOptions())
	h := f.registry.AddHost("db1")
	s, err := f.registry.AddService("db1", "mysql")
	require.NoError(t, err)

	expired1 := f.manager.AddDowntime(h, "", "", time.Unix(0, 0), time.Unix(50, 0), true, "", 0)
	expired2 := f.manager.AddDowntime(h, "", "", time.Unix(0, 0), time.Unix(99, 0), true, "", 0)
	// Ends exactly now, which is not yet expired.
	current := f.manager.AddDowntime(h, "", "", time.Unix(0, 0), time.Unix(100, 0), true, "", 0)
	future := f.manager.AddDowntime(s, "", "", time.Unix(0, 0), time.Unix(500, 0), true, "", 0)
	f.manager.Rebuild()
	f.notifications.reset()

	require.Equal(t, 2, f.manager.Sweep(f.clock.Now()))

	h.Lock()
	require.Equal(t, []string{current}, h.Downtimes().Ids())
	h.Unlock()

	s.Lock()
	require.Equal(t, []string{future}, s.Downtimes().Ids())
	s.Unlock()

	require.Equal(t, 1, f.notifications.count("db1/downtimes"))
	require.Equal(t, 0, f.notifications.count("db1!mysql/downtimes"))

	f.manager.Rebuild()
	require.Nil(t, f.manager.GetDowntime(expired1))
	require.Nil(t, f.manager.GetDowntime(expired2))

	require.Equal(t, 0, f.manager.Sweep(f.clock.Now()))
	require.Equal(t, 1, f.notifications.count("db1/downtimes"))
}

func TestManager_SweepSurvivesPanics(t *testing.T) {
	f := newFixture(t, defaultOptions())
	a := f.registry.AddHost("a")
	b := f.registry.AddHost("b")

	f.manager.AddDowntime(a, "", "", time.Unix(0, 0), time.Unix(10, 0), true, "", 0)
	f.manager.AddDowntime(b, "", "", time.Unix(0, 0), time.Unix(10, 0), true, "", 0)

	f.notifications.panicOn("a")
	require.Equal(t, 2, f.manager.Sweep(f.clock.Now()))

	for _, c := range []*checkable.Checkable{a, b} {
		c.Lock()
		require.True(t, c.Downtimes().IsEmpty())
		c.Unlock()
	}

	require.Equal(t, 2, f.notifications.count("b/downtimes"))
}

func TestManager_Trigger(t *testing.T) {
	t.Run("Cascade", func(t *testing.T) {
		f := newFixture(t, defaultOptions())
		h := f.registry.AddHost("db1")
		s, err := f.registry.AddService("db1", "mysql")
		require.NoError(t, err)

		parent := f.manager.AddDowntime(h, "", "", time.Unix(100, 0), time.Unix(300, 0), false, "", time.Minute)
		f.manager.Rebuild()
		child := f.manager.AddDowntime(s, "", "", time.Unix(100, 0), time.Unix(300, 0), false, parent, time.Minute)
		f.manager.Rebuild()

		require.Equal(t, []string{child}, f.manager.GetDowntime(parent).TriggerIds())
		require.Equal(t, parent, f.manager.GetDowntime(child).TriggeredBy)

		f.clock.Set(150)
		f.notifications.reset()
		f.manager.TriggerOne(parent)

		p := f.manager.GetDowntime(parent)
		c := f.manager.GetDowntime(child)
		require.Equal(t, time.Unix(150, 0), p.TriggerTime)
		require.Equal(t, p.TriggerTime, c.TriggerTime)
		require.Equal(t, 1, f.notifications.count("db1/downtimes"))
		require.Equal(t, 1, f.notifications.count("db1!mysql/downtimes"))

		// Triggering again changes nothing.
		f.clock.Set(160)
		f.manager.TriggerOne(parent)
		require.Equal(t, p, f.manager.GetDowntime(parent))
		require.Equal(t, c, f.manager.GetDowntime(child))

		require.Equal(t, []history.EventType{
			history.DowntimeScheduled, history.DowntimeScheduled,
			history.DowntimeTriggered, history.DowntimeTriggered,
		}, f.history.types())
	})

	t.Run("OutsideWindow", func(t *testing.T) {
		f := newFixture(t, defaultOptions())
		h := f.registry.AddHost("db1")

		parent := f.manager.AddDowntime(h, "", "", time.Unix(100, 0), time.Unix(300, 0), false, "", time.Minute)
		f.manager.Rebuild()
		child := f.manager.AddDowntime(h, "", "", time.Unix(200, 0), time.Unix(300, 0), false, parent, time.Minute)
		f.manager.Rebuild()

		f.clock.Set(150)
		f.manager.TriggerOne(parent)

		require.Equal(t, time.Unix(150, 0), f.manager.GetDowntime(parent).TriggerTime)
		require.True(t, f.manager.GetDowntime(child).TriggerTime.IsZero())

		f.clock.Set(400)
		f.manager.TriggerOne(child)
		require.True(t, f.manager.GetDowntime(child).TriggerTime.IsZero())
	})

	t.Run("Cycle", func(t *testing.T) {
		f := newFixture(t, defaultOptions())
		h := f.registry.AddHost("db1")

		a := f.manager.AddDowntime(h, "", "", time.Unix(100, 0), time.Unix(300, 0), false, "", time.Minute)
		f.manager.Rebuild()
		b := f.manager.AddDowntime(h, "", "", time.Unix(100, 0), time.Unix(300, 0), false, a, time.Minute)
		f.manager.Rebuild()

		h.Lock()
		h.Downtimes().Get(b).AddTrigger(a)
		h.Unlock()

		f.clock.Set(150)
		f.notifications.reset()
		f.manager.TriggerOne(b)

		require.Equal(t, time.Unix(150, 0), f.manager.GetDowntime(a).TriggerTime)
		require.Equal(t, time.Unix(150, 0), f.manager.GetDowntime(b).TriggerTime)
		require.Equal(t, 1, f.notifications.count("db1/downtimes"))
	})

	t.Run("All", func(t *testing.T) {
		f := newFixture(t, defaultOptions())
		h := f.registry.AddHost("db1")

		// Not indexed yet, which TriggerAll does not depend on.
		first := f.manager.AddDowntime(h, "", "", time.Unix(100, 0), time.Unix(300, 0), false, "", time.Minute)
		second := f.manager.AddDowntime(h, "", "", time.Unix(100, 0), time.Unix(300, 0), false, "", time.Minute)
		f.notifications.reset()

		f.clock.Set(120)
		f.manager.TriggerAll(h)
		require.Equal(t, 1, f.notifications.count("db1/downtimes"))

		f.manager.Rebuild()
		require.Equal(t, time.Unix(120, 0), f.manager.GetDowntime(first).TriggerTime)
		require.Equal(t, time.Unix(120, 0), f.manager.GetDowntime(second).TriggerTime)

		// Scenario B: active only once the duration has passed since triggering.
		require.False(t, f.manager.IsInDowntime(h, time.Unix(150, 0)))
		require.True(t, f.manager.IsInDowntime(h, time.Unix(181, 0)))
	})

	t.Run("UnknownParent", func(t *testing.T) {
		f := newFixture(t, defaultOptions())
		h := f.registry.AddHost("db1")

		id := f.manager.AddDowntime(h, "", "", time.Unix(100, 0), time.Unix(300, 0), false, "unknown", time.Minute)
		f.manager.Rebuild()

		require.NotNil(t, f.manager.GetDowntime(id))
		f.manager.TriggerOne("unknown")
	})
}

func TestManager_RemovedOwner(t *testing.T) {
	f := newFixture(t, defaultOptions())
	f.registry.Sync(&checkable.Definitions{Hosts: []checkable.HostDefinition{{Name: "db1"}}})

	id := f.manager.AddDowntime(f.registry.Host("db1"), "", "", time.Unix(100, 0), time.Unix(300, 0), true, "", 0)
	f.manager.Rebuild()
	require.NotNil(t, f.manager.Owner(id))

	f.registry.Sync(&checkable.Definitions{})

	// Stale index entries are checked against the store.
	require.Nil(t, f.manager.Owner(id))
	require.Nil(t, f.manager.GetDowntime(id))
	f.manager.TriggerOne(id)

	f.manager.Rebuild()
	require.Empty(t, f.manager.LookupLegacy(1))
}

func TestOptions_Validate(t *testing.T) {
	require.NoError(t, (&Options{CacheRefreshDelay: time.Second, ExpireInterval: time.Second}).Validate())
	require.Error(t, (&Options{ExpireInterval: time.Second}).Validate())
	require.Error(t, (&Options{CacheRefreshDelay: time.Second}).Validate())
}
