package monitor

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"switchmonitor/internal/models"
)

// BlinkWindow is how long a freshly down device stays flagged as recently down.
const BlinkWindow = 30 * time.Second

// ProbeFunc reports whether a device answered. Implementations bound their
// own timeout; the engine adds none.
type ProbeFunc func(ctx context.Context, device models.Device) bool

type deviceState struct {
	status       models.Status
	downSince    time.Time
	recentlyDown bool
}

func (s *deviceState) entry(device models.Device) models.Entry {
	e := models.Entry{
		Device:       device,
		Status:       s.status,
		RecentlyDown: s.recentlyDown,
	}
	if s.status == models.StatusDown {
		since := s.downSince
		e.DownSince = &since
	}
	return e
}

// Engine converts repeated probe results into status transitions.
// Devices are fixed at construction and always iterated in load order.
type Engine struct {
	devices []models.Device
	workers int
	clock   func() time.Time

	tickMu sync.Mutex // serializes Tick

	mu     sync.Mutex // guards states
	states map[string]*deviceState
}

// NewEngine builds an engine over the given devices. workers bounds the
// number of concurrent probes per Tick; values below 1 probe sequentially.
func NewEngine(devices []models.Device, workers int) *Engine {
	if workers < 1 {
		workers = 1
	}
	list := make([]models.Device, len(devices))
	copy(list, devices)
	return &Engine{
		devices: list,
		workers: workers,
		clock:   time.Now,
		states:  make(map[string]*deviceState, len(list)),
	}
}

// Tick probes every device, advances each device's state machine and returns
// the resulting snapshot together with the transitions detected this cycle,
// both in device order. Probe failures count as unreachable; Tick never fails.
func (e *Engine) Tick(ctx context.Context, probe ProbeFunc, now time.Time) (models.Snapshot, []models.TransitionEvent) {
	e.tickMu.Lock()
	defer e.tickMu.Unlock()

	// state stays readable while probes are in flight
	results := e.probeAll(ctx, probe)

	e.mu.Lock()
	defer e.mu.Unlock()

	var events []models.TransitionEvent
	for _, res := range results {
		if ev, ok := e.apply(res, now); ok {
			events = append(events, ev)
		}
	}

	return e.snapshotLocked(now), events
}

// Snapshot returns the state as of the last completed Tick. It does not
// wait for probes that are still in flight.
func (e *Engine) Snapshot(now time.Time) models.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked(now)
}

// probeAll returns one result per device, in device order.
func (e *Engine) probeAll(ctx context.Context, probe ProbeFunc) []models.ProbeResult {
	results := make([]models.ProbeResult, len(e.devices))

	var g errgroup.Group
	g.SetLimit(e.workers)
	for i, device := range e.devices {
		g.Go(func() error {
			reachable := safeProbe(ctx, probe, device)
			results[i] = models.ProbeResult{
				Device:     device,
				Reachable:  reachable,
				ObservedAt: e.clock(),
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func safeProbe(ctx context.Context, probe ProbeFunc, device models.Device) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("probe %s panicked: %v", device.IP, r)
			ok = false
		}
	}()
	return probe(ctx, device)
}

func (e *Engine) apply(res models.ProbeResult, now time.Time) (models.TransitionEvent, bool) {
	device := res.Device
	state, seen := e.states[device.IP]
	if !seen {
		state = &deviceState{}
		e.states[device.IP] = state
	}

	if !res.Reachable {
		var (
			ev      models.TransitionEvent
			changed bool
		)
		if !seen || state.status != models.StatusDown {
			state.status = models.StatusDown
			state.downSince = now
			ev = models.TransitionEvent{Device: device, NewStatus: models.StatusDown, Timestamp: now}
			changed = true
		}
		state.recentlyDown = now.Sub(state.downSince) < BlinkWindow
		return ev, changed
	}

	wasDown := seen && state.status == models.StatusDown
	state.status = models.StatusUp
	state.downSince = time.Time{}
	state.recentlyDown = false
	if wasDown {
		return models.TransitionEvent{Device: device, NewStatus: models.StatusUp, Timestamp: now}, true
	}
	return models.TransitionEvent{}, false
}

func (e *Engine) snapshotLocked(now time.Time) models.Snapshot {
	snap := models.Snapshot{
		Timestamp: now,
		Entries:   make([]models.Entry, 0, len(e.devices)),
	}
	for _, device := range e.devices {
		state, ok := e.states[device.IP]
		if !ok {
			continue
		}
		snap.Entries = append(snap.Entries, state.entry(device))
	}
	return snap
}
