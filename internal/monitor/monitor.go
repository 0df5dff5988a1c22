package monitor

import (
	"context"
	"log"
	"sync"
	"time"

	"switchmonitor/internal/metrics"
	"switchmonitor/internal/models"
	"switchmonitor/internal/storage"
)

const recordTimeout = 5 * time.Second

// Monitor drives the engine on a fixed cadence, hands transitions to the
// sinks and publishes the latest snapshot.
type Monitor struct {
	engine  *Engine
	probe   ProbeFunc
	sinks   []storage.Sink
	metrics *metrics.Metrics
	now     func() time.Time

	mu       sync.RWMutex
	interval time.Duration
	running  bool
	latest   *models.Snapshot
	subs     map[int]chan models.Snapshot
	nextSub  int

	resetCh chan struct{}
	stopCh  chan struct{}
	doneCh  chan struct{}
	stopped sync.Once
}

// New creates a monitor. m may be nil.
func New(engine *Engine, probe ProbeFunc, sinks []storage.Sink, interval time.Duration, m *metrics.Metrics) *Monitor {
	if interval <= 0 {
		interval = time.Second
	}

	return &Monitor{
		engine:   engine,
		probe:    probe,
		sinks:    sinks,
		metrics:  m,
		now:      time.Now,
		interval: interval,
		running:  true,
		subs:     make(map[int]chan models.Snapshot),
		resetCh:  make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the monitoring loop in a goroutine.
func (m *Monitor) Start() {
	go m.run()
}

// Stop requests graceful loop termination and waits until it is done.
// A cycle already in progress is allowed to finish.
func (m *Monitor) Stop() {
	select {
	case <-m.doneCh:
		return
	default:
	}
	m.stopped.Do(func() { close(m.stopCh) })
	<-m.doneCh
}

// Pause stops cycles from running; device state is kept.
func (m *Monitor) Pause() {
	m.mu.Lock()
	m.running = false
	m.mu.Unlock()
	log.Printf("monitoring paused")
}

// Resume re-enables cycles.
func (m *Monitor) Resume() {
	m.mu.Lock()
	m.running = true
	m.mu.Unlock()
	log.Printf("monitoring resumed")
}

// Running reports whether cycles are enabled.
func (m *Monitor) Running() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// SetInterval changes the cadence; the new interval applies from the next tick.
func (m *Monitor) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	m.mu.Lock()
	m.interval = d
	m.mu.Unlock()

	select {
	case m.resetCh <- struct{}{}:
	default:
	}
	log.Printf("monitoring interval set to %s", d)
}

// Interval returns the current cadence.
func (m *Monitor) Interval() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.interval
}

// Latest returns the snapshot of the most recent cycle. Until the first
// cycle has been published it reports false along with the engine's current
// view, which has no entries yet.
func (m *Monitor) Latest() (models.Snapshot, bool) {
	m.mu.RLock()
	latest := m.latest
	m.mu.RUnlock()

	if latest == nil {
		return m.engine.Snapshot(m.now()), false
	}
	return *latest, true
}

// Subscribe returns a channel that receives every new snapshot. Slow
// readers only ever see the newest one. Call cancel to unsubscribe.
func (m *Monitor) Subscribe() (<-chan models.Snapshot, func()) {
	ch := make(chan models.Snapshot, 1)

	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch
	m.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
		})
	}
}

// RunOnce executes a single polling cycle, records its transitions and
// publishes the snapshot. Sink failures are logged and counted, never returned.
func (m *Monitor) RunOnce(ctx context.Context) (models.Snapshot, []models.TransitionEvent) {
	started := time.Now()
	snap, events := m.engine.Tick(ctx, m.probe, m.now())

	for _, ev := range events {
		log.Printf("%s (%s) is %s", ev.Device.Name, ev.Device.IP, ev.NewStatus)
		m.record(ev)
	}

	m.metrics.ObserveTick(time.Since(started), snap, events)
	m.publish(snap)
	return snap, events
}

func (m *Monitor) record(ev models.TransitionEvent) {
	for _, sink := range m.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		err := sink.Record(ctx, ev)
		cancel()
		if err != nil {
			log.Printf("record transition %s %s to %s: %v", ev.Device.IP, ev.NewStatus, sink.Name(), err)
			m.metrics.SinkFailed(sink.Name())
		}
	}
}

func (m *Monitor) publish(snap models.Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.latest = &snap
	for _, ch := range m.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

func (m *Monitor) run() {
	defer close(m.doneCh)

	// cycles are not bound to stopCh so an in-flight cycle completes
	ctx := context.Background()

	if m.Running() {
		m.RunOnce(ctx)
	}

	ticker := time.NewTicker(m.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if !m.Running() {
				continue
			}
			m.RunOnce(ctx)
		case <-m.resetCh:
			ticker.Reset(m.Interval())
		case <-m.stopCh:
			return
		}
	}
}
