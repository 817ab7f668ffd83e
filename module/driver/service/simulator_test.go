package service

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/bahromnajmiddinov/food-delivery/module/driver/domain"
	"github.com/bahromnajmiddinov/food-delivery/module/driver/geo"
)

type fakeTicker struct {
	ch      chan time.Time
	mu      sync.Mutex
	stopped bool
}

func (f *fakeTicker) C() <-chan time.Time { return f.ch }

func (f *fakeTicker) Stop() {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
}

func (f *fakeTicker) isStopped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}

// tick reports whether the run goroutine accepted the tick.
func (f *fakeTicker) tick() bool {
	select {
	case f.ch <- time.Now():
		return true
	case <-time.After(50 * time.Millisecond):
		return false
	}
}

type recordingSink struct {
	positions chan domain.Coordinate
}

func newRecordingSink() *recordingSink {
	return &recordingSink{positions: make(chan domain.Coordinate, 64)}
}

func (r *recordingSink) SetLocation(_ context.Context, c domain.Coordinate) {
	r.positions <- c
}

func (r *recordingSink) next(t *testing.T) domain.Coordinate {
	t.Helper()
	select {
	case c := <-r.positions:
		return c
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for a position")
		return domain.Coordinate{}
	}
}

func (r *recordingSink) expectNone(t *testing.T) {
	t.Helper()
	select {
	case c := <-r.positions:
		t.Fatalf("unexpected position %v", c)
	case <-time.After(20 * time.Millisecond):
	}
}

type tickerFactory struct {
	mu      sync.Mutex
	tickers []*fakeTicker
}

func (f *tickerFactory) newTicker(time.Duration) Ticker {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTicker{ch: make(chan time.Time)}
	f.tickers = append(f.tickers, t)
	return t
}

func (f *tickerFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tickers)
}

func (f *tickerFactory) get(i int) *fakeTicker {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tickers[i]
}

func newTestSimulator() (*Simulator, *recordingSink, *tickerFactory) {
	sink := newRecordingSink()
	factory := &tickerFactory{}
	sim := NewSimulator(sink)
	sim.newTicker = factory.newTicker
	sim.rnd = rand.New(rand.NewSource(1))
	return sim, sink, factory
}

func waitIdle(t *testing.T, sim *Simulator) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for sim.State() != domain.SimulatorIdle {
		if time.Now().After(deadline) {
			t.Fatal("simulator did not go idle")
		}
		time.Sleep(time.Millisecond)
	}
}

var (
	p0 = domain.Coordinate{Lat: 41.2995, Lon: 69.2401}
	p1 = domain.Coordinate{Lat: 41.3050, Lon: 69.2600}
	p2 = domain.Coordinate{Lat: 41.3150, Lon: 69.3000}
)

func TestSimulator_RunsToEndAndStops(t *testing.T) {
	sim, sink, factory := newTestSimulator()

	sim.StartRun([]domain.Coordinate{p0, p1, p2}, time.Second)
	if got := sink.next(t); got != p0 {
		t.Fatalf("expected start at %v, got %v", p0, got)
	}
	if sim.State() != domain.SimulatorRunning {
		t.Fatal("expected running")
	}

	ticker := factory.get(0)
	if !ticker.tick() {
		t.Fatal("first tick not accepted")
	}
	if got := sink.next(t); got != p1 {
		t.Fatalf("expected %v, got %v", p1, got)
	}

	if !ticker.tick() {
		t.Fatal("second tick not accepted")
	}
	if got := sink.next(t); got != p2 {
		t.Fatalf("expected %v, got %v", p2, got)
	}

	waitIdle(t, sim)
	deadline := time.Now().Add(time.Second)
	for !ticker.isStopped() {
		if time.Now().After(deadline) {
			t.Fatal("expected ticker to be stopped on arrival")
		}
		time.Sleep(time.Millisecond)
	}

	// further ticks go nowhere
	ticker.tick()
	ticker.tick()
	sink.expectNone(t)
}

func TestSimulator_EmptyRoute(t *testing.T) {
	sim, sink, factory := newTestSimulator()

	sim.StartRun(nil, time.Second)

	sink.expectNone(t)
	if sim.State() != domain.SimulatorIdle {
		t.Fatal("expected idle")
	}
	if factory.count() != 0 {
		t.Fatalf("expected no ticker, got %d", factory.count())
	}
}

func TestSimulator_SinglePointRoute(t *testing.T) {
	sim, sink, factory := newTestSimulator()

	sim.StartRun([]domain.Coordinate{p0}, time.Second)

	if got := sink.next(t); got != p0 {
		t.Fatalf("expected %v, got %v", p0, got)
	}
	if sim.State() != domain.SimulatorIdle {
		t.Fatal("expected idle after arriving immediately")
	}
	if factory.count() != 0 {
		t.Fatalf("expected no ticker, got %d", factory.count())
	}
}

func TestSimulator_RestartKeepsOneTicker(t *testing.T) {
	sim, sink, factory := newTestSimulator()

	sim.StartRun([]domain.Coordinate{p0, p1, p2}, time.Second)
	sink.next(t)
	sim.StartRun([]domain.Coordinate{p2, p1, p0}, time.Second)
	if got := sink.next(t); got != p2 {
		t.Fatalf("expected restart at %v, got %v", p2, got)
	}

	first, second := factory.get(0), factory.get(1)
	if !first.isStopped() {
		t.Fatal("expected first ticker to be stopped")
	}
	if first.tick() {
		t.Fatal("old run should not accept ticks")
	}

	if !second.tick() {
		t.Fatal("new run did not accept tick")
	}
	if got := sink.next(t); got != p1 {
		t.Fatalf("expected %v, got %v", p1, got)
	}
	sink.expectNone(t)

	sim.StopRun()
}

func TestSimulator_StopRun(t *testing.T) {
	sim, sink, factory := newTestSimulator()

	// no run yet
	sim.StopRun()

	sim.StartRun([]domain.Coordinate{p0, p1, p2}, time.Second)
	sink.next(t)

	sim.StopRun()
	sim.StopRun()

	if sim.State() != domain.SimulatorIdle {
		t.Fatal("expected idle")
	}
	ticker := factory.get(0)
	if !ticker.isStopped() {
		t.Fatal("expected ticker to be stopped")
	}
	if ticker.tick() {
		t.Fatal("stopped run should not accept ticks")
	}
	sink.expectNone(t)
}

// stallingSink blocks every update after the first until its context ends,
// like a listener stuck on an unreachable broker.
type stallingSink struct {
	mu       sync.Mutex
	calls    int
	entered  chan struct{}
	released chan error
}

func (s *stallingSink) SetLocation(ctx context.Context, _ domain.Coordinate) {
	s.mu.Lock()
	s.calls++
	first := s.calls == 1
	s.mu.Unlock()
	if first {
		return
	}

	s.entered <- struct{}{}
	<-ctx.Done()
	s.released <- ctx.Err()
}

func TestSimulator_StopRunCancelsStalledUpdate(t *testing.T) {
	sink := &stallingSink{entered: make(chan struct{}, 1), released: make(chan error, 1)}
	factory := &tickerFactory{}
	sim := NewSimulator(sink)
	sim.newTicker = factory.newTicker

	sim.StartRun([]domain.Coordinate{p0, p1, p2}, time.Second)
	if !factory.get(0).tick() {
		t.Fatal("tick not accepted")
	}
	select {
	case <-sink.entered:
	case <-time.After(time.Second):
		t.Fatal("update never reached the sink")
	}

	stopped := make(chan struct{})
	go func() {
		sim.StopRun()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("StopRun blocked on a stalled update")
	}
	if err := <-sink.released; !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if sim.State() != domain.SimulatorIdle {
		t.Error("expected idle")
	}
}

func TestSimulator_UpdateContextIsBounded(t *testing.T) {
	var deadline time.Time
	var ok bool
	sink := positionSinkFunc(func(ctx context.Context, _ domain.Coordinate) {
		deadline, ok = ctx.Deadline()
	})
	sim := NewSimulator(sink)

	sim.StartRun([]domain.Coordinate{p0}, time.Second)

	if !ok {
		t.Fatal("expected update context to carry a deadline")
	}
	if time.Until(deadline) > simulatorTickTimeout {
		t.Errorf("deadline %v is further out than %v", time.Until(deadline), simulatorTickTimeout)
	}
}

type positionSinkFunc func(ctx context.Context, c domain.Coordinate)

func (f positionSinkFunc) SetLocation(ctx context.Context, c domain.Coordinate) { f(ctx, c) }

func TestSimulator_ApproachArrives(t *testing.T) {
	sim, sink, factory := newTestSimulator()

	sim.StartApproach(p0, p2, time.Second)
	if got := sink.next(t); got != p0 {
		t.Fatalf("expected start at %v, got %v", p0, got)
	}

	ticker := factory.get(0)
	prev := geo.DistanceKm(p0, p2)
	var last domain.Coordinate
	for i := 0; i < 200 && ticker.tick(); i++ {
		last = sink.next(t)
		d := geo.DistanceKm(last, p2)
		if d >= prev {
			t.Fatalf("tick %d did not get closer: %f >= %f", i, d, prev)
		}
		prev = d
	}

	waitIdle(t, sim)
	if last != p2 {
		t.Fatalf("expected to arrive at %v, got %v", p2, last)
	}
}

func TestSimulator_ApproachAlreadyThere(t *testing.T) {
	sim, sink, factory := newTestSimulator()

	near := domain.Coordinate{Lat: p2.Lat + 0.0001, Lon: p2.Lon}
	sim.StartApproach(near, p2, time.Second)

	if got := sink.next(t); got != p2 {
		t.Fatalf("expected snap to %v, got %v", p2, got)
	}
	if sim.State() != domain.SimulatorIdle {
		t.Fatal("expected idle")
	}
	if factory.count() != 0 {
		t.Fatalf("expected no ticker, got %d", factory.count())
	}
}
