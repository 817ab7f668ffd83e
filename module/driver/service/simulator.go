package service

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/bahromnajmiddinov/food-delivery/module/driver/domain"
	"github.com/bahromnajmiddinov/food-delivery/module/driver/geo"
)

const (
	DefaultSimulatorInterval = 3 * time.Second

	// bounds one position update, listeners included
	simulatorTickTimeout = 5 * time.Second

	approachArrivalMeters = 25
	approachMinStepMeters = 10
	approachMinFraction   = 0.1
	approachFractionSpan  = 0.2
)

type positionSink interface {
	SetLocation(ctx context.Context, c domain.Coordinate)
}

// Ticker is the part of time.Ticker the simulator uses.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct {
	t *time.Ticker
}

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

func newTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

// mover produces the successive positions of one run.
type mover interface {
	first() domain.Coordinate
	advance() domain.Coordinate
	arrived() bool
}

type routeMover struct {
	route  []domain.Coordinate
	cursor int
}

func (m *routeMover) first() domain.Coordinate {
	m.cursor = 0
	return m.route[0]
}

func (m *routeMover) advance() domain.Coordinate {
	if m.cursor < len(m.route)-1 {
		m.cursor++
	}
	return m.route[m.cursor]
}

func (m *routeMover) arrived() bool {
	return m.cursor >= len(m.route)-1
}

// approachMover closes a random fraction of the remaining distance on every
// tick and snaps to the destination once inside the arrival radius.
type approachMover struct {
	pos, dest domain.Coordinate
	rnd       *rand.Rand
}

func (m *approachMover) first() domain.Coordinate {
	m.snap()
	return m.pos
}

func (m *approachMover) advance() domain.Coordinate {
	remaining := geo.DistanceKm(m.pos, m.dest) * 1000
	if remaining > 0 {
		step := (approachMinFraction + m.rnd.Float64()*approachFractionSpan) * remaining
		if step < approachMinStepMeters {
			step = approachMinStepMeters
		}
		m.pos = geo.Toward(m.pos, m.dest, step/remaining)
	}
	m.snap()
	return m.pos
}

func (m *approachMover) snap() {
	if geo.DistanceKm(m.pos, m.dest)*1000 <= approachArrivalMeters {
		m.pos = m.dest
	}
}

func (m *approachMover) arrived() bool {
	return m.pos == m.dest
}

type simulatorRun struct {
	ctx    context.Context
	cancel context.CancelFunc
	stop   chan struct{}
	done   chan struct{}
}

// Simulator moves a synthetic driver when there is no real location feed.
//
// It is Idle or Running. Each run owns exactly one ticker and one goroutine;
// starting a new run first stops the old one and waits for its goroutine to
// exit, so two tickers never drive the same position. Arrival is terminal.
type Simulator struct {
	sink      positionSink
	newTicker func(time.Duration) Ticker
	rnd       *rand.Rand

	// held for the whole of Start*/StopRun
	opMu sync.Mutex

	mu  sync.Mutex
	run *simulatorRun
}

func NewSimulator(sink positionSink) *Simulator {
	return &Simulator{
		sink:      sink,
		newTicker: newTimeTicker,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// StartRun follows route one point per tick, beginning at route[0]
// immediately. An empty route leaves the simulator Idle. A non-positive
// interval means DefaultSimulatorInterval.
func (s *Simulator) StartRun(route []domain.Coordinate, interval time.Duration) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.stopLocked()
	if len(route) == 0 {
		return
	}
	path := make([]domain.Coordinate, len(route))
	copy(path, route)
	s.startLocked(&routeMover{route: path}, interval)
}

// StartApproach walks from `from` toward `to` in randomized steps until it
// arrives.
func (s *Simulator) StartApproach(from, to domain.Coordinate, interval time.Duration) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.stopLocked()
	s.startLocked(&approachMover{pos: from, dest: to, rnd: s.rnd}, interval)
}

// StopRun cancels the active run, if any. Once it returns no further
// position updates from that run will happen. It must not be called from a
// position listener, which runs on the simulator goroutine.
func (s *Simulator) StopRun() {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	s.stopLocked()
}

func (s *Simulator) State() domain.SimulatorState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.run != nil {
		return domain.SimulatorRunning
	}
	return domain.SimulatorIdle
}

func (s *Simulator) stopLocked() {
	s.mu.Lock()
	r := s.run
	s.run = nil
	s.mu.Unlock()

	if r != nil {
		r.cancel()
		close(r.stop)
		<-r.done
	}
}

func (s *Simulator) startLocked(m mover, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSimulatorInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &simulatorRun{ctx: ctx, cancel: cancel, stop: make(chan struct{}), done: make(chan struct{})}

	s.update(r, m.first())
	if m.arrived() {
		cancel()
		return
	}

	s.mu.Lock()
	s.run = r
	s.mu.Unlock()

	go s.loop(r, s.newTicker(interval), m)
}

func (s *Simulator) update(r *simulatorRun, c domain.Coordinate) {
	ctx, cancel := context.WithTimeout(r.ctx, simulatorTickTimeout)
	defer cancel()
	s.sink.SetLocation(ctx, c)
}

func (s *Simulator) loop(r *simulatorRun, t Ticker, m mover) {
	defer close(r.done)
	defer r.cancel()
	defer t.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-t.C():
		}

		select {
		case <-r.stop:
			return
		default:
		}

		s.update(r, m.advance())
		if m.arrived() {
			s.mu.Lock()
			if s.run == r {
				s.run = nil
			}
			s.mu.Unlock()
			return
		}
	}
}
