package service

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/mmcloughlin/geohash"

	"github.com/bahromnajmiddinov/food-delivery/module/driver/domain"
	"github.com/bahromnajmiddinov/food-delivery/module/driver/internal/repository/database"
)

const geohashPrecision = 9

// PositionListener is told about every position change, in order, on the
// goroutine that made the change.
type PositionListener interface {
	OnPosition(ctx context.Context, loc *domain.DriverLocation) error
}

type PositionListenerFunc func(ctx context.Context, loc *domain.DriverLocation) error

func (f PositionListenerFunc) OnPosition(ctx context.Context, loc *domain.DriverLocation) error {
	return f(ctx, loc)
}

type listenerEntry struct {
	id int
	l  PositionListener
}

// LocationService owns the driver's current position. Writers are the
// simulator and the GPS feed; readers are the estimator, zone checks and the
// outer surfaces.
type LocationService struct {
	driverID string
	repo     database.LocationRepository
	now      func() time.Time

	mu        sync.RWMutex
	current   *domain.DriverLocation
	listeners []listenerEntry
	nextID    int

	// serializes notification so listeners see updates in write order
	notifyMu sync.Mutex
}

// NewLocationService creates the position holder. repo may be nil, in which
// case history is neither recorded nor queryable.
func NewLocationService(driverID string, repo database.LocationRepository) *LocationService {
	return &LocationService{
		driverID: driverID,
		repo:     repo,
		now:      time.Now,
	}
}

func (s *LocationService) DriverID() string {
	return s.driverID
}

// Location returns the current position, or false when none is known yet.
func (s *LocationService) Location() (domain.Coordinate, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return domain.Coordinate{}, false
	}
	return s.current.Location, true
}

// Current returns a copy of the latest fix, or nil.
func (s *LocationService) Current() *domain.DriverLocation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil
	}
	dl := *s.current
	return &dl
}

// SetLocation replaces the current position, records it and notifies
// listeners. Recording and listener failures are logged, never returned.
func (s *LocationService) SetLocation(ctx context.Context, c domain.Coordinate) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	dl := &domain.DriverLocation{
		DriverID:  s.driverID,
		Location:  c,
		Geohash:   geohash.EncodeWithPrecision(c.Lat, c.Lon, geohashPrecision),
		Timestamp: s.now(),
	}

	s.mu.Lock()
	s.current = dl
	listeners := make([]PositionListener, len(s.listeners))
	for i, e := range s.listeners {
		listeners[i] = e.l
	}
	s.mu.Unlock()

	if s.repo != nil {
		if err := s.repo.Insert(ctx, dl); err != nil {
			log.Printf("record location error: %v", err)
		}
	}

	for _, l := range listeners {
		snapshot := *dl
		if err := l.OnPosition(ctx, &snapshot); err != nil {
			log.Printf("position listener error: %v", err)
		}
	}
}

// Subscribe registers l and returns a function that removes it.
func (s *LocationService) Subscribe(l PositionListener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners = append(s.listeners, listenerEntry{id: id, l: l})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, e := range s.listeners {
			if e.id == id {
				s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

// Restore seeds the current position from the last recorded fix without
// notifying listeners.
func (s *LocationService) Restore(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}
	dl, err := s.repo.GetLatest(ctx, s.driverID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.current == nil {
		s.current = dl
	}
	s.mu.Unlock()
	return nil
}

func (s *LocationService) GetHistory(ctx context.Context, query *domain.HistoryQuery) ([]domain.DriverLocation, error) {
	if s.repo == nil {
		return nil, domain.ErrHistoryUnavailable
	}
	if query.DriverID == "" {
		query.DriverID = s.driverID
	}
	return s.repo.GetHistory(ctx, query)
}
