package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bahromnajmiddinov/food-delivery/module/driver/domain"
	"github.com/bahromnajmiddinov/food-delivery/module/driver/geo"
	"github.com/bahromnajmiddinov/food-delivery/module/driver/internal/repository/publisher"
)

type zoneLister interface {
	List() []domain.Zone
}

// GeofenceService turns position updates into zone entry and exit alerts.
// It tracks, per zone, whether the last seen position was inside.
type GeofenceService struct {
	publisher publisher.GeofencePublisher
	zones     zoneLister

	mu     sync.Mutex
	inside map[string]bool
}

func NewGeofenceService(pub publisher.GeofencePublisher, zones zoneLister) *GeofenceService {
	return &GeofenceService{
		publisher: pub,
		zones:     zones,
		inside:    make(map[string]bool),
	}
}

func (s *GeofenceService) OnPosition(ctx context.Context, dl *domain.DriverLocation) error {
	return s.CheckAndAlert(ctx, dl)
}

// CheckAndAlert publishes an alert for every zone whose membership changed
// since the previous call. State advances even when publishing fails.
func (s *GeofenceService) CheckAndAlert(ctx context.Context, dl *domain.DriverLocation) error {
	zones := s.zones.List()

	s.mu.Lock()
	var alerts []*domain.GeofenceAlert
	present := make(map[string]bool, len(zones))
	for _, z := range zones {
		present[z.ID] = true
		in := geo.IsWithin(dl.Location, z)
		if in == s.inside[z.ID] {
			continue
		}
		s.inside[z.ID] = in

		event := domain.GeofenceExit
		if in {
			event = domain.GeofenceEntry
		}
		alerts = append(alerts, &domain.GeofenceAlert{
			DriverID:  dl.DriverID,
			ZoneID:    z.ID,
			ZoneName:  z.Name,
			Event:     event,
			Location:  dl.Location,
			Timestamp: dl.Timestamp.Unix(),
		})
	}
	for id := range s.inside {
		if !present[id] {
			delete(s.inside, id)
		}
	}
	s.mu.Unlock()

	var errs []error
	for _, a := range alerts {
		if err := s.publisher.PublishAlert(ctx, a); err != nil {
			errs = append(errs, fmt.Errorf("publish %s for zone %s: %w", a.Event, a.ZoneID, err))
		}
	}
	return errors.Join(errs...)
}
