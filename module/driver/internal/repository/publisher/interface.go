package publisher

import (
	"context"

	"github.com/bahromnajmiddinov/food-delivery/module/driver/domain"
)

type GeofencePublisher interface {
	PublishAlert(ctx context.Context, alert *domain.GeofenceAlert) error
}

type PositionPublisher interface {
	PublishPosition(ctx context.Context, loc *domain.DriverLocation) error
}
