package database

import (
	"context"
	"errors"

	"github.com/bahromnajmiddinov/food-delivery/module/driver/domain"
)

// ErrNotFound is returned by a KeyValueStore for a key that was never set.
var ErrNotFound = errors.New("key not found")

type KeyValueStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

type LocationRepository interface {
	Insert(ctx context.Context, loc *domain.DriverLocation) error
	GetLatest(ctx context.Context, driverID string) (*domain.DriverLocation, error)
	GetHistory(ctx context.Context, query *domain.HistoryQuery) ([]domain.DriverLocation, error)
}
