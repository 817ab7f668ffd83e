package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/bahromnajmiddinov/food-delivery/module/driver/domain"
	"github.com/bahromnajmiddinov/food-delivery/module/driver/internal/repository/database"
)

var _ database.LocationRepository = (*LocationRepo)(nil)

type LocationRepo struct {
	db *sql.DB
}

func NewLocationRepo(db *sql.DB) *LocationRepo {
	return &LocationRepo{db: db}
}

func (r *LocationRepo) Insert(ctx context.Context, loc *domain.DriverLocation) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO driver_locations (driver_id, latitude, longitude, geohash, timestamp) VALUES ($1, $2, $3, $4, $5)`,
		loc.DriverID, loc.Location.Lat, loc.Location.Lon, loc.Geohash, loc.Timestamp,
	)
	return err
}

func (r *LocationRepo) GetLatest(ctx context.Context, driverID string) (*domain.DriverLocation, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT driver_id, latitude, longitude, geohash, timestamp FROM driver_locations WHERE driver_id = $1 ORDER BY timestamp DESC LIMIT 1`,
		driverID,
	)

	var dl domain.DriverLocation
	if err := row.Scan(&dl.DriverID, &dl.Location.Lat, &dl.Location.Lon, &dl.Geohash, &dl.Timestamp); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrNotFound
		}
		return nil, err
	}
	return &dl, nil
}

func (r *LocationRepo) GetHistory(ctx context.Context, query *domain.HistoryQuery) ([]domain.DriverLocation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT driver_id, latitude, longitude, geohash, timestamp FROM driver_locations WHERE driver_id = $1 AND timestamp >= $2 AND timestamp <= $3 ORDER BY timestamp ASC`,
		query.DriverID, query.Start, query.End,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var results []domain.DriverLocation
	for rows.Next() {
		var dl domain.DriverLocation
		if err := rows.Scan(&dl.DriverID, &dl.Location.Lat, &dl.Location.Lon, &dl.Geohash, &dl.Timestamp); err != nil {
			return nil, err
		}
		results = append(results, dl)
	}
	return results, rows.Err()
}
