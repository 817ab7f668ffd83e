package domain

import "time"

// Coordinate is a WGS-84 position in decimal degrees.
type Coordinate struct {
	Lat float64 `json:"latitude"`
	Lon float64 `json:"longitude"`
}

type DriverLocation struct {
	DriverID  string     `json:"driver_id"`
	Location  Coordinate `json:"location"`
	Geohash   string     `json:"geohash"`
	Timestamp time.Time  `json:"timestamp"`
}

type HistoryQuery struct {
	DriverID string
	Start    time.Time
	End      time.Time
}
