package domain

// MinZoneRadiusMeters is the floor applied to every zone radius.
const MinZoneRadiusMeters = 50

// Zone is a named circular geofence.
type Zone struct {
	ID           string     `json:"id"`
	Center       Coordinate `json:"center"`
	RadiusMeters float64    `json:"radiusMeters"`
	Name         string     `json:"name,omitempty"`
}

type GeofenceEventType string

const (
	GeofenceEntry GeofenceEventType = "geofence_entry"
	GeofenceExit  GeofenceEventType = "geofence_exit"
)

type GeofenceAlert struct {
	DriverID  string            `json:"driver_id"`
	ZoneID    string            `json:"zone_id"`
	ZoneName  string            `json:"zone_name,omitempty"`
	Event     GeofenceEventType `json:"event"`
	Location  Coordinate        `json:"location"`
	Timestamp int64             `json:"timestamp"`
}
