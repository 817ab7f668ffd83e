package domain

// ETAResult is the output of the local estimator. Nil fields mean the
// estimator had no position fix to work from.
type ETAResult struct {
	Minutes    *int     `json:"minutes"`
	DistanceKm *float64 `json:"distanceKm"`
}

// Route is the result of a single directions fetch.
type Route struct {
	Path            []Coordinate `json:"path"`
	DurationSeconds *int         `json:"durationSeconds"`
	DistanceMeters  *int         `json:"distanceMeters"`
}

// Empty reports whether the route carries no usable duration. Callers treat
// an empty route the same as a failed fetch.
func (r *Route) Empty() bool {
	return r == nil || r.DurationSeconds == nil
}

type EstimateSource string

const (
	SourceLive     EstimateSource = "live"
	SourceEstimate EstimateSource = "estimate"
)

// RouteEstimate is what consumers display: a live figure when the directions
// service answered, otherwise the local approximation.
type RouteEstimate struct {
	Minutes     *int           `json:"minutes"`
	DistanceKm  *float64       `json:"distanceKm"`
	Path        []Coordinate   `json:"path"`
	Source      EstimateSource `json:"source"`
	Approximate bool           `json:"approximate"`
}
