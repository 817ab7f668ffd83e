package service

import (
	"context"
	"log"
	"math"
	"sync"

	"github.com/bahromnajmiddinov/food-delivery/module/driver/domain"
)

type routeFetcher interface {
	FetchRoute(ctx context.Context, origin, destination domain.Coordinate, apiKey string) (*domain.Route, error)
}

// RoutePlanner combines the local estimator with the directions service.
type RoutePlanner struct {
	fetcher routeFetcher
	apiKey  string

	mu     sync.Mutex
	seq    uint64
	latest map[string]uint64
}

// NewRoutePlanner builds a planner. An empty apiKey leaves key resolution to
// the fetcher.
func NewRoutePlanner(fetcher routeFetcher, apiKey string) *RoutePlanner {
	return &RoutePlanner{
		fetcher: fetcher,
		apiKey:  apiKey,
		latest:  make(map[string]uint64),
	}
}

// Plan returns a live route estimate when the directions service answers
// with a usable route and the local approximation otherwise. Directions
// failures never escape; the only error is domain.ErrStale.
func (p *RoutePlanner) Plan(ctx context.Context, selectionID string, origin *domain.Coordinate, destination domain.Coordinate, preparationMinutes float64) (*domain.RouteEstimate, error) {
	ticket := p.begin(selectionID)

	result := p.plan(ctx, origin, destination, preparationMinutes)

	if !p.finish(selectionID, ticket) {
		return nil, domain.ErrStale
	}
	return result, nil
}

func (p *RoutePlanner) plan(ctx context.Context, origin *domain.Coordinate, destination domain.Coordinate, preparationMinutes float64) *domain.RouteEstimate {
	estimate := EstimateETA(origin, destination, preparationMinutes, 1)
	fallback := &domain.RouteEstimate{
		Minutes:     estimate.Minutes,
		DistanceKm:  estimate.DistanceKm,
		Source:      domain.SourceEstimate,
		Approximate: true,
	}
	if origin == nil {
		return fallback
	}

	route, err := p.fetcher.FetchRoute(ctx, *origin, destination, p.apiKey)
	if err != nil {
		log.Printf("fetch route error, using estimate: %v", err)
		return fallback
	}
	if route.Empty() {
		log.Printf("no route between %v and %v, using estimate", *origin, destination)
		return fallback
	}

	minutes := int(math.Round(float64(*route.DurationSeconds) / 60))
	live := &domain.RouteEstimate{
		Minutes: &minutes,
		Path:    route.Path,
		Source:  domain.SourceLive,
	}
	if route.DistanceMeters != nil {
		km := roundTo(float64(*route.DistanceMeters)/1000, 2)
		live.DistanceKm = &km
	} else {
		live.DistanceKm = estimate.DistanceKm
	}
	return live
}

func (p *RoutePlanner) begin(selectionID string) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	p.latest[selectionID] = p.seq
	return p.seq
}

// finish reports whether ticket is still the newest request for selectionID.
func (p *RoutePlanner) finish(selectionID string, ticket uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.latest[selectionID] != ticket {
		return false
	}
	delete(p.latest, selectionID)
	return true
}
