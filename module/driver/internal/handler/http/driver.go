package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bahromnajmiddinov/food-delivery/module/driver/domain"
)

type locationService interface {
	Current() *domain.DriverLocation
	SetLocation(ctx context.Context, c domain.Coordinate)
	EstimateETA(destination domain.Coordinate, preparationMinutes, trafficMultiplier float64) domain.ETAResult
	GetHistory(ctx context.Context, query *domain.HistoryQuery) ([]domain.DriverLocation, error)
}

type zoneRegistry interface {
	Add(center domain.Coordinate, radiusMeters float64, name string) domain.Zone
	Remove(id string)
	Get(id string) (domain.Zone, bool)
	List() []domain.Zone
	Contains(point domain.Coordinate) bool
}

type routePlanner interface {
	Plan(ctx context.Context, selectionID string, origin *domain.Coordinate, destination domain.Coordinate, preparationMinutes float64) (*domain.RouteEstimate, error)
}

type simulator interface {
	StartRun(route []domain.Coordinate, interval time.Duration)
	StartApproach(from, to domain.Coordinate, interval time.Duration)
	StopRun()
	State() domain.SimulatorState
}

type DriverHandler struct {
	locationSvc locationService
	zones       zoneRegistry
	planner     routePlanner
	simulator   simulator
	interval    time.Duration
}

func NewDriverHandler(locationSvc locationService, zones zoneRegistry, planner routePlanner, sim simulator, interval time.Duration) *DriverHandler {
	return &DriverHandler{
		locationSvc: locationSvc,
		zones:       zones,
		planner:     planner,
		simulator:   sim,
		interval:    interval,
	}
}

func (h *DriverHandler) Register(r *gin.RouterGroup) {
	r.GET("/driver/location", h.GetLocation)
	r.PUT("/driver/location", h.SetLocation)
	r.GET("/driver/history", h.GetHistory)

	r.GET("/zones", h.ListZones)
	r.POST("/zones", h.AddZone)
	r.DELETE("/zones/:id", h.RemoveZone)
	r.GET("/zones/contains", h.InZone)

	r.GET("/eta", h.EstimateETA)
	r.GET("/route", h.PlanRoute)

	r.GET("/simulator", h.SimulatorState)
	r.POST("/simulator/start", h.StartSimulator)
	r.POST("/simulator/stop", h.StopSimulator)
}

type coordinateRequest struct {
	Latitude  *float64 `json:"latitude" form:"lat" binding:"required,latitude"`
	Longitude *float64 `json:"longitude" form:"lon" binding:"required,longitude"`
}

func (r coordinateRequest) coordinate() domain.Coordinate {
	return domain.Coordinate{Lat: *r.Latitude, Lon: *r.Longitude}
}

type locationResponse struct {
	DriverID  string  `json:"driver_id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Geohash   string  `json:"geohash"`
	Timestamp int64   `json:"timestamp"`
}

func toLocationResponse(dl *domain.DriverLocation) locationResponse {
	return locationResponse{
		DriverID:  dl.DriverID,
		Latitude:  dl.Location.Lat,
		Longitude: dl.Location.Lon,
		Geohash:   dl.Geohash,
		Timestamp: dl.Timestamp.Unix(),
	}
}

func (h *DriverHandler) GetLocation(c *gin.Context) {
	dl := h.locationSvc.Current()
	if dl == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "driver location unknown"})
		return
	}
	c.JSON(http.StatusOK, toLocationResponse(dl))
}

// SetLocation applies a manual fix. Any simulator run is stopped first.
func (h *DriverHandler) SetLocation(c *gin.Context) {
	var req coordinateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.simulator.StopRun()
	h.locationSvc.SetLocation(c.Request.Context(), req.coordinate())
	c.JSON(http.StatusOK, toLocationResponse(h.locationSvc.Current()))
}

func (h *DriverHandler) GetHistory(c *gin.Context) {
	start, err := strconv.ParseInt(c.Query("start"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start parameter"})
		return
	}

	end, err := strconv.ParseInt(c.Query("end"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end parameter"})
		return
	}

	query := &domain.HistoryQuery{
		Start: time.Unix(start, 0),
		End:   time.Unix(end, 0),
	}

	locations, err := h.locationSvc.GetHistory(c.Request.Context(), query)
	if err != nil {
		if errors.Is(err, domain.ErrHistoryUnavailable) {
			c.JSON(http.StatusNotFound, gin.H{"error": "location history is not configured"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch history"})
		return
	}

	results := make([]locationResponse, len(locations))
	for i := range locations {
		results[i] = toLocationResponse(&locations[i])
	}
	c.JSON(http.StatusOK, results)
}

// Prep below zero and Traffic at or below zero are normalized by the
// estimator, not rejected.
type etaQuery struct {
	coordinateRequest
	Prep    float64 `form:"prep"`
	Traffic float64 `form:"traffic"`
}

func (h *DriverHandler) EstimateETA(c *gin.Context) {
	var q etaQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.locationSvc.EstimateETA(q.coordinate(), q.Prep, q.Traffic))
}

type routeQuery struct {
	coordinateRequest
	Selection string  `form:"selection" binding:"required"`
	Prep      float64 `form:"prep"`
	Format    string  `form:"format" binding:"omitempty,oneof=json geojson"`
}

func (h *DriverHandler) PlanRoute(c *gin.Context) {
	var q routeQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var origin *domain.Coordinate
	if dl := h.locationSvc.Current(); dl != nil {
		origin = &dl.Location
	}

	est, err := h.planner.Plan(c.Request.Context(), q.Selection, origin, q.coordinate(), q.Prep)
	if err != nil {
		if errors.Is(err, domain.ErrStale) {
			c.JSON(http.StatusConflict, gin.H{"error": "superseded by a newer request"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to plan route"})
		return
	}

	if q.Format == "geojson" {
		writeGeoJSON(c, routeFeatureCollection(est))
		return
	}
	c.JSON(http.StatusOK, est)
}

func (h *DriverHandler) ListZones(c *gin.Context) {
	zones := h.zones.List()
	if c.Query("format") == "geojson" {
		writeGeoJSON(c, zoneFeatureCollection(zones))
		return
	}
	c.JSON(http.StatusOK, zones)
}

type addZoneRequest struct {
	Center       coordinateRequest `json:"center"`
	RadiusMeters float64           `json:"radiusMeters"`
	Name         string            `json:"name"`
}

// AddZone registers a zone. Radii below the minimum are raised, not rejected.
func (h *DriverHandler) AddZone(c *gin.Context) {
	var req addZoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	zone := h.zones.Add(req.Center.coordinate(), req.RadiusMeters, req.Name)
	c.JSON(http.StatusCreated, zone)
}

func (h *DriverHandler) RemoveZone(c *gin.Context) {
	id := c.Param("id")
	if _, ok := h.zones.Get(id); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "zone not found"})
		return
	}

	h.zones.Remove(id)
	c.Status(http.StatusNoContent)
}

func (h *DriverHandler) InZone(c *gin.Context) {
	var q coordinateRequest
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"inZone": h.zones.Contains(q.coordinate())})
}

type startSimulatorRequest struct {
	Route      []coordinateRequest `json:"route" binding:"omitempty,dive"`
	From       *coordinateRequest  `json:"from"`
	To         *coordinateRequest  `json:"to"`
	IntervalMs int                 `json:"intervalMs" binding:"gte=0"`
}

// StartSimulator starts a run along an explicit route, or an approach run
// from "from" (or the current position) to "to".
func (h *DriverHandler) StartSimulator(c *gin.Context) {
	var req startSimulatorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	interval := h.interval
	if req.IntervalMs > 0 {
		interval = time.Duration(req.IntervalMs) * time.Millisecond
	}

	switch {
	case req.To != nil:
		var from domain.Coordinate
		if req.From != nil {
			from = req.From.coordinate()
		} else if dl := h.locationSvc.Current(); dl != nil {
			from = dl.Location
		} else {
			c.JSON(http.StatusBadRequest, gin.H{"error": "approach needs a start position"})
			return
		}
		h.simulator.StartApproach(from, req.To.coordinate(), interval)
	default:
		route := make([]domain.Coordinate, len(req.Route))
		for i, p := range req.Route {
			route[i] = p.coordinate()
		}
		h.simulator.StartRun(route, interval)
	}

	c.JSON(http.StatusAccepted, gin.H{"state": h.simulator.State()})
}

func (h *DriverHandler) StopSimulator(c *gin.Context) {
	h.simulator.StopRun()
	c.JSON(http.StatusOK, gin.H{"state": h.simulator.State()})
}

func (h *DriverHandler) SimulatorState(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"state": h.simulator.State()})
}
