package driver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gin-gonic/gin"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/bahromnajmiddinov/food-delivery/module/driver/domain"
	"github.com/bahromnajmiddinov/food-delivery/module/driver/internal/directions/google"
	handler "github.com/bahromnajmiddinov/food-delivery/module/driver/internal/handler/http"
	"github.com/bahromnajmiddinov/food-delivery/module/driver/internal/handler/subscriber"
	"github.com/bahromnajmiddinov/food-delivery/module/driver/internal/repository/database"
	"github.com/bahromnajmiddinov/food-delivery/module/driver/internal/repository/database/memory"
	"github.com/bahromnajmiddinov/food-delivery/module/driver/internal/repository/database/postgres"
	mqttpub "github.com/bahromnajmiddinov/food-delivery/module/driver/internal/repository/publisher/mqtt"
	"github.com/bahromnajmiddinov/food-delivery/module/driver/internal/repository/publisher/rabbitmq"
	"github.com/bahromnajmiddinov/food-delivery/module/driver/service"
)

// Deps are the infrastructure connections. Each may be nil: without DB zones
// live in memory and history is off, without AMQP no geofence alerts are
// sent, without MQTT there is no GPS feed and no position publishing.
type Deps struct {
	DB   *sql.DB
	AMQP *amqp.Connection
	MQTT mqtt.Client
}

type Options struct {
	DriverID          string
	APIKey            string
	DirectionsBaseURL string
	DirectionsTimeout time.Duration
	SimulatorInterval time.Duration
}

// Module is built once per process and shared by reference.
type Module struct {
	Locations *service.LocationService
	Zones     *service.ZoneRegistry
	Simulator *service.Simulator
	Planner   *service.RoutePlanner

	handler     *handler.DriverHandler
	stream      *handler.PositionStream
	subscriber  *subscriber.LocationSubscriber
	unsubscribe []func()
}

func Build(ctx context.Context, deps Deps, opts Options) (*Module, error) {
	var (
		store        database.KeyValueStore = memory.NewKeyValueStore()
		locationRepo database.LocationRepository
	)
	if deps.DB != nil {
		store = postgres.NewKeyValueStore(deps.DB)
		locationRepo = postgres.NewLocationRepo(deps.DB)
	}

	interval := opts.SimulatorInterval
	if interval <= 0 {
		interval = service.DefaultSimulatorInterval
	}

	zones := service.NewZoneRegistry(ctx, store)
	locationSvc := service.NewLocationService(opts.DriverID, locationRepo)
	if err := locationSvc.Restore(ctx); err != nil && !errors.Is(err, database.ErrNotFound) {
		log.Printf("restore driver location error: %v", err)
	}

	directions := google.NewClient(google.Config{
		BaseURL: opts.DirectionsBaseURL,
		APIKey:  opts.APIKey,
		Timeout: opts.DirectionsTimeout,
	})

	m := &Module{
		Locations: locationSvc,
		Zones:     zones,
		Simulator: service.NewSimulator(locationSvc),
		Planner:   service.NewRoutePlanner(directions, ""),
		stream:    handler.NewPositionStream(),
	}

	if deps.AMQP != nil {
		geofencePub, err := rabbitmq.NewGeofencePublisher(deps.AMQP)
		if err != nil {
			return nil, fmt.Errorf("geofence publisher: %w", err)
		}
		m.listen(service.NewGeofenceService(geofencePub, zones))
	}

	if deps.MQTT != nil {
		positionPub := mqttpub.NewPositionPublisher(deps.MQTT)
		m.listen(service.PositionListenerFunc(positionPub.PublishPosition))
		m.subscriber = subscriber.NewLocationSubscriber(deps.MQTT, locationSvc, m.Simulator)
	}

	m.listen(m.stream)
	m.handler = handler.NewDriverHandler(locationSvc, zones, m.Planner, m.Simulator, interval)

	return m, nil
}

func (m *Module) listen(l service.PositionListener) {
	m.unsubscribe = append(m.unsubscribe, m.Locations.Subscribe(l))
}

func (m *Module) RegisterRoutes(r *gin.RouterGroup) {
	m.handler.Register(r)
	m.stream.Register(r)
}

func (m *Module) StartSubscribers() error {
	if m.subscriber == nil {
		return nil
	}
	return m.subscriber.Start()
}

// EstimateETA runs the local estimator from the driver's current position.
func (m *Module) EstimateETA(destination domain.Coordinate, preparationMinutes, trafficMultiplier float64) domain.ETAResult {
	return m.Locations.EstimateETA(destination, preparationMinutes, trafficMultiplier)
}

// InZone reports whether the driver's current position is inside any zone.
func (m *Module) InZone() bool {
	c, ok := m.Locations.Location()
	return ok && m.Zones.Contains(c)
}

// Close stops the simulator, detaches listeners and waits for pending zone
// writes.
func (m *Module) Close() {
	m.Simulator.StopRun()
	for _, unsubscribe := range m.unsubscribe {
		unsubscribe()
	}
	m.stream.Close()
	m.Zones.Flush()
}
