package mqtt

import (
	"context"
	"encoding/json"
	"fmt"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/bahromnajmiddinov/food-delivery/module/driver/domain"
	"github.com/bahromnajmiddinov/food-delivery/module/driver/internal/repository/publisher"
)

var _ publisher.PositionPublisher = (*PositionPublisher)(nil)

const topicFormat = "/fleet/driver/%s/position"

type PositionPublisher struct {
	client pahomqtt.Client
}

func NewPositionPublisher(client pahomqtt.Client) *PositionPublisher {
	return &PositionPublisher{client: client}
}

type positionMessage struct {
	DriverID  string  `json:"driver_id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Geohash   string  `json:"geohash"`
	Timestamp int64   `json:"timestamp"`
}

func Topic(driverID string) string {
	return fmt.Sprintf(topicFormat, driverID)
}

// PublishPosition sends at QoS 0 and does not wait for the broker beyond ctx.
func (p *PositionPublisher) PublishPosition(ctx context.Context, loc *domain.DriverLocation) error {
	payload, err := json.Marshal(positionMessage{
		DriverID:  loc.DriverID,
		Latitude:  loc.Location.Lat,
		Longitude: loc.Location.Lon,
		Geohash:   loc.Geohash,
		Timestamp: loc.Timestamp.Unix(),
	})
	if err != nil {
		return fmt.Errorf("marshal position: %w", err)
	}

	token := p.client.Publish(Topic(loc.DriverID), 0, false, payload)
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
