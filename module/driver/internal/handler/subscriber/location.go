package subscriber

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/go-playground/validator/v10"

	"github.com/bahromnajmiddinov/food-delivery/module/driver/domain"
)

const topicPattern = "/fleet/driver/+/location"

type locationService interface {
	DriverID() string
	SetLocation(ctx context.Context, c domain.Coordinate)
}

// simulator is stopped before a real fix is applied so the two sources never
// interleave.
type simulator interface {
	StopRun()
}

type locationMessage struct {
	DriverID  string  `json:"driver_id" validate:"required"`
	Latitude  float64 `json:"latitude" validate:"latitude"`
	Longitude float64 `json:"longitude" validate:"longitude"`
	Timestamp int64   `json:"timestamp" validate:"gt=0"`
}

var validate = validator.New()

type LocationSubscriber struct {
	client      mqtt.Client
	locationSvc locationService
	simulator   simulator
}

func NewLocationSubscriber(client mqtt.Client, locationSvc locationService, sim simulator) *LocationSubscriber {
	return &LocationSubscriber{
		client:      client,
		locationSvc: locationSvc,
		simulator:   sim,
	}
}

func (s *LocationSubscriber) Start() error {
	token := s.client.Subscribe(topicPattern, 1, s.handleMessage)
	token.Wait()
	return token.Error()
}

func (s *LocationSubscriber) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	var raw locationMessage
	if err := json.Unmarshal(msg.Payload(), &raw); err != nil {
		log.Printf("invalid location message: %v", err)
		return
	}

	if err := validateLocationMessage(&raw); err != nil {
		log.Printf("validation error: %v", err)
		return
	}

	// the topic carries the id as well; both must name this driver
	if raw.DriverID != s.locationSvc.DriverID() || topicDriverID(msg.Topic()) != raw.DriverID {
		return
	}

	s.simulator.StopRun()
	s.locationSvc.SetLocation(context.Background(), domain.Coordinate{Lat: raw.Latitude, Lon: raw.Longitude})
}

func validateLocationMessage(msg *locationMessage) error {
	err := validate.Struct(msg)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	msgs := make([]string, len(fieldErrs))
	for i, fe := range fieldErrs {
		msgs[i] = formatFieldError(fe)
	}
	return errors.New(strings.Join(msgs, "; "))
}

func formatFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s: required", fe.Field())
	case "latitude":
		return fmt.Sprintf("%s: must be between -90 and 90", fe.Field())
	case "longitude":
		return fmt.Sprintf("%s: must be between -180 and 180", fe.Field())
	case "gt":
		return fmt.Sprintf("%s: must be positive", fe.Field())
	default:
		return fmt.Sprintf("%s: failed %s validation", fe.Field(), fe.Tag())
	}
}

// topicDriverID extracts {id} from /fleet/driver/{id}/location.
func topicDriverID(topic string) string {
	parts := strings.Split(strings.Trim(topic, "/"), "/")
	if len(parts) != 4 {
		return ""
	}
	return parts[2]
}
