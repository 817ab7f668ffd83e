package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/joho/godotenv"

	"github.com/bahromnajmiddinov/food-delivery/module/driver/domain"
	"github.com/bahromnajmiddinov/food-delivery/module/driver/polyline"
)

type locationMessage struct {
	DriverID  string  `json:"driver_id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timestamp int64   `json:"timestamp"`
}

// defaultRoute runs across central Tashkent.
var defaultRoute = polyline.Encode([]domain.Coordinate{
	{Lat: 41.2995, Lon: 69.2401},
	{Lat: 41.3021, Lon: 69.2498},
	{Lat: 41.3050, Lon: 69.2600},
	{Lat: 41.3102, Lon: 69.2801},
	{Lat: 41.3150, Lon: 69.3000},
})

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <interval_seconds> [encoded_polyline]\n", os.Args[0])
		os.Exit(1)
	}

	intervalSec, err := strconv.Atoi(os.Args[1])
	if err != nil || intervalSec <= 0 {
		fmt.Fprintf(os.Stderr, "error: interval must be a positive integer\n")
		os.Exit(1)
	}

	encoded := defaultRoute
	if len(os.Args) > 2 {
		encoded = os.Args[2]
	}
	route, err := polyline.Decode(encoded)
	if err != nil || len(route) == 0 {
		fmt.Fprintf(os.Stderr, "error: invalid polyline: %v\n", err)
		os.Exit(1)
	}

	_ = godotenv.Load()

	broker := "tcp://localhost:1883"
	if v := os.Getenv("MQTT_BROKER"); v != "" {
		broker = v
	}
	driverID := "driver-1"
	if v := os.Getenv("DRIVER_ID"); v != "" {
		driverID = v
	}

	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID("driver-mock-gps")

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.Fatalf("mqtt connect: %v", token.Error())
	}
	defer client.Disconnect(250)

	topic := fmt.Sprintf("/fleet/driver/%s/location", driverID)
	log.Printf("connected to %s, publishing %d points to %s every %ds...", broker, len(route), topic, intervalSec)

	ticker := time.NewTicker(time.Duration(intervalSec) * time.Second)
	defer ticker.Stop()

	for i := 0; i < len(route); i++ {
		if i > 0 {
			<-ticker.C
		}

		msg := locationMessage{
			DriverID:  driverID,
			Latitude:  route[i].Lat,
			Longitude: route[i].Lon,
			Timestamp: time.Now().Unix(),
		}

		payload, _ := json.Marshal(msg)
		token := client.Publish(topic, 1, false, payload)
		token.Wait()
		if err := token.Error(); err != nil {
			log.Printf("publish error: %v", err)
			continue
		}

		log.Printf("published %d/%d: %s", i+1, len(route), payload)
	}

	log.Println("route finished")
}
