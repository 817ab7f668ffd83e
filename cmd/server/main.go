package main

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/bahromnajmiddinov/food-delivery/config"
	"github.com/bahromnajmiddinov/food-delivery/module/driver"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}
	cfg := config.Load()
	ctx := context.Background()

	db, err := config.NewPostgres(cfg)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer func() { _ = db.Close() }()

	if err := config.EnsureSchema(ctx, db); err != nil {
		log.Fatalf("schema: %v", err)
	}

	amqpConn, err := config.NewRabbitMQ(cfg)
	if err != nil {
		log.Fatalf("rabbitmq: %v", err)
	}
	defer func() { _ = amqpConn.Close() }()

	mqttClient, err := config.NewMQTT(cfg)
	if err != nil {
		log.Fatalf("mqtt: %v", err)
	}
	defer mqttClient.Disconnect(250)

	driverModule, err := driver.Build(ctx,
		driver.Deps{DB: db, AMQP: amqpConn, MQTT: mqttClient},
		driver.Options{
			DriverID:          cfg.DriverID,
			APIKey:            cfg.GoogleMapsAPIKey,
			DirectionsBaseURL: cfg.DirectionsBaseURL,
			DirectionsTimeout: cfg.DirectionsTimeout,
			SimulatorInterval: cfg.SimulatorInterval,
		},
	)
	if err != nil {
		log.Fatalf("driver module: %v", err)
	}
	defer driverModule.Close()

	if err := driverModule.StartSubscribers(); err != nil {
		log.Fatalf("start subscribers: %v", err)
	}

	r := gin.Default()

	config.NewHealthChecker().
		Add("postgres", config.PostgresCheck(db)).
		Add("rabbitmq", config.RabbitMQCheck(amqpConn)).
		Add("mqtt", config.MQTTCheck(mqttClient)).
		Register(r)

	driverModule.RegisterRoutes(r.Group("/api/v1"))

	log.Printf("driver %s listening on :%s", cfg.DriverID, cfg.HTTPPort)
	if err := r.Run(":" + cfg.HTTPPort); err != nil {
		log.Printf("server: %v", err)
	}
}
