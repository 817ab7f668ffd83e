package config

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"sort"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gin-gonic/gin"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Check reports a dependency as down by returning an error.
type Check func(ctx context.Context) error

func PostgresCheck(db *sql.DB) Check {
	return db.PingContext
}

func RabbitMQCheck(conn *amqp.Connection) Check {
	return func(context.Context) error {
		if conn.IsClosed() {
			return errors.New("connection closed")
		}
		return nil
	}
}

func MQTTCheck(client mqtt.Client) Check {
	return func(context.Context) error {
		if !client.IsConnected() {
			return errors.New("not connected")
		}
		return nil
	}
}

type HealthChecker struct {
	checks map[string]Check
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{checks: make(map[string]Check)}
}

// Add registers a named dependency check. Call before Register.
func (h *HealthChecker) Add(name string, check Check) *HealthChecker {
	h.checks[name] = check
	return h
}

func (h *HealthChecker) Register(r *gin.Engine) {
	r.GET("/healthz", h.Handle)
}

func (h *HealthChecker) Handle(c *gin.Context) {
	status := http.StatusOK
	deps := gin.H{}

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := h.checks[name](c.Request.Context()); err != nil {
			deps[name] = gin.H{"status": "down", "error": err.Error()}
			status = http.StatusServiceUnavailable
		} else {
			deps[name] = gin.H{"status": "up"}
		}
	}

	overall := "healthy"
	if status != http.StatusOK {
		overall = "unhealthy"
	}

	c.JSON(status, gin.H{
		"status":       overall,
		"dependencies": deps,
	})
}
