package config

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type healthResponse struct {
	Status       string `json:"status"`
	Dependencies map[string]struct {
		Status string `json:"status"`
		Error  string `json:"error"`
	} `json:"dependencies"`
}

func serveHealth(t *testing.T, h *HealthChecker) (int, healthResponse) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h.Register(r)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/healthz", nil)
	r.ServeHTTP(w, req)

	var resp healthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w.Code, resp
}

func TestHealth_AllUp(t *testing.T) {
	h := NewHealthChecker().
		Add("postgres", func(context.Context) error { return nil }).
		Add("mqtt", func(context.Context) error { return nil })

	code, resp := serveHealth(t, h)

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "up", resp.Dependencies["postgres"].Status)
	assert.Equal(t, "up", resp.Dependencies["mqtt"].Status)
}

func TestHealth_OneDown(t *testing.T) {
	h := NewHealthChecker().
		Add("postgres", func(context.Context) error { return nil }).
		Add("rabbitmq", func(context.Context) error { return errors.New("connection closed") })

	code, resp := serveHealth(t, h)

	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unhealthy", resp.Status)
	assert.Equal(t, "down", resp.Dependencies["rabbitmq"].Status)
	assert.Equal(t, "connection closed", resp.Dependencies["rabbitmq"].Error)
}

func TestHealth_NoChecks(t *testing.T) {
	code, resp := serveHealth(t, NewHealthChecker())

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", resp.Status)
	assert.Empty(t, resp.Dependencies)
}

func TestPostgresCheck(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectPing().WillReturnError(errors.New("refused"))

	assert.Error(t, PostgresCheck(db)(context.Background()))
}

type fakeMQTTClient struct {
	mqtt.Client
	connected bool
}

func (f *fakeMQTTClient) IsConnected() bool { return f.connected }

func TestMQTTCheck(t *testing.T) {
	assert.NoError(t, MQTTCheck(&fakeMQTTClient{connected: true})(context.Background()))
	assert.Error(t, MQTTCheck(&fakeMQTTClient{connected: false})(context.Background()))
}
