package driver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bahromnajmiddinov/food-delivery/module/driver/domain"
)

var (
	tashkentCenter = domain.Coordinate{Lat: 41.2995, Lon: 69.2401}
	tashkentEast   = domain.Coordinate{Lat: 41.3150, Lon: 69.3000}
)

func directionsServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/maps/api/directions/json", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func buildModule(t *testing.T, baseURL string) (*Module, *gin.Engine) {
	t.Helper()
	m, err := Build(context.Background(), Deps{}, Options{
		DriverID:          "D1",
		APIKey:            "test-key",
		DirectionsBaseURL: baseURL,
		DirectionsTimeout: time.Second,
		SimulatorInterval: 10 * time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(m.Close)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	m.RegisterRoutes(r.Group("/api/v1"))
	require.NoError(t, m.StartSubscribers())
	return m, r
}

func do(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	var req *http.Request
	if body != "" {
		req, _ = http.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req, _ = http.NewRequest(method, path, nil)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestModule_ETAAndZones(t *testing.T) {
	m, r := buildModule(t, "http://127.0.0.1:0")

	assert.Nil(t, m.EstimateETA(tashkentEast, 0, 1).Minutes)
	assert.False(t, m.InZone())

	w := do(r, "PUT", "/api/v1/driver/location", `{"latitude":41.2995,"longitude":69.2401}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	eta := m.EstimateETA(tashkentEast, 10, 1)
	require.NotNil(t, eta.Minutes)
	assert.Equal(t, 21, *eta.Minutes)
	assert.Equal(t, 5.29, *eta.DistanceKm)

	w = do(r, "POST", "/api/v1/zones", `{"center":{"latitude":41.2995,"longitude":69.2401},"radiusMeters":10}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var zone domain.Zone
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &zone))
	assert.Equal(t, float64(domain.MinZoneRadiusMeters), zone.RadiusMeters)
	assert.True(t, m.InZone())

	w = do(r, "DELETE", "/api/v1/zones/"+zone.ID, "")
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.False(t, m.InZone())
}

func TestModule_RouteLive(t *testing.T) {
	srv := directionsServer(t, http.StatusOK, `{
		"status": "OK",
		"routes": [{
			"overview_polyline": {"points": "{ha{FsmreL{_BkuJ"},
			"legs": [{
				"duration": {"text": "12 mins", "value": 720},
				"duration_in_traffic": {"text": "15 mins", "value": 900},
				"distance": {"text": "6.1 km", "value": 6100}
			}]
		}]
	}`)
	m, r := buildModule(t, srv.URL)
	m.Locations.SetLocation(context.Background(), tashkentCenter)

	w := do(r, "GET", "/api/v1/route?selection=order-1&lat=41.315&lon=69.3", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var est domain.RouteEstimate
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &est))
	assert.Equal(t, domain.SourceLive, est.Source)
	assert.False(t, est.Approximate)
	assert.Equal(t, 15, *est.Minutes)
	assert.Equal(t, 6.1, *est.DistanceKm)
	require.Len(t, est.Path, 2)
	assert.InDelta(t, tashkentCenter.Lat, est.Path[0].Lat, 1e-5)
	assert.InDelta(t, tashkentEast.Lon, est.Path[1].Lon, 1e-5)
}

func TestModule_RouteFallsBack(t *testing.T) {
	srv := directionsServer(t, http.StatusForbidden, `{"error_message":"denied"}`)
	m, r := buildModule(t, srv.URL)
	m.Locations.SetLocation(context.Background(), tashkentCenter)

	w := do(r, "GET", "/api/v1/route?selection=order-1&lat=41.315&lon=69.3", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var est domain.RouteEstimate
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &est))
	assert.Equal(t, domain.SourceEstimate, est.Source)
	assert.True(t, est.Approximate)
	assert.Equal(t, 11, *est.Minutes)
	assert.Equal(t, 5.29, *est.DistanceKm)
}

func TestModule_SimulatorDrivesPosition(t *testing.T) {
	m, r := buildModule(t, "http://127.0.0.1:0")

	body := `{"route":[{"latitude":41.2995,"longitude":69.2401},{"latitude":41.305,"longitude":69.26},{"latitude":41.315,"longitude":69.3}]}`
	w := do(r, "POST", "/api/v1/simulator/start", body)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	require.Eventually(t, func() bool {
		return m.Simulator.State() == domain.SimulatorIdle
	}, 2*time.Second, 5*time.Millisecond)

	c, ok := m.Locations.Location()
	require.True(t, ok)
	assert.Equal(t, tashkentEast, c)
}

func TestModule_ManualFixStopsSimulator(t *testing.T) {
	m, r := buildModule(t, "http://127.0.0.1:0")

	m.Simulator.StartRun([]domain.Coordinate{tashkentCenter, tashkentEast}, time.Hour)
	require.Equal(t, domain.SimulatorRunning, m.Simulator.State())

	w := do(r, "PUT", "/api/v1/driver/location", `{"latitude":41.31,"longitude":69.28}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.SimulatorIdle, m.Simulator.State())
}
