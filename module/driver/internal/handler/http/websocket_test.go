package http

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/bahromnajmiddinov/food-delivery/module/driver/domain"
)

func TestPositionStream_Broadcast(t *testing.T) {
	gin.SetMode(gin.TestMode)
	stream := NewPositionStream()
	r := gin.New()
	stream.Register(r.Group(""))

	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/driver/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(time.Second)
	for stream.clientCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("client was not registered")
		}
		time.Sleep(time.Millisecond)
	}

	dl := &domain.DriverLocation{DriverID: "D1", Location: origin, Timestamp: time.Unix(1715003456, 0)}
	if err := stream.OnPosition(context.Background(), dl); err != nil {
		t.Fatalf("OnPosition: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var resp locationResponse
	if err := json.Unmarshal(msg, &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.DriverID != "D1" || resp.Latitude != origin.Lat || resp.Timestamp != 1715003456 {
		t.Errorf("unexpected message %+v", resp)
	}

	conn.Close()
	deadline = time.Now().Add(time.Second)
	for stream.clientCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("client was not removed after disconnect")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestPositionStream_NoClients(t *testing.T) {
	stream := NewPositionStream()
	dl := &domain.DriverLocation{DriverID: "D1", Location: origin}
	if err := stream.OnPosition(context.Background(), dl); err != nil {
		t.Fatalf("OnPosition: %v", err)
	}
}
