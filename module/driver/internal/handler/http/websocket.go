package http

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/bahromnajmiddinov/food-delivery/module/driver/domain"
)

const (
	streamBufferSize = 16
	writeWait        = 10 * time.Second
)

type streamClient struct {
	conn *websocket.Conn
	send chan []byte
}

// PositionStream pushes every position change to connected WebSocket
// clients. Slow clients miss updates instead of blocking the publisher.
type PositionStream struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*streamClient]struct{}
}

func NewPositionStream() *PositionStream {
	return &PositionStream{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*streamClient]struct{}),
	}
}

func (s *PositionStream) Register(r *gin.RouterGroup) {
	r.GET("/driver/ws", s.Serve)
}

func (s *PositionStream) OnPosition(_ context.Context, dl *domain.DriverLocation) error {
	msg, err := json.Marshal(toLocationResponse(dl))
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		select {
		case c.send <- msg:
		default:
		}
	}
	return nil
}

func (s *PositionStream) Serve(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}

	client := &streamClient{conn: conn, send: make(chan []byte, streamBufferSize)}
	s.mu.Lock()
	s.clients[client] = struct{}{}
	s.mu.Unlock()

	go s.writer(client)

	// inbound messages are ignored; reading detects the close
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.remove(client)
	conn.Close()
}

func (s *PositionStream) writer(c *streamClient) {
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			log.Printf("websocket write error: %v", err)
			c.conn.Close()
			return
		}
	}
}

func (s *PositionStream) remove(c *streamClient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		close(c.send)
	}
}

// Close disconnects every client.
func (s *PositionStream) Close() {
	s.mu.Lock()
	clients := make([]*streamClient, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeWait))
		c.conn.Close()
	}
}

func (s *PositionStream) clientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}
