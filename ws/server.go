// Package ws provides the WebSocket endpoint for session observers.
package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/PranavReddyGaddam/Signal/config"
	"github.com/PranavReddyGaddam/Signal/domain"
	"github.com/PranavReddyGaddam/Signal/hub"
)

// ControlMessage is a client-to-server message on the event channel.
type ControlMessage struct {
	Type   string   `json:"type"`
	Events []string `json:"events,omitempty"`
}

// Server handles WebSocket connections.
type Server struct {
	cfg      *config.Config
	hub      *hub.Hub
	upgrader websocket.Upgrader
}

// NewServer creates a new WebSocket server.
func NewServer(cfg *config.Config, h *hub.Hub) *Server {
	return &Server{
		cfg: cfg,
		hub: h,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// RegisterRoutes registers the WebSocket route with the echo server.
func (s *Server) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws/:session_id", s.HandleWebSocket)
}

// HandleWebSocket upgrades the connection and subscribes it to the
// session's event stream.
// GET /ws/:session_id
func (s *Server) HandleWebSocket(c echo.Context) error {
	sessionID := c.Param("session_id")
	if sessionID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "session_id is required"})
	}

	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Printf("Failed to upgrade WebSocket: %v", err)
		return err
	}

	sub := s.hub.Subscribe(sessionID)
	// Control replies (pong, subscription_confirmed) go to this
	// connection only, never through the session fan-out.
	control := make(chan domain.Event, 8)

	go s.writePump(conn, sub, control)
	go s.readPump(conn, sub, control)

	return nil
}

// readPump reads control messages from the WebSocket connection.
func (s *Server) readPump(conn *websocket.Conn, sub *hub.Subscriber, control chan<- domain.Event) {
	defer func() {
		s.hub.Unsubscribe(sub)
		conn.Close()
	}()

	conn.SetReadLimit(s.cfg.MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		return nil
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			return
		}

		var msg ControlMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Printf("WARN: invalid control message: %v", err)
			continue
		}

		switch msg.Type {
		case "ping":
			select {
			case control <- domain.NewPong(sub.SessionID):
			default:
			}
		case "subscribe":
			select {
			case control <- domain.NewSubscriptionConfirmed(sub.SessionID, msg.Events):
			default:
			}
		default:
			log.Printf("WARN: unknown control message type: %s", msg.Type)
		}
	}
}

// writePump writes hub events and control replies to the connection.
func (s *Server) writePump(conn *websocket.Conn, sub *hub.Subscriber, control <-chan domain.Event) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case event, ok := <-sub.Events():
			conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if !ok {
				// Unsubscribed or dropped by the hub.
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.writeEvent(conn, event); err != nil {
				log.Printf("Failed to write event: %v", err)
				return
			}

		case event := <-control:
			conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := s.writeEvent(conn, event); err != nil {
				log.Printf("Failed to write control reply: %v", err)
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) writeEvent(conn *websocket.Conn, event domain.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}
