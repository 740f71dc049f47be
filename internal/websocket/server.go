package websocket

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/voxdeck/voxdeck/pkg/logger"
)

// Message types pushed to the front-end
const (
	MessageTypeNotificationAdded     = "notification_added"
	MessageTypeNotificationRemoved   = "notification_removed"
	MessageTypeUploadProgress        = "upload_progress"
	MessageTypeTranscriptionComplete = "transcription_complete"
	MessageTypeJobSubmitted          = "job_submitted"
)

// Message represents a WebSocket message
type Message struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// Client represents a connected WebSocket client
type Client struct {
	conn   *websocket.Conn
	send   chan *Message
	server *Server
	mu     sync.Mutex
	closed bool
}

// Server fans out messages to all connected WebSocket clients. The
// front-end renders notifications and progress reactively from this feed.
type Server struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan *Message
	upgrader   websocket.Upgrader
	logger     *logger.Logger
	mu         sync.RWMutex
}

// NewServer creates a new WebSocket server
func NewServer(log *logger.Logger) *Server {
	return &Server{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Message, 64),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // The local host applies CORS separately
			},
		},
		logger: log.Named("web-socket"),
	}
}

// Run starts the WebSocket server loop
func (s *Server) Run() {
	s.logger.Info("Starting WebSocket server")

	for {
		select {
		case client := <-s.register:
			s.mu.Lock()
			s.clients[client] = true
			clientCount := len(s.clients)
			s.mu.Unlock()
			s.logger.Debug("Client registered", logger.Int("client_count", clientCount))

		case client := <-s.unregister:
			s.mu.Lock()
			if _, ok := s.clients[client]; ok {
				delete(s.clients, client)
				// Mark client as closed first to prevent new messages
				client.mu.Lock()
				client.closed = true
				client.mu.Unlock()
				close(client.send)
			}
			clientCount := len(s.clients)
			s.mu.Unlock()
			s.logger.Debug("Client unregistered", logger.Int("client_count", clientCount))

		case message := <-s.broadcast:
			s.mu.RLock()
			var stale []*Client
			for client := range s.clients {
				client.mu.Lock()
				closed := client.closed
				client.mu.Unlock()
				if closed {
					stale = append(stale, client)
					continue
				}

				select {
				case client.send <- message:
					// Message queued
				default:
					// Channel is full, mark for removal
					stale = append(stale, client)
				}
			}
			s.mu.RUnlock()

			// Clean up failed clients
			if len(stale) > 0 {
				s.mu.Lock()
				for _, client := range stale {
					if _, ok := s.clients[client]; ok {
						delete(s.clients, client)
						client.mu.Lock()
						if !client.closed {
							client.closed = true
							close(client.send)
						}
						client.mu.Unlock()
					}
				}
				s.mu.Unlock()
			}
		}
	}
}

// HandleConnection upgrades an HTTP request to a WebSocket connection
func (s *Server) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection",
			logger.Error(err),
			logger.String("remote_addr", r.RemoteAddr))
		return
	}

	s.logger.Debug("WebSocket connection established",
		logger.String("remote_addr", r.RemoteAddr))

	client := &Client{
		conn:   conn,
		send:   make(chan *Message, 256),
		server: s,
	}

	s.register <- client

	go client.readPump()
	go client.writePump()
}

// Broadcast sends a message to all connected clients
func (s *Server) Broadcast(message *Message) {
	select {
	case s.broadcast <- message:
	default:
		s.logger.Warn("Broadcast channel full, dropping message",
			logger.String("message_type", message.Type))
	}
}

// readPump drains the connection so close frames are noticed; the
// front-end feed is one-directional
func (c *Client) readPump() {
	defer func() {
		c.server.unregister <- c
		c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.server.logger.Error("WebSocket read error", logger.Error(err))
			}
			return
		}
	}
}

// writePump pumps messages from the hub to the WebSocket connection
func (c *Client) writePump() {
	defer c.conn.Close()

	for message := range c.send {
		data, err := json.Marshal(message)
		if err != nil {
			c.server.logger.Error("Failed to marshal message", logger.Error(err))
			continue
		}

		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}

	// Channel closed by the server
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
