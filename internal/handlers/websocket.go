package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tasker/internal/common"
	"github.com/ternarybob/tasker/internal/interfaces"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Bearer token is checked before upgrade
	},
}

// WSMessage is the frame sent to clients
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type wsClient struct {
	conn   *websocket.Conn
	userID string
	mu     sync.Mutex
}

// WebSocketHandler streams task events to the owning user's connections
type WebSocketHandler struct {
	logger        arbor.ILogger
	auth          *Authenticator
	eventService  interfaces.EventService
	subscription  interfaces.Subscription
	subscribed    bool
	clients       map[*wsClient]bool
	mu            sync.RWMutex
	allowedEvents []interfaces.EventType // empty streams every task event
	writeTimeout  time.Duration
}

func NewWebSocketHandler(eventService interfaces.EventService, authenticator *Authenticator, logger arbor.ILogger, config *common.WebSocketConfig) *WebSocketHandler {
	h := &WebSocketHandler{
		logger:       logger,
		auth:         authenticator,
		eventService: eventService,
		clients:      make(map[*wsClient]bool),
		writeTimeout: 10 * time.Second,
	}

	if config != nil {
		for _, eventType := range config.AllowedEvents {
			h.allowedEvents = append(h.allowedEvents, interfaces.EventType(eventType))
		}
		h.writeTimeout = common.ParseDuration(config.WriteTimeout, h.writeTimeout)
	}

	if eventService != nil {
		sub, err := eventService.Subscribe(h.handleTaskEvent, h.allowedEvents...)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to subscribe WebSocket handler to task events")
		} else {
			h.subscription, h.subscribed = sub, true
		}
	}

	logger.Debug().
		Int("allowed_events", len(h.allowedEvents)).
		Msg("WebSocket handler initialized")

	return h
}

// HandleWebSocket authenticates the caller, upgrades the connection and keeps it open until the client leaves
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.auth.QueryClaims(w, r)
	if !ok {
		return
	}
	user, ok := h.auth.lookupUser(w, r, claims)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	client := &wsClient{conn: conn, userID: user.ID}

	h.mu.Lock()
	h.clients[client] = true
	clientCount := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug().Str("user_id", user.ID).Msgf("WebSocket client connected (total: %d)", clientCount)

	defer func() {
		h.mu.Lock()
		delete(h.clients, client)
		clientCount := len(h.clients)
		h.mu.Unlock()

		conn.Close()
		h.logger.Debug().Msgf("WebSocket client disconnected (remaining: %d)", clientCount)
	}()

	// Read messages from client (keep connection alive)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.logger.Warn().Err(err).Msg("WebSocket error")
			}
			return
		}
	}
}

// ClientCount returns the number of open connections
func (h *WebSocketHandler) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close unsubscribes from the event bus and drops every connection
func (h *WebSocketHandler) Close() error {
	h.mu.Lock()
	unsubscribe := h.subscribed
	h.subscribed = false
	clients := make([]*wsClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.Unlock()

	if unsubscribe {
		h.eventService.Unsubscribe(h.subscription)
	}

	for _, client := range clients {
		client.mu.Lock()
		client.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		client.mu.Unlock()
		client.conn.Close()
	}
	return nil
}

func (h *WebSocketHandler) handleTaskEvent(ctx context.Context, event interfaces.TaskEvent) error {
	task := event.Task
	if task == nil {
		return nil
	}

	data, err := json.Marshal(WSMessage{Type: string(event.Type), Payload: task})
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to marshal task event")
		return err
	}

	h.mu.RLock()
	recipients := make([]*wsClient, 0, len(h.clients))
	for client := range h.clients {
		if client.userID == task.UserID {
			recipients = append(recipients, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range recipients {
		client.mu.Lock()
		client.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
		err := client.conn.WriteMessage(websocket.TextMessage, data)
		client.mu.Unlock()

		if err != nil {
			h.logger.Warn().Err(err).Str("event_type", string(event.Type)).Msg("Failed to send event to client")
		}
	}

	return nil
}
