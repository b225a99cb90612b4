package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/shelfarr/booksearch/internal/logging"
	"github.com/shelfarr/booksearch/internal/metrics"
	"github.com/shelfarr/booksearch/internal/openlibrary"
	"github.com/shelfarr/booksearch/internal/search"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 4096
	sendBuffer     = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// MessageType represents the type of a websocket message
type MessageType string

const (
	// client -> server
	MessageKeyword     MessageType = "keyword"
	MessagePage        MessageType = "page"
	MessageRowsPerPage MessageType = "rowsPerPage"
	MessagePing        MessageType = "ping"

	// server -> client
	MessageView  MessageType = "view"
	MessagePong  MessageType = "pong"
	MessageError MessageType = "error"
)

// Event is a message pushed to the browser
type Event struct {
	Type      MessageType `json:"type"`
	Timestamp int64       `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// Message is an input sent by the browser
type Message struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Client is one connected search page with its own search session
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	closed  chan struct{}
	session *search.Session
	once    sync.Once

	// latest holds the newest unsent view. Each view supersedes the one
	// before it, so a slow reader only ever gets the most recent.
	viewMu    sync.Mutex
	latest    []byte
	viewReady chan struct{}
}

// Hub tracks live search connections
type Hub struct {
	searcher search.Searcher
	opts     search.Options

	clients map[*Client]bool
	mutex   sync.RWMutex
}

// NewHub creates a hub whose connections search through searcher
func NewHub(searcher search.Searcher, opts search.Options) *Hub {
	return &Hub{
		searcher: searcher,
		opts:     opts,
		clients:  make(map[*Client]bool),
	}
}

func (h *Hub) register(client *Client) {
	h.mutex.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mutex.Unlock()

	metrics.SessionsActive.Inc()
	logging.L().Info().Int("total", total).Msg("websocket client connected")
}

func (h *Hub) unregister(client *Client) {
	h.mutex.Lock()
	_, ok := h.clients[client]
	delete(h.clients, client)
	total := len(h.clients)
	h.mutex.Unlock()

	if ok {
		metrics.SessionsActive.Dec()
		logging.L().Info().Int("total", total).Msg("websocket client disconnected")
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// CloseAll disconnects every client and ends their sessions
func (h *Hub) CloseAll() {
	h.mutex.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mutex.RUnlock()

	for _, c := range clients {
		c.close()
	}
}

// WebSocketHandler upgrades the request and starts a search session for it
func (h *Hub) WebSocketHandler(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := newClient(h, conn)

	opts := h.opts
	opts.OnRender = func(v search.View) {
		client.emit(Event{Type: MessageView, Data: v})
	}
	// The handler returns before the connection ends, so the session must
	// not inherit the request's cancellation.
	ctx := context.WithoutCancel(c.Request().Context())
	client.session = search.NewSession(ctx, h.searcher, opts)

	h.register(client)

	go client.writePump()
	go client.readPump()

	return nil
}

func newClient(h *Hub, conn *websocket.Conn) *Client {
	return &Client{
		hub:       h,
		conn:      conn,
		send:      make(chan []byte, sendBuffer),
		closed:    make(chan struct{}),
		viewReady: make(chan struct{}, 1),
	}
}

// close ends the session and the connection exactly once
func (c *Client) close() {
	c.once.Do(func() {
		close(c.closed)
		c.session.Close()
		c.conn.Close()
		c.hub.unregister(c)
	})
}

// emit queues an event for the write pump. A view replaces any view still
// waiting to be written. Other events are dropped if the client is gone or
// too far behind.
func (c *Client) emit(event Event) {
	event.Timestamp = time.Now().Unix()

	data, err := json.Marshal(event)
	if err != nil {
		logging.L().Error().Err(err).Msg("failed to marshal event")
		return
	}

	if event.Type == MessageView {
		c.viewMu.Lock()
		c.latest = data
		c.viewMu.Unlock()

		select {
		case c.viewReady <- struct{}{}:
		default:
		}
		return
	}

	select {
	case c.send <- data:
	case <-c.closed:
	default:
		logging.L().Warn().Str("type", string(event.Type)).Msg("websocket send buffer full, dropping event")
	}
}

// takeView returns the pending view and clears the slot
func (c *Client) takeView() []byte {
	c.viewMu.Lock()
	defer c.viewMu.Unlock()
	data := c.latest
	c.latest = nil
	return data
}

// readPump pumps messages from the WebSocket connection into the session
func (c *Client) readPump() {
	defer c.close()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.L().Warn().Err(err).Msg("websocket error")
			}
			return
		}

		c.handleMessage(message)
	}
}

// writePump pumps queued events to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-c.viewReady:
			message := c.takeView()
			if message == nil {
				continue
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.closed:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// handleMessage applies one browser input to the session
func (c *Client) handleMessage(message []byte) {
	var msg Message
	if err := json.Unmarshal(message, &msg); err != nil {
		c.emit(Event{Type: MessageError, Data: "invalid message"})
		return
	}

	switch msg.Type {
	case MessagePing:
		c.emit(Event{Type: MessagePong})

	case MessageKeyword:
		var keyword string
		if err := json.Unmarshal(msg.Data, &keyword); err != nil {
			c.emit(Event{Type: MessageError, Data: "keyword must be a string"})
			return
		}
		c.session.SetKeyword(keyword)

	case MessagePage:
		var page int
		if err := json.Unmarshal(msg.Data, &page); err != nil || page < 0 || page > openlibrary.MaxPage {
			c.emit(Event{Type: MessageError, Data: "page must be a non-negative integer in range"})
			return
		}
		c.session.SetPage(page)

	case MessageRowsPerPage:
		var rows int
		if err := json.Unmarshal(msg.Data, &rows); err != nil {
			c.emit(Event{Type: MessageError, Data: "rowsPerPage must be an integer"})
			return
		}
		c.session.ChangeRowsPerPage(rows)

	default:
		c.emit(Event{Type: MessageError, Data: "unknown message type"})
	}
}
