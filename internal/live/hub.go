package live

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Config holds websocket tuning for scoreboard viewers.
type Config struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	SendBuffer      int
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

func DefaultConfig(allowedOrigins []string) Config {
	return Config{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  512,
		SendBuffer:      32,
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     OriginChecker(allowedOrigins),
	}
}

// OriginChecker accepts requests without an Origin header (native apps) and
// those whose origin is listed.
func OriginChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set["*"] || set[origin]
	}
}

// Hub keeps the websocket viewers of every live match and fans board
// snapshots out to them.
type Hub struct {
	mu       sync.RWMutex
	rooms    map[string]map[*conn]bool
	upgrader websocket.Upgrader
	cfg      Config
}

type conn struct {
	id      string
	uid     string
	matchID string
	ws      *websocket.Conn
	send    chan []byte
	done    chan struct{}
	hub     *Hub
	once    sync.Once
}

func NewHub(cfg Config) *Hub {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 32
	}
	return &Hub{
		rooms: map[string]map[*conn]bool{},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     cfg.CheckOrigin,
		},
		cfg: cfg,
	}
}

// Serve upgrades the request and registers the viewer. initial is sent
// before any later snapshot.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, uid, matchID string, initial any) error {
	first, err := json.Marshal(initial)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	c := &conn{
		id:      uuid.NewString(),
		uid:     uid,
		matchID: matchID,
		ws:      ws,
		send:    make(chan []byte, h.cfg.SendBuffer),
		done:    make(chan struct{}),
		hub:     h,
	}
	c.send <- first
	h.register(c)

	go c.writePump()
	go c.readPump()

	log.Info().Str("conn", c.id).Str("uid", uid).Str("matchId", matchID).Msg("live viewer connected")
	return nil
}

func (h *Hub) register(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room := h.rooms[c.matchID]
	if room == nil {
		room = map[*conn]bool{}
		h.rooms[c.matchID] = room
	}
	room[c] = true
}

func (h *Hub) unregister(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[c.matchID]
	if !ok || !room[c] {
		return
	}
	delete(room, c)
	if len(room) == 0 {
		delete(h.rooms, c.matchID)
	}
	log.Debug().Str("conn", c.id).Str("matchId", c.matchID).Msg("live viewer left")
}

// Publish sends v to every viewer of matchID. Viewers whose buffer is full
// are dropped; they reconnect and get a fresh snapshot.
func (h *Hub) Publish(matchID string, v any) {
	h.mu.RLock()
	room := h.rooms[matchID]
	targets := make([]*conn, 0, len(room))
	for c := range room {
		targets = append(targets, c)
	}
	h.mu.RUnlock()
	if len(targets) == 0 {
		return
	}

	data, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("matchId", matchID).Msg("failed to marshal live snapshot")
		return
	}

	for _, c := range targets {
		if !c.offer(data) {
			log.Warn().Str("conn", c.id).Str("matchId", matchID).Msg("viewer too slow, closing")
			c.close()
		}
	}
}

// Viewers returns the number of open connections for matchID.
func (h *Hub) Viewers(matchID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[matchID])
}

// Close disconnects every viewer.
func (h *Hub) Close() {
	h.mu.RLock()
	var all []*conn
	for _, room := range h.rooms {
		for c := range room {
			all = append(all, c)
		}
	}
	h.mu.RUnlock()
	for _, c := range all {
		c.close()
	}
}

// offer reports false when the send buffer is full. A closed viewer
// accepts and discards.
func (c *conn) offer(data []byte) bool {
	select {
	case <-c.done:
		return true
	default:
	}
	select {
	case c.send <- data:
		return true
	case <-c.done:
		return true
	default:
		return false
	}
}

// close is safe to call from any goroutine; send is never closed.
func (c *conn) close() {
	c.once.Do(func() {
		close(c.done)
		c.hub.unregister(c)
		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "")
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		_ = c.ws.Close()
	})
}

func (c *conn) writePump() {
	ticker := time.NewTicker(c.hub.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Debug().Err(err).Str("conn", c.id).Msg("live write failed")
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump only services control frames; viewers never send commands.
func (c *conn) readPump() {
	defer c.close()

	c.ws.SetReadLimit(c.hub.cfg.MaxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.hub.cfg.ReadTimeout))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.hub.cfg.ReadTimeout))
	})

	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Str("conn", c.id).Msg("unexpected websocket close")
			}
			return
		}
	}
}
