// Package ws streams tile and ownership changes to WebSocket observers and
// serves engine snapshots over HTTP.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cory-johannsen/hexbeat/internal/game/building"
	"github.com/cory-johannsen/hexbeat/internal/game/engine"
	"github.com/cory-johannsen/hexbeat/internal/game/hexgrid"
	"github.com/cory-johannsen/hexbeat/internal/game/team"
)

// Message types.
const (
	TypeSnapshot    = "snapshot"
	TypeTileChanged = "tile_changed"
	TypeTeamChanged = "team_changed"
)

const (
	sendBuffer   = 256
	writeTimeout = 5 * time.Second
	pongWait     = 60 * time.Second
)

// Message is one frame sent to observers.
type Message struct {
	Type     string           `json:"type"`
	Seq      uint64           `json:"seq"`
	Tile     *TileView        `json:"tile,omitempty"`
	Team     *TeamChange      `json:"team,omitempty"`
	Snapshot *engine.Snapshot `json:"snapshot,omitempty"`
}

// TileView is the observable state of one tile.
type TileView struct {
	Coord      hexgrid.Coord `json:"coord"`
	Kind       string        `json:"kind"`
	Blocked    bool          `json:"blocked,omitempty"`
	UnitID     string        `json:"unit_id,omitempty"`
	BuildingID string        `json:"building_id,omitempty"`
}

// TeamChange is one building ownership transfer.
type TeamChange struct {
	BuildingID string    `json:"building_id"`
	Old        team.Team `json:"old"`
	New        team.Team `json:"new"`
}

// SnapshotSource produces the state sent to observers when they connect.
type SnapshotSource interface {
	Snapshot() engine.Snapshot
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() { c.once.Do(func() { close(c.send) }) }

// Hub fans grid and ownership notifications out to connected observers. It
// implements hexgrid.TileObserver and world.TeamChangedListener.
//
// Notifications arrive on the simulation goroutine and never block: a client
// whose buffer is full is disconnected.
type Hub struct {
	logger   *zap.Logger
	source   SnapshotSource
	level    http.Handler
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	seq     uint64

	dropped atomic.Uint64
}

// NewHub creates a Hub. level, when non-nil, is mounted at /loglevel.
//
// Precondition: logger and source must be non-nil.
func NewHub(logger *zap.Logger, source SnapshotSource, level http.Handler) *Hub {
	if logger == nil {
		panic("ws.NewHub: logger must not be nil")
	}
	if source == nil {
		panic("ws.NewHub: source must not be nil")
	}
	return &Hub{
		logger: logger,
		source: source,
		level:  level,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// Handler returns the HTTP routes: /ws, /snapshot, /healthz and /loglevel.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.serveWS)
	mux.HandleFunc("/snapshot", h.serveSnapshot)
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, _ *http.Request) {
		rw.WriteHeader(http.StatusNoContent)
	})
	if h.level != nil {
		mux.Handle("/loglevel", h.level)
	}
	return mux
}

// Clients returns the number of connected observers.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Dropped returns how many observers were disconnected for falling behind.
func (h *Hub) Dropped() uint64 { return h.dropped.Load() }

// OnTileChanged implements hexgrid.TileObserver.
func (h *Hub) OnTileChanged(t *hexgrid.Tile) {
	h.broadcast(Message{Type: TypeTileChanged, Tile: &TileView{
		Coord:      t.Coord,
		Kind:       t.Kind.String(),
		Blocked:    t.Blocked,
		UnitID:     t.UnitID,
		BuildingID: t.BuildingID,
	}})
}

// OnBuildingTeamChanged implements world.TeamChangedListener.
func (h *Hub) OnBuildingTeamChanged(b *building.Building, oldTeam, newTeam team.Team) {
	h.broadcast(Message{Type: TypeTeamChanged, Team: &TeamChange{
		BuildingID: b.ID,
		Old:        oldTeam,
		New:        newTeam,
	}})
}

func (h *Hub) broadcast(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.clients) == 0 {
		return
	}
	h.seq++
	msg.Seq = h.seq
	b, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("ws: encoding message", zap.String("type", msg.Type), zap.Error(err))
		return
	}
	for c := range h.clients {
		select {
		case c.send <- b:
		default:
			delete(h.clients, c)
			c.close()
			h.dropped.Add(1)
			h.logger.Warn("ws: observer too slow, disconnecting", zap.String("remote", c.conn.RemoteAddr().String()))
		}
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.close()
	}
	h.mu.Unlock()
}

func (h *Hub) serveSnapshot(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	rw.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(rw).Encode(h.source.Snapshot()); err != nil {
		h.logger.Debug("ws: writing snapshot", zap.Error(err))
	}
}

// serveWS registers the observer before taking the initial snapshot, so an
// update may arrive ahead of a snapshot that already reflects it.
func (h *Hub) serveWS(rw http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		h.logger.Debug("ws: upgrade failed", zap.Error(err))
		return
	}
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	h.register(c)
	h.logger.Info("ws: observer connected", zap.String("remote", conn.RemoteAddr().String()))

	snap := h.source.Snapshot()
	first, err := json.Marshal(Message{Type: TypeSnapshot, Snapshot: &snap})
	if err != nil {
		h.logger.Error("ws: encoding snapshot", zap.Error(err))
		h.unregister(c)
		_ = conn.Close()
		return
	}

	done := make(chan struct{})
	go h.writeLoop(c, first, done)
	h.readLoop(c)
	h.unregister(c)
	<-done
	h.logger.Info("ws: observer disconnected", zap.String("remote", conn.RemoteAddr().String()))
}

func (h *Hub) writeLoop(c *client, first []byte, done chan<- struct{}) {
	defer close(done)
	defer c.conn.Close()
	write := func(b []byte) error {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		return c.conn.WriteMessage(websocket.TextMessage, b)
	}
	if err := write(first); err != nil {
		return
	}
	for b := range c.send {
		if err := write(b); err != nil {
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
		time.Now().Add(time.Second))
}

// readLoop discards inbound frames; it returns when the connection fails.
func (h *Hub) readLoop(c *client) {
	c.conn.SetReadLimit(1024)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	}
}

// Server runs a Hub's routes on addr as a lifecycle service.
type Server struct {
	hub    *Hub
	addr   string
	logger *zap.Logger

	mu      sync.Mutex
	srv     *http.Server
	lis     net.Listener
	stopped bool
}

// NewServer creates a Server for hub listening on addr.
func NewServer(hub *Hub, addr string) *Server {
	if hub == nil {
		panic("ws.NewServer: hub must not be nil")
	}
	return &Server{hub: hub, addr: addr, logger: hub.logger}
}

// Listen binds the address. Start calls it when it has not been called.
func (s *Server) Listen() (net.Addr, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil, http.ErrServerClosed
	}
	if s.lis == nil {
		lis, err := net.Listen("tcp", s.addr)
		if err != nil {
			return nil, err
		}
		s.lis = lis
		s.srv = &http.Server{Handler: s.hub.Handler(), ReadHeaderTimeout: 5 * time.Second}
	}
	return s.lis.Addr(), nil
}

// Start serves until Stop.
func (s *Server) Start() error {
	addr, err := s.Listen()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	if err != nil {
		return err
	}
	s.logger.Info("ws: listening", zap.String("addr", addr.String()))
	s.mu.Lock()
	srv, lis := s.srv, s.lis
	s.mu.Unlock()
	if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop shuts the HTTP server down and disconnects every observer.
func (s *Server) Stop() {
	s.mu.Lock()
	s.stopped = true
	srv, lis := s.srv, s.lis
	s.mu.Unlock()
	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		_ = lis.Close()
	}
	s.hub.mu.Lock()
	for c := range s.hub.clients {
		delete(s.hub.clients, c)
		c.close()
	}
	s.hub.mu.Unlock()
}
