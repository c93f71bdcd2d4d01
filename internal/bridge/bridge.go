// Package bridge serves a live topic tree over WebSocket: every emission
// reaching a subscribed topic is fanned out as a JSON frame to every
// connected client, for watching a running reactor process from outside it.
package bridge

import (
	"encoding/json"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/lattice-run/reactor"
	"github.com/lattice-run/reactor/internal/config"
	"github.com/lattice-run/reactor/internal/logging"
	"github.com/lattice-run/reactor/internal/metrics"
	"github.com/lattice-run/reactor/internal/scope"
)

const (
	writeWait          = 10 * time.Second
	pongWaitMultiplier = 3
)

var localHosts = map[string]struct{}{"localhost": {}, "127.0.0.1": {}, "::1": {}}

// Frame is the JSON envelope written to every connected client for each
// emission observed at the bridged topic's root.
type Frame struct {
	Payload   any   `json:"payload"`
	UnixMilli int64 `json:"unix_milli"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	id   string
	log  *logging.Logger
}

// Server fans out a reactor.TopicHandler[any]'s root emissions to connected
// WebSocket clients. Construct with NewServer and mount it (it implements
// http.Handler) on a net/http.ServeMux.
type Server struct {
	mu       sync.Mutex
	clients  map[*client]bool
	pending  int

	topic    reactor.TopicHandler[any]
	upgrader websocket.Upgrader

	pingInterval time.Duration
	maxClients   int
	maxPayload   int64

	log      *logging.Logger
	teardown scope.Disposer
}

// NewServer wires up a Server bridging topic, configured from cfg. The
// returned Server's subscription lives until Close is called.
func NewServer(cfg *config.Config, topic reactor.TopicHandler[any], log *logging.Logger) *Server {
	if log == nil {
		log = logging.L()
	}
	s := &Server{
		clients:      make(map[*client]bool),
		topic:        topic,
		upgrader:     websocket.Upgrader{CheckOrigin: buildOriginChecker(log, cfg.AllowedOrigins)},
		pingInterval: cfg.PingInterval,
		maxClients:   cfg.MaxClients,
		maxPayload:   cfg.MaxPayloadBytes,
		log:          log,
	}
	s.teardown = scope.Run(func() {
		topic.Listen(func(v any) { s.broadcast(v) })
	})
	return s
}

// Close tears down the topic subscription and disconnects every client.
func (s *Server) Close() {
	s.teardown.Dispose()

	s.mu.Lock()
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.clients = make(map[*client]bool)
	s.mu.Unlock()

	for _, c := range clients {
		close(c.send)
	}
}

func (s *Server) broadcast(payload any) {
	frame := Frame{Payload: payload, UnixMilli: timeNowUnixMilli()}
	msg, err := json.Marshal(frame)
	if err != nil {
		s.log.Error("failed to marshal bridge frame", logging.Error(err))
		return
	}

	s.mu.Lock()
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		select {
		case c.send <- msg:
			metrics.BridgeFramesSentTotal.Inc()
		default:
			s.log.Warn("dropping bridge client: send buffer full", logging.String("client_id", c.id))
			s.deregister(c)
		}
	}
}

func (s *Server) deregister(c *client) {
	s.mu.Lock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		close(c.send)
	}
	s.mu.Unlock()
	metrics.BridgeClientsConnected.Set(float64(s.clientCount()))
}

func (s *Server) clientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// ServeHTTP upgrades the request to a WebSocket connection and registers it
// as a bridge client.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqLog := s.log.With(logging.String("remote_addr", r.RemoteAddr))

	if s.maxClients > 0 {
		s.mu.Lock()
		if len(s.clients)+s.pending >= s.maxClients {
			s.mu.Unlock()
			reqLog.Warn("refusing bridge connection: client limit reached", logging.Int("max_clients", s.maxClients))
			http.Error(w, "service unavailable: client limit reached", http.StatusServiceUnavailable)
			return
		}
		s.pending++
		s.mu.Unlock()
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		if s.maxClients > 0 {
			s.mu.Lock()
			if s.pending > 0 {
				s.pending--
			}
			s.mu.Unlock()
		}
		reqLog.Error("bridge websocket upgrade failed", logging.Error(err))
		return
	}
	if s.maxPayload > 0 {
		conn.SetReadLimit(s.maxPayload)
	}

	c := &client{conn: conn, send: make(chan []byte, 64), id: uuid.NewString(), log: reqLog}

	s.mu.Lock()
	if s.maxClients > 0 && s.pending > 0 {
		s.pending--
	}
	s.clients[c] = true
	s.mu.Unlock()
	metrics.BridgeClientsConnected.Set(float64(s.clientCount()))

	waitDuration := time.Duration(pongWaitMultiplier) * s.pingInterval
	_ = conn.SetReadDeadline(time.Now().Add(waitDuration))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(waitDuration))
	})

	go s.readPump(c, waitDuration)
	go s.writePump(c)
}

// readPump discards inbound frames (the bridge is read-only) but keeps
// pumping so pong-driven read deadlines are honored until the peer closes.
func (s *Server) readPump(c *client, waitDuration time.Duration) {
	defer func() {
		s.deregister(c)
		_ = c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				c.log.Warn("bridge read deadline exceeded", logging.Error(err))
			} else if !websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("bridge connection closed", logging.Error(err))
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(waitDuration))
	}
}

func (s *Server) writePump(c *client) {
	ticker := time.NewTicker(s.pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.log.Error("bridge write error", logging.Error(err))
				s.deregister(c)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeWait)); err != nil {
				c.log.Warn("bridge ping failure", logging.Error(err))
				s.deregister(c)
				return
			}
		}
	}
}

func buildOriginChecker(log *logging.Logger, allowlist []string) func(*http.Request) bool {
	allowed := make(map[string]struct{}, len(allowlist))
	for _, origin := range allowlist {
		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			log.Warn("ignoring invalid allowed origin", logging.String("origin", origin), logging.Error(err))
			continue
		}
		allowed[strings.ToLower(u.Scheme+"://"+u.Host)] = struct{}{}
	}

	return func(r *http.Request) bool {
		originHeader := r.Header.Get("Origin")
		if originHeader == "" {
			return false
		}
		originURL, err := url.Parse(originHeader)
		if err != nil || originURL.Host == "" {
			log.Warn("rejecting bridge request with invalid origin", logging.String("origin", originHeader))
			return false
		}
		if _, ok := localHosts[originURL.Hostname()]; ok {
			return true
		}
		if _, ok := allowed[strings.ToLower(originURL.Scheme+"://"+originURL.Host)]; ok {
			return true
		}
		log.Warn("rejecting bridge request from disallowed origin", logging.String("origin", originHeader))
		return false
	}
}

func timeNowUnixMilli() int64 {
	return time.Now().UnixMilli()
}
