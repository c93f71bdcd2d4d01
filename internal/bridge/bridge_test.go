package bridge

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lattice-run/reactor"
	"github.com/lattice-run/reactor/internal/config"
	"github.com/lattice-run/reactor/internal/logging"
	"github.com/lattice-run/reactor/internal/websockettest"
)

// dialOrigin is the Origin header every test dial presents: localHosts in
// bridge.go unconditionally allows it, so tests don't need to populate
// AllowedOrigins just to get past the handshake.
var dialOrigin = http.Header{"Origin": {"http://localhost"}}

func TestServerBroadcastsTopicEmissions(t *testing.T) {
	topic, emitTopic := reactor.NewTopicWith[any](reactor.NewScheduler())

	cfg := &config.Config{
		AllowedOrigins:  nil,
		PingInterval:    time.Minute,
		MaxPayloadBytes: 1 << 16,
		MaxClients:      8,
	}
	srv := NewServer(cfg, topic, logging.NewTestLogger())
	defer srv.Close()

	httpSrv := httptest.NewServer(srv)
	defer httpSrv.Close()

	wsURL := "ws" + httpSrv.URL[len("http"):]
	conn, _, err := websockettest.DialIgnoringPongs(wsURL, dialOrigin)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Give the registration goroutine a moment to land before emitting.
	time.Sleep(20 * time.Millisecond)

	emitTopic.At("a").Emit(1)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}

	if len(msg) == 0 {
		t.Fatal("expected a non-empty frame")
	}
}

func TestServerCloseDisconnectsClients(t *testing.T) {
	topic, _ := reactor.NewTopicWith[any](reactor.NewScheduler())
	cfg := &config.Config{PingInterval: time.Minute, MaxPayloadBytes: 1 << 16, MaxClients: 8}
	srv := NewServer(cfg, topic, logging.NewTestLogger())

	httpSrv := httptest.NewServer(srv)
	defer httpSrv.Close()

	wsURL := "ws" + httpSrv.URL[len("http"):]
	conn, _, err := websockettest.DialIgnoringPongs(wsURL, dialOrigin)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	time.Sleep(20 * time.Millisecond)
	srv.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("expected connection to be closed")
	}
}
