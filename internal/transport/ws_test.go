package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/softframe/embedctl/internal/logging"
	"github.com/softframe/embedctl/internal/testutil/testlog"
)

// echoServer upgrades /attach and echoes every message back to the sender.
func echoServer(t *testing.T, policy OriginPolicy) *httptest.Server {
	t.Helper()
	upgrader := Upgrader(policy)
	logger := logging.New("ws-test")
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn := NewWSConn(ws, logger)
		_ = conn.ReadLoop(r.Context(), func(raw []byte) {
			_ = conn.Send(context.Background(), raw)
		})
		_ = conn.Close()
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWSConnRoundTrip(t *testing.T) {
	testlog.Start(t)
	srv := echoServer(t, StaticOrigins{Origins: []string{"*"}})
	defer srv.Close()

	logger := logging.New("ws-test")
	conn, err := DialWS(context.Background(), wsURL(srv), "http://localhost", logger)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer func() { _ = conn.Close() }()

	var mu sync.Mutex
	var got []string
	received := make(chan struct{}, 8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = conn.ReadLoop(ctx, func(raw []byte) {
			mu.Lock()
			got = append(got, string(raw))
			mu.Unlock()
			received <- struct{}{}
		})
	}()

	if err := conn.Send(context.Background(), []byte(`{"func":"ping","args":[]}`)); err != nil {
		t.Fatalf("send: %v", err)
	}
	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatalf("echo never arrived")
	}
	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || !strings.Contains(got[0], "ping") {
		t.Fatalf("unexpected echo: %v", got)
	}
}

func TestWSUpgradeRejectsOrigin(t *testing.T) {
	testlog.Start(t)
	srv := echoServer(t, StaticOrigins{Origins: []string{"https://only.example.com"}})
	defer srv.Close()

	logger := logging.New("ws-test")
	if _, err := DialWS(context.Background(), wsURL(srv), "https://evil.example.com", logger); err == nil {
		t.Fatalf("dial with a denied origin should fail the upgrade")
	}

	conn, err := DialWS(context.Background(), wsURL(srv), "https://only.example.com", logger)
	if err != nil {
		t.Fatalf("dial with the allowed origin: %v", err)
	}
	_ = conn.Close()
}

func TestWSReadLoopStopsOnContextCancel(t *testing.T) {
	testlog.Start(t)
	srv := echoServer(t, StaticOrigins{Origins: []string{"*"}})
	defer srv.Close()

	logger := logging.New("ws-test")
	conn, err := DialWS(context.Background(), wsURL(srv), "http://localhost", logger)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- conn.ReadLoop(ctx, func([]byte) {})
	}()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("cancelled read loop should return nil, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("read loop did not stop")
	}
}
