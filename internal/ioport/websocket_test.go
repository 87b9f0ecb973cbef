package ioport

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
)

// echoServer upgrades every request to a websocket connection and echoes
// back whatever it receives, so WebSocket's Open/Write/Read can be
// exercised against a real (if local) peer instead of a fake.
func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, msg); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestWebSocketOpenWriteRead(t *testing.T) {
	srv := echoServer(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	p := NewWebSocket()
	v, err := p.Open(url, FlagStream)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := p.Write(v.Handle, "ping"); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := p.Read(v.Handle, 64)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got != "ping" {
		t.Fatalf("Read = %q, want the echoed %q", got, "ping")
	}
	if err := p.Close(v.Handle); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestWebSocketUnreadUnsupported(t *testing.T) {
	srv := echoServer(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	p := NewWebSocket()
	v, err := p.Open(url, FlagStream)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer p.Close(v.Handle)
	if err := p.Unread(v.Handle, "x"); err == nil {
		t.Fatalf("expected Unread over a websocket transport to report an error")
	}
}
