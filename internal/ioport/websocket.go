package ioport

import (
	"fmt"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/b0nefish/poprc/internal/cell"
)

// WebSocket is a Port backend whose "files" are websocket connections
// rather than local paths: Open's name is a ws:// or wss:// URL, Read
// drains the next received text/binary frame, and Write sends one.
// Grounded on the teacher's (deleted) internal/network/websocket.go
// WebSocketConn (dial-with-timeout, a buffered inbound channel filled by
// a background reader goroutine and drained by Read).
type WebSocket struct {
	mu    sync.Mutex
	conns map[uint64]*wsConn
	next  uint64
}

type wsConn struct {
	conn *websocket.Conn
	msgs chan []byte
}

// NewWebSocket constructs an empty WebSocket Port.
func NewWebSocket() *WebSocket {
	return &WebSocket{conns: make(map[uint64]*wsConn), next: 1}
}

func (p *WebSocket) Open(name string, flags Flags) (cell.Value, error) {
	dialer := websocket.DefaultDialer
	dialer.HandshakeTimeout = dialTimeout

	conn, _, err := dialer.Dial(name, nil)
	if err != nil {
		return cell.Value{}, fmt.Errorf("ioport: websocket dial %q: %w", name, err)
	}

	wc := &wsConn{conn: conn, msgs: make(chan []byte, 100)}
	go wc.readLoop()

	p.mu.Lock()
	h := p.next
	p.next++
	p.conns[h] = wc
	p.mu.Unlock()

	return cell.Value{Kind: cell.VHandle, Handle: h}, nil
}

func (wc *wsConn) readLoop() {
	defer close(wc.msgs)
	for {
		_, msg, err := wc.conn.ReadMessage()
		if err != nil {
			return
		}
		select {
		case wc.msgs <- msg:
		default:
			<-wc.msgs
			wc.msgs <- msg
		}
	}
}

func (p *WebSocket) get(handle uint64) (*wsConn, error) {
	p.mu.Lock()
	wc, ok := p.conns[handle]
	p.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("ioport: unknown websocket handle %d", handle)
	}
	return wc, nil
}

func (p *WebSocket) Read(handle uint64, n int) (string, error) {
	wc, err := p.get(handle)
	if err != nil {
		return "", err
	}
	msg, ok := <-wc.msgs
	if !ok {
		return "", fmt.Errorf("ioport: websocket handle %d closed", handle)
	}
	if len(msg) > n {
		msg = msg[:n]
	}
	return string(msg), nil
}

func (p *WebSocket) Write(handle uint64, data string) error {
	wc, err := p.get(handle)
	if err != nil {
		return err
	}
	return wc.conn.WriteMessage(websocket.TextMessage, []byte(data))
}

// Unread is not meaningful over a message-oriented transport; the spec's
// IO vtable still requires the method so WebSocket satisfies Port, but a
// caller that needs push-back should wrap individual messages itself.
func (p *WebSocket) Unread(handle uint64, data string) error {
	return fmt.Errorf("ioport: websocket handle %d does not support unread", handle)
}

func (p *WebSocket) Close(handle uint64) error {
	p.mu.Lock()
	wc, ok := p.conns[handle]
	if ok {
		delete(p.conns, handle)
	}
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("ioport: unknown websocket handle %d", handle)
	}
	wc.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return wc.conn.Close()
}
