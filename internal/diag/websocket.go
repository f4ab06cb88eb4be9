// SPDX-License-Identifier: MIT
package diag

import (
	"errors"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"streamcore/internal/log"
)

// WebSocketChannel serves diagnostics as JSON messages on /ws. It counts
// as attached while at least one client is connected.
type WebSocketChannel struct {
	upgrader  websocket.Upgrader
	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex
	broadcast chan Message
	server    *http.Server
	listener  net.Listener
	done      chan struct{}
}

// NewWebSocketChannel listens on addr and starts serving.
func NewWebSocketChannel(addr string) (*WebSocketChannel, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	wsc := &WebSocketChannel{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan Message, 256),
		listener:  ln,
		done:      make(chan struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsc.handleWebSocket)
	wsc.server = &http.Server{Handler: mux}

	go func() {
		log.Infof("diag: websocket server on %s", ln.Addr())
		if err := wsc.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("diag: websocket server: %v", err)
		}
	}()
	go wsc.handleBroadcasts()

	return wsc, nil
}

// Addr returns the listening address.
func (wsc *WebSocketChannel) Addr() string {
	return wsc.listener.Addr().String()
}

func (wsc *WebSocketChannel) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wsc.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("diag: websocket upgrade: %v", err)
		return
	}

	wsc.clientsMu.Lock()
	wsc.clients[conn] = true
	n := len(wsc.clients)
	wsc.clientsMu.Unlock()
	log.Debugf("diag: websocket client connected, total: %d", n)

	go func() {
		// Clients only listen; any read result means the connection is done.
		_, _, _ = conn.ReadMessage()
		wsc.clientsMu.Lock()
		delete(wsc.clients, conn)
		wsc.clientsMu.Unlock()
		conn.Close()
	}()
}

func (wsc *WebSocketChannel) handleBroadcasts() {
	for {
		select {
		case <-wsc.done:
			return
		case msg := <-wsc.broadcast:
			wsc.clientsMu.Lock()
			for client := range wsc.clients {
				if err := client.WriteJSON(msg); err != nil {
					client.Close()
					delete(wsc.clients, client)
				}
			}
			wsc.clientsMu.Unlock()
		}
	}
}

func (wsc *WebSocketChannel) Name() string { return "websocket" }

// Attached reports whether a client is connected.
func (wsc *WebSocketChannel) Attached() bool {
	wsc.clientsMu.Lock()
	defer wsc.clientsMu.Unlock()
	return len(wsc.clients) > 0
}

// Send queues msg for every client. A full queue drops it.
func (wsc *WebSocketChannel) Send(msg Message) error {
	select {
	case wsc.broadcast <- msg:
	default:
	}
	return nil
}

// Close disconnects all clients and shuts the server down.
func (wsc *WebSocketChannel) Close() error {
	select {
	case <-wsc.done:
		return nil
	default:
		close(wsc.done)
	}

	wsc.clientsMu.Lock()
	for client := range wsc.clients {
		client.Close()
	}
	clear(wsc.clients)
	wsc.clientsMu.Unlock()

	return wsc.server.Close()
}
