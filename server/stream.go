// Copyright 2025 The AgentLand Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/taketaketaketake/agentland-observability-sub000/evaluation"
)

const (
	// initialEventLimit bounds the backlog sent to a fresh subscriber.
	initialEventLimit = 300

	// clientSendBuffer is the per-connection outbound queue. A client
	// that cannot drain it is dropped.
	clientSendBuffer = 64

	writeTimeout = 10 * time.Second
)

// streamMessage is the envelope every stream frame uses.
type streamMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Hub fans events and evaluation progress out to WebSocket
// subscribers.
type Hub struct {
	store    Storage
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*streamClient]struct{}
	closed  bool
}

type streamClient struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates a hub that serves initial backlogs from store.
func NewHub(store Storage) *Hub {
	return &Hub{
		store: store,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		clients: make(map[*streamClient]struct{}),
	}
}

// ServeHTTP upgrades the connection and subscribes it.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[stream] upgrade failed: %v", err)
		return
	}

	// Snapshot the backlog before subscribing. Every close of a client
	// send channel happens under the hub mutex, so enqueueing the
	// initial frame inside the registration critical section can never
	// hit a closed channel.
	events, err := h.store.RecentEvents(r.Context(), initialEventLimit)
	if err != nil {
		log.Printf("[stream] load initial events: %v", err)
		events = nil
	}
	initial, merr := json.Marshal(streamMessage{Type: "initial", Data: events})

	client := &streamClient{conn: conn, send: make(chan []byte, clientSendBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[client] = struct{}{}
	if merr == nil {
		client.enqueue(initial)
	}
	h.mu.Unlock()

	go h.writePump(client)
	h.readPump(client)
}

// BroadcastEvent pushes a recorded event to all subscribers.
func (h *Hub) BroadcastEvent(ev *evaluation.ToolEvent) {
	h.broadcast(streamMessage{Type: "event", Data: ev})
}

// BroadcastProgress pushes an evaluation progress update to all
// subscribers. Satisfies evaluation.BroadcastFunc.
func (h *Hub) BroadcastProgress(upd evaluation.ProgressUpdate) {
	h.broadcast(streamMessage{Type: "eval_progress", Data: upd})
}

// Close disconnects all subscribers.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
}

func (h *Hub) broadcast(msg streamMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[stream] marshal %s frame: %v", msg.Type, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		if !client.enqueue(payload) {
			// Slow consumer: drop the connection rather than block.
			close(client.send)
			delete(h.clients, client)
		}
	}
}

func (h *Hub) remove(client *streamClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; ok {
		close(client.send)
		delete(h.clients, client)
	}
}

func (h *Hub) writePump(client *streamClient) {
	defer client.conn.Close()
	for payload := range client.send {
		client.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := client.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
	client.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// readPump drains inbound frames so close and ping control messages
// are processed. Returns when the peer disconnects.
func (h *Hub) readPump(client *streamClient) {
	defer h.remove(client)
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *streamClient) enqueue(payload []byte) bool {
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}
