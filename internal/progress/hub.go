// Package progress exposes a beam-search run's live status over HTTP and
// WebSocket so an operator can watch a multi-minute recovery attempt
// without tailing logs. It is a strictly optional add-on: nothing in
// internal/engine or internal/search depends on it.
package progress

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/rawblock/hitag2-corrattack/internal/candidate"
	"github.com/rawblock/hitag2-corrattack/internal/search"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // local operator dashboard, not public-facing
	},
}

// Status is the latest snapshot of a run, both served from /status and
// pushed to every /ws subscriber after each beam step.
type Status struct {
	Step       int     `json:"step"`
	Stage      string  `json:"stage"`
	Survivors  int     `json:"survivors"`
	BestScore  float64 `json:"bestScore"`
	BestState  uint64  `json:"bestState"`
	BestLength int     `json:"bestLength"`
}

// Hub maintains the set of active websocket clients, the latest Status,
// and broadcasts every update to all of them.
type Hub struct {
	clients   map[*websocket.Conn]bool
	broadcast chan []byte
	mutex     sync.Mutex
	latest    Status
}

// NewHub constructs an empty Hub. Call Run in its own goroutine to start
// draining the broadcast channel.
func NewHub() *Hub {
	return &Hub{
		broadcast: make(chan []byte, 256),
		clients:   make(map[*websocket.Conn]bool),
	}
}

// Run drains the broadcast channel until it's closed, fanning every
// message out to connected clients under a write deadline so one stalled
// client can't block the others.
func (h *Hub) Run() {
	for message := range h.broadcast {
		h.mutex.Lock()
		for client := range h.clients {
			_ = client.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("progress: websocket write error: %v", err)
				client.Close()
				delete(h.clients, client)
			}
		}
		h.mutex.Unlock()
	}
}

// Subscribe upgrades an incoming request to a websocket connection and
// registers it to receive future broadcasts.
func (h *Hub) Subscribe(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("progress: failed to upgrade websocket: %v", err)
		return
	}

	h.mutex.Lock()
	h.clients[conn] = true
	h.mutex.Unlock()

	go func() {
		defer func() {
			h.mutex.Lock()
			delete(h.clients, conn)
			h.mutex.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

// Latest returns the most recently recorded Status.
func (h *Hub) Latest() Status {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.latest
}

// Report records a beam-search step and broadcasts it to subscribers. It
// is shaped as a search.Observer so it can be passed directly to
// engine.Options.Observe.
func (h *Hub) Report(step int, stage search.Stage, beam []candidate.Candidate) {
	status := Status{Step: step, Stage: stage.String(), Survivors: len(beam)}
	if len(beam) > 0 {
		best := beam[0]
		for _, c := range beam[1:] {
			if candidate.Less(c, best) {
				best = c
			}
		}
		status.BestScore = best.Score
		status.BestState = best.State
		status.BestLength = best.Len
	}

	h.mutex.Lock()
	h.latest = status
	h.mutex.Unlock()

	if payload, err := json.Marshal(status); err == nil {
		select {
		case h.broadcast <- payload:
		default:
			log.Printf("progress: broadcast channel full, dropping step %d update", step)
		}
	}
}

// Router builds the gin router exposing /status and /ws for this Hub.
func Router(hub *Hub) *gin.Engine {
	r := gin.Default()
	r.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, hub.Latest())
	})
	r.GET("/ws", hub.Subscribe)
	return r
}
