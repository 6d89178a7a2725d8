package notify

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"

	"audiora/internal/logger"
)

type outbound struct {
	userID string // empty means broadcast to everyone
	data   []byte
}

// Hub tracks connected websocket clients and routes notification
// payloads to them, either targeted at one user or broadcast to all. A
// user may hold several connections (multiple devices).
type Hub struct {
	mu         sync.Mutex
	clients    map[*websocket.Conn]string
	sendChans  map[*websocket.Conn]chan []byte
	deliver    chan outbound
	unregister chan *websocket.Conn
	log        *logger.Logger
}

func NewHub(baseLog *logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]string),
		sendChans:  make(map[*websocket.Conn]chan []byte),
		deliver:    make(chan outbound, 64),
		unregister: make(chan *websocket.Conn),
		log:        baseLog.With("component", "notify-hub"),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case conn := <-h.unregister:
			h.mu.Lock()
			if userID, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				if sendChan, ok := h.sendChans[conn]; ok {
					close(sendChan)
					delete(h.sendChans, conn)
				}
				conn.Close()
				h.log.Debug("client disconnected", "user_id", userID)
			}
			h.mu.Unlock()

		case msg := <-h.deliver:
			h.mu.Lock()
			for conn, sendChan := range h.sendChans {
				if msg.userID != "" && h.clients[conn] != msg.userID {
					continue
				}
				select {
				case sendChan <- msg.data:
				default:
					// slow client; drop it rather than block the hub
					h.log.Warn("send channel full, removing client", "user_id", h.clients[conn])
					delete(h.clients, conn)
					delete(h.sendChans, conn)
					close(sendChan)
					conn.Close()
				}
			}
			h.mu.Unlock()
		}
	}
}

// Push sends a payload to every connection of one user.
func (h *Hub) Push(userID string, payload any) {
	h.send(userID, payload)
}

// Broadcast sends a payload to every connected client.
func (h *Hub) Broadcast(payload any) {
	h.send("", payload)
}

func (h *Hub) send(userID string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.log.Error("marshal payload", "error", err)
		return
	}
	h.deliver <- outbound{userID: userID, data: data}
}

func (h *Hub) add(conn *websocket.Conn, userID string, sendChan chan []byte) {
	h.mu.Lock()
	h.clients[conn] = userID
	h.sendChans[conn] = sendChan
	h.mu.Unlock()
	h.log.Debug("client connected", "user_id", userID)
}
