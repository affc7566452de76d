package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/docpress/api/internal/model"
)

const sendBuffer = 256

// Client is one WebSocket subscriber watching a job.
type Client struct {
	JobID string
	Conn  *websocket.Conn
	Send  chan []byte
}

// jobMessage carries an encoded message to every subscriber of a job.
type jobMessage struct {
	jobID string
	data  []byte
}

// Hub fans job status updates out to WebSocket subscribers grouped by job id.
type Hub struct {
	subscribers map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *jobMessage

	mu sync.RWMutex
}

// NewHub creates an empty hub. Call Run in its own goroutine before use.
func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[string]map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan *jobMessage, sendBuffer),
	}
}

// Run drains the hub's channels. Slow subscribers are dropped rather than
// allowed to block job updates.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.subscribers[client.JobID] == nil {
				h.subscribers[client.JobID] = make(map[*Client]bool)
			}
			h.subscribers[client.JobID][client] = true
			h.mu.Unlock()
			log.Printf("Subscriber registered for job %s", client.JobID)

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.subscribers[client.JobID]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.Send)
					if len(clients) == 0 {
						delete(h.subscribers, client.JobID)
					}
				}
			}
			h.mu.Unlock()
			log.Printf("Subscriber unregistered from job %s", client.JobID)

		case msg := <-h.broadcast:
			h.mu.RLock()
			if clients, ok := h.subscribers[msg.jobID]; ok {
				for client := range clients {
					select {
					case client.Send <- msg.data:
					default:
						close(client.Send)
						delete(clients, client)
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Register adds a subscriber.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a subscriber.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// BroadcastStatus pushes a job's new state, with result URLs when the job
// succeeded, to every subscriber.
func (h *Hub) BroadcastStatus(jobID string, status model.JobStatus, urls map[string]string) {
	h.send(jobID, model.WSStatusMessage{
		Type:   model.WSMessageTypeStatus,
		JobID:  jobID,
		Status: status,
		URLs:   urls,
	})
}

// BroadcastError tells every subscriber that the job failed.
func (h *Hub) BroadcastError(jobID, code, message string) {
	h.send(jobID, model.WSErrorMessage{
		Type:  model.WSMessageTypeError,
		JobID: jobID,
		Error: model.WSError{Code: code, Message: message},
	})
}

func (h *Hub) send(jobID string, msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Failed to marshal websocket message: %v", err)
		return
	}
	h.broadcast <- &jobMessage{jobID: jobID, data: data}
}

// HandleConnection pumps messages for one subscriber until the connection
// closes. It blocks, so it must run on the connection's handler goroutine.
func (h *Hub) HandleConnection(c *websocket.Conn, jobID string) {
	client := &Client{
		JobID: jobID,
		Conn:  c,
		Send:  make(chan []byte, sendBuffer),
	}

	h.Register(client)
	defer h.Unregister(client)

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case message, ok := <-client.Send:
				if !ok {
					c.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := c.WriteMessage(websocket.TextMessage, message); err != nil {
					return
				}

			case <-ticker.C:
				if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error on job %s: %v", jobID, err)
			}
			break
		}

		var msg model.WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		if msg.Type == model.WSMessageTypePing {
			pong, _ := json.Marshal(model.WSMessage{Type: model.WSMessageTypePong})
			client.Send <- pong
		}
	}
}
