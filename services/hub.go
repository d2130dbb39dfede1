package services

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"elementduel/models"

	"github.com/gorilla/websocket"
)

// Hub relays match state and result events from each user's coordinator
// to that user's connected websockets. A socket attaches to the session
// coordinator on register and detaches (unsubscribing) on unregister.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex
	sessions   *SessionManager
}

type Client struct {
	hub    *Hub
	id     string
	socket *websocket.Conn
	send   chan []byte
	userID uint
	coord  *MatchCoordinator

	unsubState  func()
	unsubResult func()
}

type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

func NewHub(sessions *SessionManager) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		sessions:   sessions,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			h.mutex.Unlock()

			client.attach()
			log.Printf("Client registered: %s for user %d - Total clients: %d", client.id, client.userID, h.clientCount())

		case client := <-h.unregister:
			h.mutex.Lock()
			_, ok := h.clients[client]
			if ok {
				delete(h.clients, client)
			}
			h.mutex.Unlock()

			if ok {
				client.detach()
				close(client.send)
				log.Printf("Client unregistered: %s for user %d - Total clients: %d", client.id, client.userID, h.clientCount())
			}
		}
	}
}

func (h *Hub) clientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// RegisterClient attaches a websocket to the user's session coordinator
// and starts its read/write pumps.
func (h *Hub) RegisterClient(conn *websocket.Conn, userID uint) *Client {
	client := &Client{
		hub:    h,
		id:     generateClientID(),
		socket: conn,
		send:   make(chan []byte, 256),
		userID: userID,
		coord:  h.sessions.Coordinator(userID),
	}

	h.register <- client

	go client.writePump()
	go client.readPump()

	return client
}

func (h *Hub) UnregisterClient(client *Client) {
	h.unregister <- client
}

// attach subscribes the client to its coordinator's state and result
// streams. Deliveries are pushed into the send buffer; a full buffer
// drops the message (the next state delivery supersedes it).
func (c *Client) attach() {
	c.unsubState = c.coord.SubscribeToState(func(state models.Match) {
		c.push("match_state", state)
	})
	c.unsubResult = c.coord.SubscribeToResult(func(result GameResult) {
		c.push("game_result", result)
	})
}

func (c *Client) detach() {
	if c.unsubState != nil {
		c.unsubState()
	}
	if c.unsubResult != nil {
		c.unsubResult()
	}
}

func (c *Client) push(messageType string, payload interface{}) {
	data, err := json.Marshal(Message{Type: messageType, Payload: payload})
	if err != nil {
		log.Printf("Error marshaling %s message: %v", messageType, err)
		return
	}

	select {
	case c.send <- data:
	default:
		log.Printf("Client %s send buffer full, dropping %s", c.id, messageType)
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.UnregisterClient(c)
		c.socket.Close()
	}()

	for {
		_, message, err := c.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket read error: %v", err)
			}
			break
		}

		var msg Message
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Printf("Error unmarshaling message: %v", err)
			continue
		}

		c.handleMessage(msg)
	}
}

func (c *Client) writePump() {
	defer func() {
		c.socket.Close()
	}()

	for message := range c.send {
		w, err := c.socket.NextWriter(websocket.TextMessage)
		if err != nil {
			return
		}

		w.Write(message)

		if err := w.Close(); err != nil {
			return
		}
	}

	c.socket.WriteMessage(websocket.CloseMessage, []byte{})
}

func (c *Client) handleMessage(msg Message) {
	switch msg.Type {
	case "ping":
		c.push("pong", "pong")

	case "request_match_state":
		if match := c.coord.CurrentMatch(); match != nil {
			c.push("match_state", *match)
		}

	case "leave_game":
		log.Printf("User %d leaving match via WebSocket", c.userID)
		if err := c.coord.LeaveGame(c.userID); err != nil {
			log.Printf("Error leaving match for user %d: %v", c.userID, err)
		}

	default:
		log.Printf("Unknown message type: %s from user %d", msg.Type, c.userID)
	}
}

var clientCounter atomic.Uint64

func generateClientID() string {
	return fmt.Sprintf("client_%d_%d", time.Now().UnixNano(), clientCounter.Add(1))
}
