package websocket

import (
	"encoding/json"
	"sync"

	"talk-chat/pkg/logger"
	"talk-chat/pkg/metrics"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Client is one websocket connection. A user may hold several.
type Client struct {
	UserID uint
	Conn   *websocket.Conn
	Send   chan []byte
}

func NewClient(userID uint, conn *websocket.Conn) *Client {
	return &Client{UserID: userID, Conn: conn, Send: make(chan []byte, 256)}
}

// Manager tracks live connections per user and fans payloads out to them.
type Manager struct {
	clients map[uint]map[*Client]struct{}
	lock    sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{clients: make(map[uint]map[*Client]struct{})}
}

// AddClient registers a connection and reports whether it is the user's first.
func (m *Manager) AddClient(client *Client) bool {
	m.lock.Lock()
	defer m.lock.Unlock()

	set, ok := m.clients[client.UserID]
	if !ok {
		set = make(map[*Client]struct{})
		m.clients[client.UserID] = set
	}
	set[client] = struct{}{}
	metrics.WsConnections.Inc()
	return len(set) == 1
}

// RemoveClient unregisters a connection, closes its send channel and reports
// whether the user has no connection left.
func (m *Manager) RemoveClient(client *Client) bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.removeLocked(client)
}

func (m *Manager) removeLocked(client *Client) bool {
	set, ok := m.clients[client.UserID]
	if !ok {
		return true
	}
	if _, ok := set[client]; !ok {
		return len(set) == 0
	}
	delete(set, client)
	close(client.Send)
	metrics.WsConnections.Dec()
	if len(set) == 0 {
		delete(m.clients, client.UserID)
		return true
	}
	return false
}

// Notify marshals payload once and queues it on every connection of every
// listed user. A connection whose buffer is full is dropped.
func (m *Manager) Notify(userIDs []uint, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Error("marshal websocket payload", zap.Error(err))
		return
	}

	var slow []*Client
	m.lock.RLock()
	for _, id := range userIDs {
		for c := range m.clients[id] {
			select {
			case c.Send <- data:
			default:
				slow = append(slow, c)
			}
		}
	}
	m.lock.RUnlock()

	if len(slow) == 0 {
		return
	}
	m.lock.Lock()
	for _, c := range slow {
		logger.Warn("dropping slow websocket client", zap.Uint("user_id", c.UserID))
		m.removeLocked(c)
	}
	m.lock.Unlock()
}

// IsOnline reports whether this instance holds a connection for userID.
func (m *Manager) IsOnline(userID uint) bool {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return len(m.clients[userID]) > 0
}

// Connections returns the number of open connections of userID.
func (m *Manager) Connections(userID uint) int {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return len(m.clients[userID])
}
