package chat

import (
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// Client represents a connected user
type Client struct {
	UserID  string
	Conn    *websocket.Conn
	Send    chan any      // Channel to send envelopes to this client
	Done    chan struct{} // Signal to stop reading/writing
	limiter *rate.Limiter
	once    sync.Once
}

func newClient(userID string, conn *websocket.Conn, limiter *rate.Limiter) *Client {
	return &Client{
		UserID:  userID,
		Conn:    conn,
		Send:    make(chan any, 32), // Buffered channel to handle bursts
		Done:    make(chan struct{}),
		limiter: limiter,
	}
}

func (c *Client) close() {
	c.once.Do(func() { close(c.Done) })
}

// allow reports whether one more inbound event fits the client's budget.
func (c *Client) allow() bool {
	return c.limiter == nil || c.limiter.Allow()
}

// ConnectionManager manages all active WebSocket connections and team rooms
type ConnectionManager struct {
	mu      sync.RWMutex
	clients map[string]*Client             // user_id -> Client
	rooms   map[string]map[string]struct{} // team_id -> user_ids
}

// NewConnectionManager creates a new connection manager
func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[string]struct{}),
	}
}

// AddClient registers a new client connection. An existing connection for
// the same user is closed and replaced; room memberships carry over.
func (cm *ConnectionManager) AddClient(userID string, conn *websocket.Conn) *Client {
	return cm.addClient(newClient(userID, conn, nil))
}

func (cm *ConnectionManager) addClient(client *Client) *Client {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if existing, ok := cm.clients[client.UserID]; ok {
		existing.close()
		if existing.Conn != nil {
			existing.Conn.Close()
		}
	}
	cm.clients[client.UserID] = client
	return client
}

// RemoveClient unregisters client and drops the user from every room. It is
// a no-op when client has already been replaced by a newer connection.
func (cm *ConnectionManager) RemoveClient(client *Client) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	current, ok := cm.clients[client.UserID]
	client.close()
	if !ok || current != client {
		return
	}
	delete(cm.clients, client.UserID)
	for teamID, members := range cm.rooms {
		delete(members, client.UserID)
		if len(members) == 0 {
			delete(cm.rooms, teamID)
		}
	}
}

// GetClient retrieves a client by user ID
func (cm *ConnectionManager) GetClient(userID string) *Client {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	return cm.clients[userID]
}

// IsOnline checks if a user is currently online
func (cm *ConnectionManager) IsOnline(userID string) bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	_, exists := cm.clients[userID]
	return exists
}

// GetOnlineUsers returns a list of all online user IDs
func (cm *ConnectionManager) GetOnlineUsers() []string {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	users := make([]string, 0, len(cm.clients))
	for userID := range cm.clients {
		users = append(users, userID)
	}
	return users
}

// Count returns the number of connected users.
func (cm *ConnectionManager) Count() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.clients)
}

// JoinRoom adds userID to the team room.
func (cm *ConnectionManager) JoinRoom(teamID, userID string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	members, ok := cm.rooms[teamID]
	if !ok {
		members = make(map[string]struct{})
		cm.rooms[teamID] = members
	}
	members[userID] = struct{}{}
}

// LeaveRoom removes userID from the team room.
func (cm *ConnectionManager) LeaveRoom(teamID, userID string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	members, ok := cm.rooms[teamID]
	if !ok {
		return
	}
	delete(members, userID)
	if len(members) == 0 {
		delete(cm.rooms, teamID)
	}
}

// InRoom reports whether userID has joined the team room.
func (cm *ConnectionManager) InRoom(teamID, userID string) bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	_, ok := cm.rooms[teamID][userID]
	return ok
}

// RoomMembers returns the user IDs currently in the team room.
func (cm *ConnectionManager) RoomMembers(teamID string) []string {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	members := make([]string, 0, len(cm.rooms[teamID]))
	for userID := range cm.rooms[teamID] {
		members = append(members, userID)
	}
	return members
}

// RoomCount returns the number of rooms with at least one member.
func (cm *ConnectionManager) RoomCount() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.rooms)
}

// BroadcastToUser sends a message to a specific user
// Returns error if user is not online
func (cm *ConnectionManager) BroadcastToUser(userID string, message any) error {
	cm.mu.RLock()
	client, ok := cm.clients[userID]
	cm.mu.RUnlock()

	if !ok {
		return fmt.Errorf("user %s is not online", userID)
	}
	return deliver(client, message)
}

// BroadcastToRoom sends message to every online room member except the
// given user ID (pass "" to include everyone). It returns how many members
// it was queued for.
func (cm *ConnectionManager) BroadcastToRoom(teamID, except string, message any) int {
	cm.mu.RLock()
	targets := make([]*Client, 0, len(cm.rooms[teamID]))
	for userID := range cm.rooms[teamID] {
		if userID == except {
			continue
		}
		if client, ok := cm.clients[userID]; ok {
			targets = append(targets, client)
		}
	}
	cm.mu.RUnlock()

	sent := 0
	for _, client := range targets {
		if deliver(client, message) == nil {
			sent++
		}
	}
	return sent
}

func deliver(client *Client, message any) error {
	select {
	case client.Send <- message:
		return nil
	case <-client.Done:
		// Client disconnected while we were sending
		return fmt.Errorf("user %s disconnected", client.UserID)
	default:
		return fmt.Errorf("user %s message queue full", client.UserID)
	}
}
