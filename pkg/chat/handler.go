package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"hackmate/pkg/response"
	"hackmate/pkg/wire"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
)

// Upgrader turns an HTTP request into a websocket connection.
type Upgrader interface {
	Upgrade(w http.ResponseWriter, r *http.Request, responseHeader http.Header) (*websocket.Conn, error)
}

type userIDKey struct{}

// WithUserID attaches the authenticated user ID to ctx for HandleWebSocket.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// Handler wraps the connection manager and provides HTTP handlers
type Handler struct {
	manager  *ConnectionManager
	logger   *slog.Logger
	repo     MessageStore  // optional; if nil, persistence is skipped
	teams    TeamDirectory // optional; if nil, room membership stands in for team membership
	upgrader Upgrader
	limits   Limits
	metrics  *Metrics
	now      func() time.Time
}

// NewHandler creates a new chat handler
func NewHandler(manager *ConnectionManager, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Handler{
		manager: manager,
		logger:  logger.With("component", "chat"),
		upgrader: &websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		limits: DefaultLimits(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetRepository injects the message store for persistence
func (h *Handler) SetRepository(r MessageStore) {
	h.repo = r
}

// SetTeamDirectory injects team membership lookups.
func (h *Handler) SetTeamDirectory(d TeamDirectory) {
	h.teams = d
}

// SetWebSocketUpgrader replaces the default gorilla upgrader.
func (h *Handler) SetWebSocketUpgrader(u Upgrader) {
	h.upgrader = u
}

// SetAllowedOrigins restricts websocket upgrades to the given origins.
// An empty list or "*" allows any origin.
func (h *Handler) SetAllowedOrigins(origins []string) {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		if o == "*" {
			return
		}
		allowed[strings.TrimRight(o, "/")] = struct{}{}
	}
	if len(allowed) == 0 {
		return
	}
	h.upgrader = &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			_, ok := allowed[origin]
			return ok
		},
	}
}

// SetLimits overrides DefaultLimits. Zero fields keep their defaults.
func (h *Handler) SetLimits(l Limits) {
	d := DefaultLimits()
	if l.MaxMessageLength <= 0 {
		l.MaxMessageLength = d.MaxMessageLength
	}
	if l.Burst <= 0 {
		l.Burst = d.Burst
	}
	if l.HistoryLimit <= 0 {
		l.HistoryLimit = d.HistoryLimit
	}
	h.limits = l
}

// SetMetrics enables Prometheus counters.
func (h *Handler) SetMetrics(m *Metrics) {
	h.metrics = m
}

func (h *Handler) newLimiter() *rate.Limiter {
	if h.limits.RatePerSecond <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(h.limits.RatePerSecond), h.limits.Burst)
}

// HandleWebSocket handles the WebSocket upgrade and connection.
// Expects the user ID to be attached with WithUserID.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(userIDKey{}).(string)
	if !ok || userID == "" {
		http.Error(w, "unauthorized: user_id not found", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "user_id", userID, "error", err)
		return
	}

	client := h.manager.addClient(newClient(userID, conn, h.newLimiter()))
	h.logger.Info("user connected", "user_id", userID)
	h.touch(userID, "connect")

	go h.readLoop(client)
	go h.writeLoop(client)
}

// HandleWebSocketGin validates user_id from query, injects into context, and upgrades to WebSocket.
//
// @Summary Open chat websocket
// @Tags chat
// @Param user_id query string true "Connecting user UUID"
// @Failure 400 {object} response.APIResponse
// @Router /ws/chat [get]
func (h *Handler) HandleWebSocketGin(c *gin.Context) {
	uid := c.Query("user_id")
	if _, err := uuid.Parse(uid); err != nil {
		response.SendError(c, http.StatusBadRequest, "invalid user_id, must be UUID")
		return
	}
	h.HandleWebSocket(c.Writer, c.Request.WithContext(WithUserID(c.Request.Context(), uid)))
}

// IsUserOnline reports if a given user has an active WS connection
func (h *Handler) IsUserOnline(userID string) bool {
	return h.manager.IsOnline(userID)
}

func (h *Handler) touch(userID, reason string) {
	if h.repo == nil {
		return
	}
	if err := h.repo.UpdateLastActive(context.Background(), userID, h.now().Unix()); err != nil {
		h.logger.Warn("last_active_at update failed", "user_id", userID, "reason", reason, "error", err)
	}
}

// readLoop reads envelopes from the connection. Events are handled in
// arrival order so a sender's messages are persisted in the order sent.
func (h *Handler) readLoop(client *Client) {
	defer func() {
		h.manager.RemoveClient(client)
		client.Conn.Close()
		h.logger.Info("user disconnected", "user_id", client.UserID)
		h.touch(client.UserID, "disconnect")
	}()

	client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	client.Conn.SetPongHandler(func(string) error {
		client.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.logger.Warn("websocket read failed", "user_id", client.UserID, "error", err)
			}
			return
		}
		client.Conn.SetReadDeadline(time.Now().Add(pongWait))

		var env wire.Envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Event == "" {
			h.reject(client, "", "invalid message format", "malformed")
			continue
		}
		if !client.allow() {
			h.metrics.eventRateLimited()
			h.reject(client, correlationOf(env), "rate limit exceeded, slow down", "rate_limited")
			continue
		}
		h.handleEvent(client, env)
	}
}

// writeLoop writes envelopes to the WebSocket connection
func (h *Handler) writeLoop(client *Client) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		client.Conn.Close()
	}()

	for {
		select {
		case <-client.Done:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message := <-client.Send:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Conn.WriteJSON(message); err != nil {
				h.logger.Warn("websocket write failed", "user_id", client.UserID, "error", err)
				return
			}

		case <-ticker.C:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.logger.Debug("websocket ping failed", "user_id", client.UserID, "error", err)
				return
			}
		}
	}
}

func (h *Handler) handleEvent(client *Client, env wire.Envelope) {
	ctx := context.Background()

	switch env.Event {
	case wire.EventSendMessage, wire.EventSendTeamMessage:
		var msg wire.SendMessage
		if err := env.Decode(&msg); err != nil {
			h.reject(client, correlationOf(env), "invalid message format", "malformed")
			return
		}
		if env.Event == wire.EventSendTeamMessage {
			h.processTeamMessage(ctx, client, msg)
			return
		}
		h.processMessage(ctx, client, msg)

	case wire.EventJoinTeamRoom, wire.EventLeaveTeamRoom:
		var room wire.Room
		if err := env.Decode(&room); err != nil || room.TeamID == "" {
			h.reject(client, "", "teamId is required", "malformed")
			return
		}
		if env.Event == wire.EventJoinTeamRoom {
			h.joinRoom(ctx, client, room.TeamID)
			return
		}
		h.manager.LeaveRoom(room.TeamID, client.UserID)

	case wire.EventTypingInTeam, wire.EventStopTypingTeam, wire.EventTyping, wire.EventStopTyping:
		var t wire.Typing
		if err := env.Decode(&t); err != nil {
			return
		}
		h.relayTyping(client, env.Event, t)

	default:
		h.reject(client, "", "unknown event", "unknown_event")
	}
}

// processMessage validates, persists and forwards a direct message
func (h *Handler) processMessage(ctx context.Context, client *Client, msg wire.SendMessage) {
	if err := h.validateMessage(msg, client.UserID); err != nil {
		h.reject(client, msg.MessageID, err.Error(), "invalid")
		return
	}

	record, err := h.persist(ctx, NewMessage{
		SenderID:        client.UserID,
		ReceiverID:      msg.ReceiverID,
		Content:         strings.TrimSpace(msg.Message),
		ClientMessageID: msg.MessageID,
		SentAt:          h.now(),
	})
	if err != nil {
		h.logger.Error("message insert failed", "sender_id", client.UserID, "receiver_id", msg.ReceiverID, "error", err)
		h.reject(client, msg.MessageID, persistError(err), "persist")
		return
	}

	if h.manager.IsOnline(record.ReceiverID) {
		if err := h.manager.BroadcastToUser(record.ReceiverID, h.envelope(wire.EventNewMessage, record)); err != nil {
			// Persisted: the receiver picks it up from history.
			h.logger.Warn("message forward failed", "message_id", record.ID, "receiver_id", record.ReceiverID, "error", err)
		}
	}
	h.metrics.messageDelivered("direct")
	h.reply(client, wire.EventMessageSent, record)
}

// processTeamMessage validates membership, persists and fans out a team message.
// Every room member gets newTeamMessage, the sender included.
func (h *Handler) processTeamMessage(ctx context.Context, client *Client, msg wire.SendMessage) {
	teamID := msg.ReceiverID
	if err := h.validateBody(msg.Message); err != nil {
		h.reject(client, msg.MessageID, err.Error(), "invalid")
		return
	}
	if teamID == "" {
		h.reject(client, msg.MessageID, "receiverId (team) is required", "invalid")
		return
	}
	ok, err := h.isMember(ctx, teamID, client.UserID)
	if err != nil {
		h.logger.Error("team membership lookup failed", "team_id", teamID, "user_id", client.UserID, "error", err)
		h.reject(client, msg.MessageID, "failed to verify team membership", "persist")
		return
	}
	if !ok {
		h.reject(client, msg.MessageID, "you are not a member of this team", "forbidden")
		return
	}

	record, err := h.persist(ctx, NewMessage{
		SenderID:        client.UserID,
		TeamID:          teamID,
		Content:         strings.TrimSpace(msg.Message),
		ClientMessageID: msg.MessageID,
		SentAt:          h.now(),
	})
	if err != nil {
		h.logger.Error("team message insert failed", "sender_id", client.UserID, "team_id", teamID, "error", err)
		h.reject(client, msg.MessageID, persistError(err), "persist")
		return
	}

	h.manager.BroadcastToRoom(teamID, "", h.envelope(wire.EventNewTeamMessage, record))
	h.metrics.messageDelivered("team")
	h.reply(client, wire.EventTeamMessageSent, record)
}

func (h *Handler) persist(ctx context.Context, msg NewMessage) (wire.Message, error) {
	if h.repo != nil {
		return h.repo.SaveMessage(ctx, msg)
	}
	target := msg.ReceiverID
	if msg.TeamID != "" {
		target = msg.TeamID
	}
	return wire.Message{
		ID:         uuid.New().String(),
		SenderID:   msg.SenderID,
		ReceiverID: target,
		TeamID:     msg.TeamID,
		Message:    msg.Content,
		CreatedAt:  msg.SentAt,
		MessageID:  msg.ClientMessageID,
	}, nil
}

func persistError(err error) string {
	if errors.Is(err, ErrUnknownParticipant) {
		return "recipient does not exist"
	}
	return "failed to persist message"
}

func (h *Handler) joinRoom(ctx context.Context, client *Client, teamID string) {
	if h.teams != nil {
		ok, err := h.teams.IsMember(ctx, teamID, client.UserID)
		if err != nil {
			h.logger.Error("team membership lookup failed", "team_id", teamID, "user_id", client.UserID, "error", err)
			h.reject(client, "", "failed to verify team membership", "persist")
			return
		}
		if !ok {
			h.reject(client, "", "you are not a member of this team", "forbidden")
			return
		}
	}
	h.manager.JoinRoom(teamID, client.UserID)
	h.logger.Debug("joined team room", "team_id", teamID, "user_id", client.UserID)
	h.reply(client, wire.EventRoomJoined, wire.Room{UserID: client.UserID, TeamID: teamID})
}

func (h *Handler) isMember(ctx context.Context, teamID, userID string) (bool, error) {
	if h.teams == nil {
		return h.manager.InRoom(teamID, userID), nil
	}
	return h.teams.IsMember(ctx, teamID, userID)
}

// relayTyping forwards a typing signal. The typist's identity always comes
// from the connection.
func (h *Handler) relayTyping(client *Client, event string, t wire.Typing) {
	t.UserID = client.UserID

	switch event {
	case wire.EventTypingInTeam, wire.EventStopTypingTeam:
		if t.TeamID == "" || !h.manager.InRoom(t.TeamID, client.UserID) {
			return
		}
		out := wire.EventUserTypingInTeam
		if event == wire.EventStopTypingTeam {
			out = wire.EventUserStoppedInTeam
		}
		t.ReceiverID = ""
		h.manager.BroadcastToRoom(t.TeamID, client.UserID, h.envelope(out, t))

	default:
		if t.ReceiverID == "" || t.ReceiverID == client.UserID {
			return
		}
		out := wire.EventUserTyping
		if event == wire.EventStopTyping {
			out = wire.EventUserStoppedTyping
		}
		receiver := t.ReceiverID
		t.TeamID = ""
		if err := h.manager.BroadcastToUser(receiver, h.envelope(out, t)); err != nil {
			h.logger.Debug("typing relay dropped", "receiver_id", receiver, "error", err)
		}
	}
}

func (h *Handler) validateBody(body string) error {
	body = strings.TrimSpace(body)
	if body == "" {
		return fmt.Errorf("message content cannot be empty")
	}
	if utf8.RuneCountInString(body) > h.limits.MaxMessageLength {
		return fmt.Errorf("message content too long (max %d characters)", h.limits.MaxMessageLength)
	}
	return nil
}

// validateMessage validates a direct message before processing
func (h *Handler) validateMessage(msg wire.SendMessage, senderID string) error {
	if err := h.validateBody(msg.Message); err != nil {
		return err
	}
	if msg.ReceiverID == "" {
		return fmt.Errorf("receiverId is required")
	}
	if _, err := uuid.Parse(msg.ReceiverID); err != nil {
		return fmt.Errorf("receiverId must be a valid UUID")
	}
	if msg.ReceiverID == senderID {
		return fmt.Errorf("cannot send messages to yourself")
	}
	return nil
}

func (h *Handler) envelope(event string, payload any) wire.Envelope {
	env, err := wire.NewEnvelope(event, payload)
	if err != nil {
		h.logger.Error("encode envelope failed", "event", event, "error", err)
	}
	return env
}

// reply queues an envelope for client, waiting for room in its buffer.
func (h *Handler) reply(client *Client, event string, payload any) {
	select {
	case client.Send <- h.envelope(event, payload):
	case <-client.Done:
		// Client disconnected
	}
}

func (h *Handler) reject(client *Client, messageID, errMsg, reason string) {
	h.metrics.eventRejected(reason)
	h.reply(client, wire.EventMessageError, wire.MessageError{Error: errMsg, MessageID: messageID})
}

func correlationOf(env wire.Envelope) string {
	var peek struct {
		MessageID string `json:"messageId"`
	}
	if len(env.Data) == 0 || json.Unmarshal(env.Data, &peek) != nil {
		return ""
	}
	return peek.MessageID
}
