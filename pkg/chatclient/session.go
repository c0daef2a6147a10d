package chatclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"hackmate/pkg/wire"
)

const (
	defaultPendingTimeout = 15 * time.Second
	requestTimeout        = 5 * time.Second
)

// Identity is the local user of a session.
type Identity struct {
	ID   string
	Name string
}

// UpdateKind tells what changed in an Update.
type UpdateKind int

const (
	UpdateMessages UpdateKind = iota
	UpdateTyping
	UpdateNotice
)

// Update is delivered to Options.OnUpdate whenever the session changes.
type Update struct {
	Kind   UpdateKind
	Target Target
	Notice string
}

// Options tune a Session. Zero values pick defaults.
type Options struct {
	Clock  Clock
	Logger *slog.Logger
	// TypingWindow is how long an inbound typing signal stays visible.
	TypingWindow time.Duration
	// TypingIdle is how long after the last keystroke "stopped" is emitted.
	TypingIdle time.Duration
	// PendingTimeout moves unacknowledged sends to failed. Negative disables.
	PendingTimeout time.Duration
	OnUpdate       func(Update)
}

// conversation owns its store and typing state. Handlers registered for a
// conversation only ever write to those, so a handler still running after a
// switch touches orphaned state and never the new conversation's.
type conversation struct {
	target Target
	store  *Store
	typing *TypingState
	offs   []func()
	timers map[string]Timer
}

// Session is one chat surface: it holds the active conversation and typing
// state and switches them when the target changes. The transport is shared
// and outlives the session's conversations.
type Session struct {
	self      Identity
	transport Transport
	api       API
	clock     Clock
	logger    *slog.Logger
	opts      Options

	composer *Composer

	mu       sync.Mutex
	active   *conversation
	connOffs []func()
}

// NewSession creates a session for self on a shared transport.
func NewSession(self Identity, transport Transport, api API, opts Options) *Session {
	if opts.Clock == nil {
		opts.Clock = realClock{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.PendingTimeout == 0 {
		opts.PendingTimeout = defaultPendingTimeout
	}

	s := &Session{
		self:      self,
		transport: transport,
		api:       api,
		clock:     opts.Clock,
		logger:    opts.Logger.With("user_id", self.ID),
		opts:      opts,
	}
	s.composer = NewComposer(opts.Clock, opts.TypingIdle, s.emitTyping)

	s.connOffs = []func(){
		transport.On(EventDisconnected, func(json.RawMessage) {
			s.notify(UpdateNotice, "connection lost, reconnecting")
		}),
		transport.On(EventConnected, func(json.RawMessage) {
			if _, ok := s.Active(); ok {
				go s.resync()
			}
		}),
		transport.On(EventReconnectFailed, func(json.RawMessage) {
			s.notify(UpdateNotice, "could not reconnect to chat server")
		}),
	}
	return s
}

// Active returns the target of the active conversation.
func (s *Session) Active() (Target, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return Target{}, false
	}
	return s.active.target, true
}

func (s *Session) current() *conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// activeStore returns the active conversation's store, or an empty one.
func (s *Session) activeStore() *Store {
	if conv := s.current(); conv != nil {
		return conv.store
	}
	return NewStore()
}

func (s *Session) isActive(conv *conversation) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active == conv
}

// Activate makes target the active conversation. The previous conversation
// is torn down first, a fresh store is created, listeners scoped to target
// are registered and history is fetched. A history failure leaves
// the store empty; the conversation stays active and the error is returned.
func (s *Session) Activate(ctx context.Context, target Target) error {
	if strings.TrimSpace(target.ID) == "" {
		return ErrNoConversation
	}
	s.Deactivate()

	conv := &conversation{
		target: target,
		store:  NewStore(),
		typing: NewTypingState(s.clock, s.opts.TypingWindow, func() { s.notify(UpdateTyping, "") }),
		timers: make(map[string]Timer),
	}

	switch target.Kind {
	case KindTeam:
		conv.offs = []func(){
			s.transport.On(wire.EventNewTeamMessage, func(d json.RawMessage) { s.onMessage(conv, d, true) }),
			s.transport.On(wire.EventTeamMessageSent, func(d json.RawMessage) { s.onMessage(conv, d, false) }),
			s.transport.On(wire.EventMessageError, func(d json.RawMessage) { s.onError(conv, d) }),
			s.transport.On(wire.EventUserTypingInTeam, func(d json.RawMessage) { s.onTyping(conv, d, true) }),
			s.transport.On(wire.EventUserStoppedInTeam, func(d json.RawMessage) { s.onTyping(conv, d, false) }),
		}
	default:
		conv.offs = []func(){
			s.transport.On(wire.EventNewMessage, func(d json.RawMessage) { s.onMessage(conv, d, true) }),
			s.transport.On(wire.EventMessageSent, func(d json.RawMessage) { s.onMessage(conv, d, false) }),
			s.transport.On(wire.EventMessageError, func(d json.RawMessage) { s.onError(conv, d) }),
			s.transport.On(wire.EventUserTyping, func(d json.RawMessage) { s.onTyping(conv, d, true) }),
			s.transport.On(wire.EventUserStoppedTyping, func(d json.RawMessage) { s.onTyping(conv, d, false) }),
		}
	}

	s.mu.Lock()
	s.active = conv
	s.mu.Unlock()
	s.logger.Debug("conversation activated", "target", target.String())

	if target.Kind == KindTeam {
		if err := s.joinRoom(target.ID); err != nil {
			s.logger.Warn("join team room failed", "team_id", target.ID, "error", err)
			s.notify(UpdateNotice, "could not join team chat, retrying when reconnected")
		}
	}

	history, err := s.api.History(ctx, s.self.ID, target)
	if err != nil {
		s.logger.Warn("history fetch failed", "target", target.String(), "error", err)
		s.notify(UpdateNotice, "could not load message history")
		return fmt.Errorf("activate %s: %w", target, err)
	}
	if !s.isActive(conv) {
		return nil
	}

	// Entries that arrived while history was in flight survive the load
	// unless history already holds their confirmation.
	for _, id := range conv.store.MergeHistory(s.filter(target, history)) {
		s.disarmPending(conv, id)
	}
	s.notify(UpdateMessages, "")

	go s.markRead(target)
	return nil
}

// Deactivate tears down the active conversation: listeners are removed,
// pending timers stopped, typing state cleared and, for team chats, the
// room is left. Sends still in flight are not cancelled; their late
// acknowledgments are simply no longer heard.
func (s *Session) Deactivate() {
	conv := s.current()
	if conv == nil {
		return
	}
	s.composer.Stop()

	s.mu.Lock()
	s.active = nil
	for _, t := range conv.timers {
		t.Stop()
	}
	conv.timers = nil
	s.mu.Unlock()

	for _, off := range conv.offs {
		off()
	}
	if conv.target.Kind == KindTeam {
		if err := s.leaveRoom(conv.target.ID); err != nil {
			s.logger.Debug("leave team room failed", "team_id", conv.target.ID, "error", err)
		}
	}
	conv.typing.Clear()
	s.logger.Debug("conversation deactivated", "target", conv.target.String())
}

// Close deactivates the session and removes its connection listeners. The
// transport itself is left open for other surfaces.
func (s *Session) Close() {
	s.Deactivate()
	s.mu.Lock()
	offs := s.connOffs
	s.connOffs = nil
	s.mu.Unlock()
	for _, off := range offs {
		off()
	}
}

// Send validates body, inserts an optimistic entry and emits it. Whitespace
// only bodies are rejected without touching the store or the network.
func (s *Session) Send(body string) (Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return Message{}, ErrEmptyBody
	}
	conv := s.current()
	if conv == nil {
		return Message{}, ErrNoConversation
	}
	s.composer.Stop()
	return s.emitSend(conv, body)
}

// Retry removes a failed entry and sends its body again as a new attempt.
func (s *Session) Retry(id string) (Message, error) {
	conv := s.current()
	if conv == nil {
		return Message{}, ErrNoConversation
	}
	m, ok := conv.store.Get(id)
	if !ok {
		return Message{}, ErrUnknownMessage
	}
	if m.State != StateFailed {
		return Message{}, ErrNotRetryable
	}
	conv.store.Remove(id)
	return s.emitSend(conv, m.Body)
}

func (s *Session) emitSend(conv *conversation, body string) (Message, error) {
	m := Message{
		ID:         NewPlaceholderID(),
		SenderID:   s.self.ID,
		SenderName: s.self.Name,
		ReceiverID: conv.target.ID,
		Body:       body,
		CreatedAt:  s.clock.Now(),
	}
	event := wire.EventSendMessage
	if conv.target.Kind == KindTeam {
		m.TeamID = conv.target.ID
		event = wire.EventSendTeamMessage
	}
	m = conv.store.AddOptimistic(m)
	s.armPending(conv, m.ID)
	s.notify(UpdateMessages, "")

	err := s.transport.Emit(event, wire.SendMessage{
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Message:    body,
		MessageID:  m.ID,
	})
	if err != nil {
		s.disarmPending(conv, m.ID)
		conv.store.MarkFailed(m.ID)
		m.State = StateFailed
		s.logger.Warn("send failed", "message_id", m.ID, "error", err)
		s.notify(UpdateMessages, "")
		s.notify(UpdateNotice, "message not sent, tap retry")
		return m, fmt.Errorf("send message: %w", err)
	}
	return m, nil
}

func (s *Session) armPending(conv *conversation, id string) {
	if s.opts.PendingTimeout < 0 {
		return
	}
	timer := s.clock.AfterFunc(s.opts.PendingTimeout, func() {
		s.disarmPending(conv, id)
		if !s.isActive(conv) {
			return
		}
		if conv.store.MarkFailed(id) {
			s.logger.Warn("send timed out", "message_id", id)
			s.notify(UpdateMessages, "")
			s.notify(UpdateNotice, "message not delivered, tap retry")
		}
	})

	s.mu.Lock()
	if conv.timers != nil {
		conv.timers[id] = timer
	} else {
		timer.Stop()
	}
	s.mu.Unlock()
}

func (s *Session) disarmPending(conv *conversation, id string) {
	if id == "" {
		return
	}
	s.mu.Lock()
	if t, ok := conv.timers[id]; ok {
		t.Stop()
		delete(conv.timers, id)
	}
	s.mu.Unlock()
}

func (s *Session) onMessage(conv *conversation, data json.RawMessage, fromPeer bool) {
	if !s.isActive(conv) {
		return
	}
	var wm wire.Message
	if err := json.Unmarshal(data, &wm); err != nil {
		s.logger.Warn("dropping undecodable message", "error", err)
		return
	}
	m := FromWire(wm)
	if !s.belongs(conv.target, m) {
		s.logger.Debug("dropping message for another conversation", "message_id", m.ID, "target", conv.target.String())
		return
	}
	if !conv.store.AddIncoming(m) {
		return
	}
	s.disarmPending(conv, m.CorrelationID)
	if !s.isActive(conv) {
		return
	}
	s.notify(UpdateMessages, "")

	if fromPeer && m.SenderID != s.self.ID {
		conv.typing.Stopped(m.SenderID)
		go s.markRead(conv.target)
	}
}

func (s *Session) onError(conv *conversation, data json.RawMessage) {
	if !s.isActive(conv) {
		return
	}
	var me wire.MessageError
	if err := json.Unmarshal(data, &me); err != nil {
		s.logger.Warn("dropping undecodable message error", "error", err)
		return
	}
	if me.MessageID == "" {
		s.notify(UpdateNotice, me.Error)
		return
	}
	if !conv.store.MarkFailed(me.MessageID) {
		return
	}
	s.disarmPending(conv, me.MessageID)
	s.logger.Warn("send rejected", "message_id", me.MessageID, "error", me.Error)
	s.notify(UpdateMessages, "")
	s.notify(UpdateNotice, me.Error)
}

func (s *Session) onTyping(conv *conversation, data json.RawMessage, typing bool) {
	if !s.isActive(conv) {
		return
	}
	var t wire.Typing
	if err := json.Unmarshal(data, &t); err != nil {
		return
	}
	if t.UserID == "" || t.UserID == s.self.ID {
		return
	}
	switch conv.target.Kind {
	case KindTeam:
		if t.TeamID != conv.target.ID {
			return
		}
	default:
		if t.UserID != conv.target.ID {
			return
		}
	}
	if typing {
		conv.typing.Signal(t.UserID, t.UserName)
		return
	}
	conv.typing.Stopped(t.UserID)
}

// belongs reports whether m is part of the conversation with target.
func (s *Session) belongs(target Target, m Message) bool {
	if target.Kind == KindTeam {
		if m.TeamID != "" {
			return m.TeamID == target.ID
		}
		return m.ReceiverID == target.ID
	}
	if m.TeamID != "" {
		return false
	}
	return (m.SenderID == target.ID && m.ReceiverID == s.self.ID) ||
		(m.SenderID == s.self.ID && m.ReceiverID == target.ID)
}

func (s *Session) filter(target Target, history []Message) []Message {
	out := make([]Message, 0, len(history))
	for _, m := range history {
		if s.belongs(target, m) {
			out = append(out, m)
		}
	}
	return out
}

// Keystroke reports local typing activity in the composer.
func (s *Session) Keystroke() {
	if s.current() == nil {
		return
	}
	s.composer.Keystroke()
}

func (s *Session) emitTyping(typing bool) {
	conv := s.current()
	if conv == nil {
		return
	}
	var (
		event   string
		payload wire.Typing
	)
	payload.UserID = s.self.ID
	payload.UserName = s.self.Name
	switch conv.target.Kind {
	case KindTeam:
		payload.TeamID = conv.target.ID
		event = wire.EventStopTypingTeam
		if typing {
			event = wire.EventTypingInTeam
		}
	default:
		payload.ReceiverID = conv.target.ID
		event = wire.EventStopTyping
		if typing {
			event = wire.EventTyping
		}
	}
	if err := s.transport.Emit(event, payload); err != nil {
		s.logger.Debug("typing signal not sent", "event", event, "error", err)
	}
}

func (s *Session) joinRoom(teamID string) error {
	if j, ok := s.transport.(RoomJoiner); ok {
		return j.JoinRoom(s.self.ID, teamID)
	}
	return s.transport.Emit(wire.EventJoinTeamRoom, wire.Room{UserID: s.self.ID, TeamID: teamID})
}

func (s *Session) leaveRoom(teamID string) error {
	if j, ok := s.transport.(RoomJoiner); ok {
		return j.LeaveRoom(s.self.ID, teamID)
	}
	return s.transport.Emit(wire.EventLeaveTeamRoom, wire.Room{UserID: s.self.ID, TeamID: teamID})
}

// markRead is fire-and-forget: failures are logged and not retried.
func (s *Session) markRead(target Target) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	if err := s.api.MarkRead(ctx, s.self.ID, target); err != nil {
		s.logger.Warn("mark read failed", "target", target.String(), "error", err)
	}
}

// resync merges the server history into the store after a reconnect so
// messages missed while offline appear, and sends whose ack was lost get
// reconciled through their correlation identity.
func (s *Session) resync() {
	conv := s.current()
	if conv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	history, err := s.api.History(ctx, s.self.ID, conv.target)
	if err != nil {
		s.logger.Warn("resync failed", "target", conv.target.String(), "error", err)
		return
	}
	if !s.isActive(conv) {
		return
	}
	changed := false
	for _, m := range s.filter(conv.target, history) {
		if conv.store.AddIncoming(m) {
			s.disarmPending(conv, m.CorrelationID)
			changed = true
		}
	}
	if changed {
		s.notify(UpdateMessages, "")
	}
}

// Report files a moderation report for a confirmed message.
func (s *Session) Report(ctx context.Context, messageID, reason, details string) error {
	m, ok := s.activeStore().Get(messageID)
	if !ok || m.State != StateConfirmed {
		return ErrUnknownMessage
	}
	return s.api.Report(ctx, Report{
		MessageID:  messageID,
		ReporterID: s.self.ID,
		Reason:     reason,
		Details:    details,
	})
}

// Messages returns the active conversation's entries in display order.
func (s *Session) Messages() []Message { return s.activeStore().Messages() }

// Typists returns the peers currently typing.
func (s *Session) Typists() []Typist {
	if conv := s.current(); conv != nil {
		return conv.typing.Typists()
	}
	return nil
}

// TypingLabel returns the typing indicator text.
func (s *Session) TypingLabel() string {
	if conv := s.current(); conv != nil {
		return conv.typing.Label()
	}
	return ""
}

func (s *Session) notify(kind UpdateKind, notice string) {
	if s.opts.OnUpdate == nil {
		return
	}
	target, _ := s.Active()
	s.opts.OnUpdate(Update{Kind: kind, Target: target, Notice: notice})
}
