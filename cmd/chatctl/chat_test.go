package main

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"hackmate/pkg/chatclient"
)

const (
	selfID = "5f0c7c1e-1f2a-4c3b-9d4e-6a7b8c9d0e1f"
	peerID = "9a8b7c6d-5e4f-4a3b-8c2d-1e0f9a8b7c6d"
)

type mockConversation struct {
	mock.Mock
	msgs []chatclient.Message
}

func (m *mockConversation) Activate(ctx context.Context, target chatclient.Target) error {
	return m.Called(ctx, target).Error(0)
}

func (m *mockConversation) Keystroke() { m.Called() }

func (m *mockConversation) Send(body string) (chatclient.Message, error) {
	args := m.Called(body)
	return args.Get(0).(chatclient.Message), args.Error(1)
}

func (m *mockConversation) Retry(id string) (chatclient.Message, error) {
	args := m.Called(id)
	return args.Get(0).(chatclient.Message), args.Error(1)
}

func (m *mockConversation) Report(ctx context.Context, messageID, reason, details string) error {
	return m.Called(ctx, messageID, reason, details).Error(0)
}

func (m *mockConversation) Messages() []chatclient.Message { return m.msgs }

func (m *mockConversation) TypingLabel() string { return "" }

func TestParseLine(t *testing.T) {
	cases := []struct {
		line string
		name string
		args []string
	}{
		{"   ", "", nil},
		{"hello there", "send", []string{"hello there"}},
		{"/retry tmp-1234", "/retry", []string{"tmp-1234"}},
		{"/REPORT abc spam  very rude ", "/report", []string{"abc", "spam", "very", "rude"}},
		{"/quit", "/quit", []string{}},
	}
	for _, tc := range cases {
		name, args := parseLine(tc.line)
		require.Equal(t, tc.name, name, tc.line)
		require.Equal(t, tc.args, args, tc.line)
	}
}

func TestParseTarget(t *testing.T) {
	target, err := parseTarget([]string{"team", "t1"})
	require.NoError(t, err)
	require.Equal(t, chatclient.Team("t1"), target)

	target, err = parseTarget([]string{"dm", peerID})
	require.NoError(t, err)
	require.Equal(t, chatclient.Direct(peerID), target)

	_, err = parseTarget([]string{"group", "x"})
	require.Error(t, err)
	_, err = parseTarget([]string{"dm"})
	require.Error(t, err)
}

func TestSocketURL(t *testing.T) {
	cases := map[string]string{
		"http://localhost:8080":       "ws://localhost:8080/ws/chat",
		"https://chat.example.com/":   "wss://chat.example.com/ws/chat",
		"https://example.com/api?x=1": "wss://example.com/api/ws/chat",
		"ws://10.0.0.1:9000":          "ws://10.0.0.1:9000/ws/chat",
	}
	for in, want := range cases {
		got, err := socketURL(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}

	_, err := socketURL("ftp://example.com")
	require.Error(t, err)
}

func TestResolveID(t *testing.T) {
	msgs := []chatclient.Message{
		{ID: "abcdef01-0000-0000-0000-000000000000"},
		{ID: "abcdef02-0000-0000-0000-000000000000"},
		{ID: "tmp-77aa0000-0000-0000-0000-000000000000"},
	}

	id, err := resolveID(msgs, "abcdef02")
	require.NoError(t, err)
	require.Equal(t, msgs[1].ID, id)

	id, err = resolveID(msgs, "tmp-77aa")
	require.NoError(t, err)
	require.Equal(t, msgs[2].ID, id)

	_, err = resolveID(msgs, "abcdef")
	require.ErrorContains(t, err, "ambiguous")

	_, err = resolveID(msgs, "ffff")
	require.ErrorIs(t, err, chatclient.ErrUnknownMessage)
}

func TestShortID(t *testing.T) {
	require.Equal(t, "abcdef01", shortID("abcdef01-0000-0000-0000-000000000000"))
	require.Equal(t, "tmp-77aa0000", shortID("tmp-77aa0000-0000-0000-0000-000000000000"))
	require.Equal(t, "m1", shortID("m1"))
}

func TestPrinterTracksPlaceholderThroughConfirmation(t *testing.T) {
	var buf bytes.Buffer
	p := newPrinter(&buf, selfID)
	at := time.Date(2026, 3, 1, 12, 30, 0, 0, time.Local)

	pending := chatclient.Message{
		ID: "tmp-11112222-3333", SenderID: selfID, Body: "hi",
		CreatedAt: at, State: chatclient.StatePending, CorrelationID: "tmp-11112222-3333",
	}
	p.messages([]chatclient.Message{pending})
	require.Equal(t, "[12:30] you: hi  (pending tmp-11112222)\n", buf.String())

	buf.Reset()
	confirmed := pending
	confirmed.ID = "aaaabbbb-cccc"
	confirmed.State = chatclient.StateConfirmed
	p.messages([]chatclient.Message{confirmed})
	require.Equal(t, "  -> sent #aaaabbbb\n", buf.String())

	// Unchanged state prints nothing.
	buf.Reset()
	p.messages([]chatclient.Message{confirmed})
	require.Empty(t, buf.String())
}

func TestPrinterIncomingAndFailed(t *testing.T) {
	var buf bytes.Buffer
	p := newPrinter(&buf, selfID)
	at := time.Date(2026, 3, 1, 9, 5, 0, 0, time.Local)

	p.messages([]chatclient.Message{
		{ID: "m1", SenderID: peerID, SenderName: "Bob", Body: "yo", CreatedAt: at, State: chatclient.StateConfirmed},
		{ID: "m2", SenderID: peerID, Body: "anon", CreatedAt: at, State: chatclient.StateConfirmed},
	})
	require.Equal(t, "[09:05] Bob: yo  #m1\n[09:05] 9a8b7c6d: anon  #m2\n", buf.String())

	buf.Reset()
	p.messages([]chatclient.Message{{ID: "tmp-x", SenderID: selfID, Body: "b", CreatedAt: at, State: chatclient.StatePending}})
	buf.Reset()
	p.messages([]chatclient.Message{{ID: "tmp-x", SenderID: selfID, Body: "b", CreatedAt: at, State: chatclient.StateFailed}})
	require.Equal(t, "  -> failed, /retry tmp-x\n", buf.String())
}

func TestPrinterTyping(t *testing.T) {
	var buf bytes.Buffer
	p := newPrinter(&buf, selfID)

	p.typing("Bob is typing...")
	p.typing("Bob is typing...")
	p.typing("")
	require.Equal(t, "  ... Bob is typing...\n", buf.String())
}

func TestReplSendAndQuit(t *testing.T) {
	var buf bytes.Buffer
	conv := &mockConversation{}
	r := &repl{session: conv, out: newPrinter(&buf, selfID)}

	conv.On("Keystroke").Return().Twice()
	conv.On("Send", "hello").Return(chatclient.Message{}, nil).Once()
	require.False(t, r.handle(context.Background(), "hello"))

	conv.On("Send", "again").Return(chatclient.Message{}, chatclient.ErrNoConversation).Once()
	require.False(t, r.handle(context.Background(), "again"))
	require.Contains(t, buf.String(), "! send: ")

	require.True(t, r.handle(context.Background(), "/quit"))
	conv.AssertExpectations(t)
}

func TestReplRetryAndReport(t *testing.T) {
	var buf bytes.Buffer
	conv := &mockConversation{msgs: []chatclient.Message{
		{ID: "tmp-abcd1234-rest", State: chatclient.StateFailed},
		{ID: "ffee0011-rest", State: chatclient.StateConfirmed},
	}}
	r := &repl{session: conv, out: newPrinter(&buf, selfID)}
	ctx := context.Background()

	conv.On("Retry", "tmp-abcd1234-rest").Return(chatclient.Message{}, nil).Once()
	r.handle(ctx, "/retry tmp-abcd")

	r.handle(ctx, "/report ffee")
	require.Contains(t, buf.String(), "! usage: /report")

	conv.On("Report", ctx, "ffee0011-rest", "spam", "buy now").Return(nil).Once()
	r.handle(ctx, "/report ffee spam buy now")
	require.Contains(t, buf.String(), "! reported ffee0011")

	conv.On("Report", ctx, "ffee0011-rest", "other", "").Return(errors.New("api: 409 already reported")).Once()
	r.handle(ctx, "/report ffee other")
	require.Contains(t, buf.String(), "409 already reported")

	conv.AssertExpectations(t)
}

func TestReplSwitchActivatesTarget(t *testing.T) {
	var buf bytes.Buffer
	conv := &mockConversation{}
	r := &repl{session: conv, out: newPrinter(&buf, selfID)}
	ctx := context.Background()

	conv.On("Activate", ctx, chatclient.Team("t1")).Return(errors.New("boom")).Once()
	r.handle(ctx, "/switch team t1")

	require.Contains(t, buf.String(), "! opening team:t1")
	require.Contains(t, buf.String(), "! history unavailable: boom")
	conv.AssertExpectations(t)
}
