package chatclient

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeClock fires timers only when Advance moves past them.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, t := range due {
		t.f()
	}
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

type emitted struct {
	event   string
	payload any
}

// fakeTransport records emits and lets tests deliver inbound events.
type fakeTransport struct {
	mu       sync.Mutex
	emits    []emitted
	handlers map[string]map[int]Handler
	next     int
	emitErr  error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{handlers: make(map[string]map[int]Handler)}
}

func (f *fakeTransport) Emit(event string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.emitErr != nil {
		return f.emitErr
	}
	f.emits = append(f.emits, emitted{event: event, payload: payload})
	return nil
}

func (f *fakeTransport) On(event string, h Handler) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	id := f.next
	if f.handlers[event] == nil {
		f.handlers[event] = make(map[int]Handler)
	}
	f.handlers[event][id] = h
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.handlers[event], id)
	}
}

func (f *fakeTransport) deliver(t *testing.T, event string, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	f.dispatch(event, raw)
}

// dispatch runs the handlers registered for event, the way the socket's
// reader goroutine does. Safe to call from any goroutine.
func (f *fakeTransport) dispatch(event string, raw json.RawMessage) {
	f.mu.Lock()
	hs := make([]Handler, 0, len(f.handlers[event]))
	for _, h := range f.handlers[event] {
		hs = append(hs, h)
	}
	f.mu.Unlock()

	for _, h := range hs {
		h(raw)
	}
}

func (f *fakeTransport) listeners(event string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handlers[event])
}

func (f *fakeTransport) emitsOf(event string) []any {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []any
	for _, e := range f.emits {
		if e.event == event {
			out = append(out, e.payload)
		}
	}
	return out
}

func (f *fakeTransport) emitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.emits)
}

// fakeAPI serves canned history and records read receipts and reports.
type fakeAPI struct {
	mu         sync.Mutex
	history    map[Target][]Message
	historyErr error
	// block, when set, holds History until it is closed. entered receives
	// once per call before blocking.
	block      chan struct{}
	entered    chan struct{}
	markReads  []Target
	reports    []Report
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{history: make(map[Target][]Message)}
}

func (a *fakeAPI) History(ctx context.Context, _ string, target Target) ([]Message, error) {
	a.mu.Lock()
	block, entered := a.block, a.entered
	a.mu.Unlock()
	if entered != nil {
		entered <- struct{}{}
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.historyErr != nil {
		return nil, a.historyErr
	}
	return append([]Message(nil), a.history[target]...), nil
}

func (a *fakeAPI) MarkRead(_ context.Context, _ string, target Target) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.markReads = append(a.markReads, target)
	return nil
}

func (a *fakeAPI) Report(_ context.Context, r Report) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reports = append(a.reports, r)
	return nil
}

func (a *fakeAPI) markReadCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.markReads)
}
