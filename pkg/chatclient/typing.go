package chatclient

import (
	"sort"
	"sync"
	"time"
)

const (
	defaultTypingWindow = 3 * time.Second
	defaultTypingIdle   = 2 * time.Second
)

// Typist is a peer currently composing a message.
type Typist struct {
	UserID      string
	DisplayName string
	LastSignal  time.Time
}

type typingEntry struct {
	typist Typist
	timer  Timer
	gen    uint64
}

// TypingState tracks which peers are typing. An entry expires when no
// refreshing signal arrives within the window, or at once on a stop signal.
type TypingState struct {
	mu       sync.Mutex
	clock    Clock
	window   time.Duration
	entries  map[string]*typingEntry
	seq      uint64
	onChange func()
}

// NewTypingState creates an empty typing state. onChange may be nil.
func NewTypingState(clock Clock, window time.Duration, onChange func()) *TypingState {
	if clock == nil {
		clock = realClock{}
	}
	if window <= 0 {
		window = defaultTypingWindow
	}
	return &TypingState{
		clock:    clock,
		window:   window,
		entries:  make(map[string]*typingEntry),
		onChange: onChange,
	}
}

// Signal creates or refreshes the entry for userID.
func (t *TypingState) Signal(userID, displayName string) {
	if displayName == "" {
		displayName = userID
	}

	t.mu.Lock()
	e, ok := t.entries[userID]
	if ok {
		e.timer.Stop()
	} else {
		e = &typingEntry{}
		t.entries[userID] = e
	}
	t.seq++
	e.gen = t.seq
	gen := e.gen
	e.typist = Typist{UserID: userID, DisplayName: displayName, LastSignal: t.clock.Now()}
	e.timer = t.clock.AfterFunc(t.window, func() { t.expire(userID, gen) })
	t.mu.Unlock()

	t.changed()
}

func (t *TypingState) expire(userID string, gen uint64) {
	t.mu.Lock()
	e, ok := t.entries[userID]
	if !ok || e.gen != gen {
		t.mu.Unlock()
		return
	}
	delete(t.entries, userID)
	t.mu.Unlock()

	t.changed()
}

// Stopped removes the entry for userID immediately.
func (t *TypingState) Stopped(userID string) {
	t.mu.Lock()
	e, ok := t.entries[userID]
	if !ok {
		t.mu.Unlock()
		return
	}
	e.timer.Stop()
	delete(t.entries, userID)
	t.mu.Unlock()

	t.changed()
}

// Clear drops every entry.
func (t *TypingState) Clear() {
	t.mu.Lock()
	had := len(t.entries) > 0
	for id, e := range t.entries {
		e.timer.Stop()
		delete(t.entries, id)
	}
	t.mu.Unlock()

	if had {
		t.changed()
	}
}

// Typists returns the current entries ordered by display name.
func (t *TypingState) Typists() []Typist {
	t.mu.Lock()
	out := make([]Typist, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e.typist)
	}
	t.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].DisplayName == out[j].DisplayName {
			return out[i].UserID < out[j].UserID
		}
		return out[i].DisplayName < out[j].DisplayName
	})
	return out
}

// Label renders the indicator text. More than one typist collapses into a
// single "multiple people" line.
func (t *TypingState) Label() string {
	typists := t.Typists()
	switch len(typists) {
	case 0:
		return ""
	case 1:
		return typists[0].DisplayName + " is typing..."
	default:
		return "Multiple people are typing..."
	}
}

func (t *TypingState) changed() {
	if t.onChange != nil {
		t.onChange()
	}
}

// Composer debounces the local user's typing signals: every keystroke emits
// "typing" and restarts an idle timer; when it fires, "stopped" is emitted.
type Composer struct {
	mu    sync.Mutex
	clock Clock
	idle  time.Duration
	emit  func(typing bool)
	timer Timer
	gen   uint64
}

// NewComposer creates a composer that reports through emit.
func NewComposer(clock Clock, idle time.Duration, emit func(typing bool)) *Composer {
	if clock == nil {
		clock = realClock{}
	}
	if idle <= 0 {
		idle = defaultTypingIdle
	}
	return &Composer{clock: clock, idle: idle, emit: emit}
}

// Keystroke emits a typing signal and restarts the idle timer.
func (c *Composer) Keystroke() {
	c.emit(true)

	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
	}
	c.gen++
	gen := c.gen
	c.timer = c.clock.AfterFunc(c.idle, func() { c.idleFired(gen) })
	c.mu.Unlock()
}

func (c *Composer) idleFired(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || c.timer == nil {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.mu.Unlock()

	c.emit(false)
}

// Stop cancels a running idle timer and emits the stopped signal early.
// It does nothing when the user is not typing.
func (c *Composer) Stop() {
	c.mu.Lock()
	if c.timer == nil {
		c.mu.Unlock()
		return
	}
	c.timer.Stop()
	c.timer = nil
	c.gen++
	c.mu.Unlock()

	c.emit(false)
}

// Active reports whether the idle timer is running.
func (c *Composer) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timer != nil
}
