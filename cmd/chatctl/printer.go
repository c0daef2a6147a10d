package main

import (
	"fmt"
	"io"
	"strings"

	"hackmate/pkg/chatclient"
)

// printer renders session state as an append-only transcript. It remembers
// what it printed so later updates only add new lines or state changes.
type printer struct {
	w      io.Writer
	self   string
	seen   map[string]chatclient.State
	typist string
}

func newPrinter(w io.Writer, self string) *printer {
	return &printer{w: w, self: self, seen: make(map[string]chatclient.State)}
}

func (p *printer) reset() {
	p.seen = make(map[string]chatclient.State)
	p.typist = ""
}

func (p *printer) messages(msgs []chatclient.Message) {
	for _, m := range msgs {
		prev, ok := p.seen[m.ID]
		if !ok && m.CorrelationID != "" && m.CorrelationID != m.ID {
			if prev, ok = p.seen[m.CorrelationID]; ok {
				delete(p.seen, m.CorrelationID)
			}
		}
		p.seen[m.ID] = m.State

		switch {
		case !ok:
			p.message(m)
		case prev != m.State:
			p.state(m)
		}
	}
}

func (p *printer) message(m chatclient.Message) {
	who := m.SenderName
	if m.SenderID == p.self {
		who = "you"
	} else if who == "" {
		who = shortID(m.SenderID)
	}
	line := fmt.Sprintf("[%s] %s: %s", m.CreatedAt.Local().Format("15:04"), who, m.Body)
	if m.State != chatclient.StateConfirmed {
		line += fmt.Sprintf("  (%s %s)", m.State, shortID(m.ID))
	} else {
		line += "  #" + shortID(m.ID)
	}
	fmt.Fprintln(p.w, line)
}

func (p *printer) state(m chatclient.Message) {
	switch m.State {
	case chatclient.StateConfirmed:
		fmt.Fprintf(p.w, "  -> sent #%s\n", shortID(m.ID))
	case chatclient.StateFailed:
		fmt.Fprintf(p.w, "  -> failed, /retry %s\n", shortID(m.ID))
	default:
		fmt.Fprintf(p.w, "  -> %s %s\n", m.State, shortID(m.ID))
	}
}

func (p *printer) typing(label string) {
	if label == p.typist {
		return
	}
	p.typist = label
	if label != "" {
		fmt.Fprintln(p.w, "  ... "+label)
	}
}

func (p *printer) notice(text string) {
	fmt.Fprintln(p.w, "! "+text)
}

// shortID keeps enough of an id to type it back: 8 characters, plus the
// placeholder prefix when present.
func shortID(id string) string {
	rest, placeholder := strings.CutPrefix(id, "tmp-")
	if len(rest) > 8 {
		rest = rest[:8]
	}
	if placeholder {
		return "tmp-" + rest
	}
	return rest
}
