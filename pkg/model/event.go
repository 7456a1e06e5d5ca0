// Package model implements the shared state/event data model that sits
// between the term algebra and the rule algebra: Event, State and
// Snapshot (spec §3).
package model

import (
	"fmt"

	"sarsaparilla/pkg/term"
)

// EventKind tags the three premise/result event variants.
type EventKind int

const (
	// EventKnow models the adversary already knowing a message.
	EventKnow EventKind = iota
	// EventNew models the introduction of a fresh Nonce.
	EventNew
	// EventMake models the construction of a message as a result.
	EventMake
)

func (k EventKind) String() string {
	switch k {
	case EventKnow:
		return "know"
	case EventNew:
		return "new"
	case EventMake:
		return "make"
	default:
		return "?"
	}
}

// Event is the immutable, structurally hashable tagged variant
// {Know, New, Make}(Message). New events always carry a Nonce.
type Event struct {
	kind EventKind
	msg  *term.Message
}

// NewKnowEvent builds a Know(msg) event.
func NewKnowEvent(msg *term.Message) *Event { return &Event{kind: EventKnow, msg: msg} }

// NewMakeEvent builds a Make(msg) event.
func NewMakeEvent(msg *term.Message) *Event { return &Event{kind: EventMake, msg: msg} }

// NewNewEvent builds a New(nonce) event. Returns an error if msg is not a
// Nonce, since spec §3 requires "New events carry a Nonce."
func NewNewEvent(msg *term.Message) (*Event, error) {
	if msg.Kind() != term.KindNonce {
		return nil, fmt.Errorf("model: New event requires a Nonce, got %s", msg.Kind())
	}
	return &Event{kind: EventNew, msg: msg}, nil
}

// Kind returns the event's tag.
func (e *Event) Kind() EventKind { return e.kind }

// Message returns the event's payload.
func (e *Event) Message() *term.Message { return e.msg }

// Equal reports structural equality.
func (e *Event) Equal(other *Event) bool {
	if other == nil {
		return false
	}
	return e.kind == other.kind && e.msg.Equal(other.msg)
}

// String renders the event using the spec's functor shorthand.
func (e *Event) String() string {
	prefix := map[EventKind]string{EventKnow: "k", EventNew: "n", EventMake: "m"}[e.kind]
	return prefix + "(" + e.msg.String() + ")"
}

// Substitute applies sigma to the event's message.
func (e *Event) Substitute(sigma term.SigmaMap) *Event {
	return &Event{kind: e.kind, msg: sigma.Apply(e.msg)}
}
