package model

import (
	"fmt"

	"sarsaparilla/pkg/term"
)

// ParseState parses a bare state expression "cellName(value)", e.g.
// "SD(init[])" — the stateExpr of spec §4.2's grammar used standalone via
// the §6 external interface parse_state.
func ParseState(input string) (State, error) {
	msg, err := term.ParseMessage(input)
	if err != nil {
		return State{}, err
	}
	if msg.Kind() != term.KindFunction {
		return State{}, term.NewParseError(input, 0, "state must have the form cell(value), got %s", msg.Kind())
	}
	if len(msg.Params()) != 1 {
		return State{}, term.NewParseError(input, 0, "state must carry exactly one value, got %d", len(msg.Params()))
	}
	return NewState(msg.Text(), msg.Params()[0]), nil
}

// eventPrefixes maps every accepted spelling (spec §4.2 grammar:
// 'k'|'know'|'n'|'new'|'m'|'make') to its EventKind.
var eventPrefixes = map[string]EventKind{
	"k": EventKnow, "know": EventKnow,
	"n": EventNew, "new": EventNew,
	"m": EventMake, "make": EventMake,
}

// ParseEvent parses a bare event "k(msg)" / "know(msg)" / "n(msg)" /
// "new(msg)" / "m(msg)" / "make(msg)" (spec §4.2 grammar, without the
// trailing "(label)" snapshot-reference suffix, which only makes sense
// inside a rule's premise list and is handled by pkg/rule).
func ParseEvent(input string) (*Event, error) {
	msg, err := term.ParseMessage(input)
	if err != nil {
		return nil, err
	}
	if msg.Kind() != term.KindFunction {
		return nil, term.NewParseError(input, 0, "event must have the form kind(msg), got %s", msg.Kind())
	}
	kind, ok := eventPrefixes[msg.Text()]
	if !ok {
		return nil, term.NewParseError(input, 0, "unknown event kind %q", msg.Text())
	}
	if len(msg.Params()) != 1 {
		return nil, term.NewParseError(input, 0, "event must carry exactly one message, got %d", len(msg.Params()))
	}
	payload := msg.Params()[0]
	switch kind {
	case EventKnow:
		return NewKnowEvent(payload), nil
	case EventMake:
		return NewMakeEvent(payload), nil
	case EventNew:
		ev, err := NewNewEvent(payload)
		if err != nil {
			return nil, fmt.Errorf("model: %w", err)
		}
		return ev, nil
	default:
		return nil, term.NewParseError(input, 0, "unreachable event kind")
	}
}
