package model

import "sarsaparilla/pkg/term"

// State is a pair (cellName, value): at any moment in a nession a cell has
// exactly one value (spec §3 "State"). Cell names are finite and declared
// by the configured initial states.
type State struct {
	cell  string
	value *term.Message
}

// NewState builds a State for the named cell.
func NewState(cell string, value *term.Message) State {
	return State{cell: cell, value: value}
}

// Cell returns the cell's name.
func (s State) Cell() string { return s.cell }

// Value returns the cell's current value.
func (s State) Value() *term.Message { return s.value }

// Equal reports structural equality of both the cell name and value.
func (s State) Equal(other State) bool {
	return s.cell == other.cell && s.value.Equal(other.value)
}

// String renders "cell(value)", the notation used throughout the spec's
// worked scenarios (e.g. "SD(init[])").
func (s State) String() string { return s.cell + "(" + s.value.String() + ")" }

// Substitute applies sigma to the state's value.
func (s State) Substitute(sigma term.SigmaMap) State {
	return State{cell: s.cell, value: sigma.Apply(s.value)}
}
