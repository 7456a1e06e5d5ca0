package term

import "fmt"

// ParseError is a position-annotated failure parsing a message, guard,
// state or event from text (spec §7 "ParseError"). Position is a byte
// offset into the original input.
type ParseError struct {
	Position int
	Input    string
	Message  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at %d: %s (in %q)", e.Position, e.Message, e.Input)
}

// NewParseError builds a ParseError anchored at pos within input.
func NewParseError(input string, pos int, format string, args ...any) *ParseError {
	return &ParseError{Position: pos, Input: input, Message: fmt.Sprintf(format, args...)}
}
