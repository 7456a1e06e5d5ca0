// Package term implements the message algebra of the Horn-clause core:
// the sealed Message sum, substitutions, guards and the two unification
// algorithms they support. Messages and guards are immutable once
// constructed and safe to share across goroutines without synchronization;
// SigmaFactory and Lexer are single-use builders that mutate in place.
package term

import (
	"hash/fnv"
	"strings"
)

// Kind distinguishes the five sealed message variants.
type Kind uint8

const (
	// KindName identifies a ground constant, written "name[]".
	KindName Kind = iota
	// KindNonce identifies a ground fresh value, written "[name]".
	KindNonce
	// KindVariable identifies a substitutable placeholder, written "name".
	KindVariable
	// KindFunction identifies an applied function symbol, written "f(a, b, ...)".
	KindFunction
	// KindTuple identifies a structural tuple, written "<a, b, ...>".
	KindTuple
)

func (k Kind) String() string {
	switch k {
	case KindName:
		return "Name"
	case KindNonce:
		return "Nonce"
	case KindVariable:
		return "Variable"
	case KindFunction:
		return "Function"
	case KindTuple:
		return "Tuple"
	default:
		return "Unknown"
	}
}

// tupleFunctor is the reserved function name backing the structural Tuple
// variant; tuples are functions in every way except their surface notation.
const tupleFunctor = "·tuple·"

// Message is the sealed term of the message algebra. A Message is
// immutable once built; every accessor is a pure pattern match on kind.
// The zero value is not valid; always use one of the New* constructors.
type Message struct {
	kind   Kind
	text   string
	params []*Message

	hash  uint64
	depth int
}

// NewName builds a ground constant, "text[]".
func NewName(text string) *Message { return build(KindName, text, nil) }

// NewNonce builds a ground fresh value, "[text]".
func NewNonce(text string) *Message { return build(KindNonce, text, nil) }

// NewVariable builds a substitutable placeholder, "text".
func NewVariable(text string) *Message { return build(KindVariable, text, nil) }

// NewFunction builds an applied function symbol over an ordered parameter
// sequence.
func NewFunction(text string, params ...*Message) *Message {
	return build(KindFunction, text, append([]*Message(nil), params...))
}

// NewTuple builds a structural tuple over an ordered member sequence.
// Tuples are represented internally as functions over the reserved
// tupleFunctor name, so arity and head comparisons treat them uniformly.
func NewTuple(members ...*Message) *Message {
	return build(KindTuple, tupleFunctor, append([]*Message(nil), members...))
}

func build(k Kind, text string, params []*Message) *Message {
	m := &Message{kind: k, text: text, params: params}
	m.hash = computeHash(k, text, params)
	m.depth = computeDepth(params)
	return m
}

func computeHash(k Kind, text string, params []*Message) uint64 {
	h := fnv.New64a()
	h.Write([]byte{byte(k)})
	h.Write([]byte(text))
	for _, p := range params {
		var buf [8]byte
		ph := p.hash
		for i := 0; i < 8; i++ {
			buf[i] = byte(ph)
			ph >>= 8
		}
		h.Write(buf[:])
	}
	return h.Sum64()
}

func computeDepth(params []*Message) int {
	max := 0
	for _, p := range params {
		if p.depth > max {
			max = p.depth
		}
	}
	return max + 1
}

// Kind returns the message's sealed variant.
func (m *Message) Kind() Kind { return m.kind }

// Text returns the variant's textual payload: the constant/nonce/variable
// name, or the function/tuple head (the reserved tupleFunctor for tuples).
func (m *Message) Text() string { return m.text }

// Params returns the ordered parameter sequence of a Function or the
// member sequence of a Tuple. Nil for Name, Nonce and Variable.
func (m *Message) Params() []*Message { return m.params }

// Hash returns the cached structural hash.
func (m *Message) Hash() uint64 { return m.hash }

// MaxDepth returns the cached maximum nesting depth; leaves have depth 1.
func (m *Message) MaxDepth() int { return m.depth }

// IsTuple reports whether m is the structural Tuple variant.
func (m *Message) IsTuple() bool { return m.kind == KindTuple }

// Arity returns len(Params()); zero for the three leaf kinds.
func (m *Message) Arity() int { return len(m.params) }

// String renders m using the spec's surface notation.
func (m *Message) String() string {
	switch m.kind {
	case KindName:
		return m.text + "[]"
	case KindNonce:
		return "[" + m.text + "]"
	case KindVariable:
		return m.text
	case KindFunction:
		return m.text + "(" + joinMessages(m.params) + ")"
	case KindTuple:
		return "<" + joinMessages(m.params) + ">"
	default:
		return "?"
	}
}

func joinMessages(ms []*Message) string {
	parts := make([]string, len(ms))
	for i, p := range ms {
		parts[i] = p.String()
	}
	return strings.Join(parts, ", ")
}

// Equal reports structural equality. Two messages are equal iff they share
// kind, text and pairwise-equal params; variable names are compared
// literally (callers that need alpha-equivalence use rule.AlphaEqual).
func (m *Message) Equal(other *Message) bool {
	if m == other {
		return true
	}
	if other == nil {
		return false
	}
	if m.hash != other.hash || m.kind != other.kind || m.text != other.text {
		return false
	}
	if len(m.params) != len(other.params) {
		return false
	}
	for i := range m.params {
		if !m.params[i].Equal(other.params[i]) {
			return false
		}
	}
	return true
}

// ContainsVariables reports whether m or any subterm is a Variable.
func (m *Message) ContainsVariables() bool {
	if m.kind == KindVariable {
		return true
	}
	for _, p := range m.params {
		if p.ContainsVariables() {
			return true
		}
	}
	return false
}

// ContainsSubterm reports whether other occurs as m itself or as a
// (possibly deeply nested) parameter of m.
func (m *Message) ContainsSubterm(other *Message) bool {
	if m.Equal(other) {
		return true
	}
	for _, p := range m.params {
		if p.ContainsSubterm(other) {
			return true
		}
	}
	return false
}

// CollectVariables gathers every Variable subterm into set, keyed by
// variable name, so that repeated occurrences of the same variable collapse
// to a single entry.
func (m *Message) CollectVariables(set map[string]*Message) {
	if m.kind == KindVariable {
		set[m.text] = m
		return
	}
	for _, p := range m.params {
		p.CollectVariables(set)
	}
}

// Variables is a convenience wrapper over CollectVariables returning a
// fresh set.
func (m *Message) Variables() map[string]*Message {
	set := make(map[string]*Message)
	m.CollectVariables(set)
	return set
}

// Substitute applies sigma structurally, short-circuiting to m itself when
// m has no variables (a pure, allocation-free fast path exercised heavily
// by the elaborator's composition loop).
func (m *Message) Substitute(sigma SigmaMap) *Message {
	if len(sigma) == 0 || !m.ContainsVariables() {
		return m
	}
	switch m.kind {
	case KindVariable:
		if img, ok := sigma[m.text]; ok {
			return img
		}
		return m
	case KindFunction, KindTuple:
		newParams := make([]*Message, len(m.params))
		changed := false
		for i, p := range m.params {
			np := p.Substitute(sigma)
			newParams[i] = np
			if np != p {
				changed = true
			}
		}
		if !changed {
			return m
		}
		return build(m.kind, m.text, newParams)
	default:
		return m
	}
}
