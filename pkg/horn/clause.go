// Package horn implements the Horn-clause elaborator: flattening a
// nession's applicable rules into HornClauses and computing their
// composition/factoring fixed point (spec §3 "HornClause", §4.4).
package horn

import (
	"strings"
	"sync/atomic"

	"sarsaparilla/pkg/term"
)

// SourceKind tags how a HornClause came to exist.
type SourceKind int

const (
	// SourceRule is a clause derived directly from a rule aligned to one
	// nession frame (or a globally-applicable rule, at rank -1).
	SourceRule SourceKind = iota
	SourceComposition
	SourceAnify
	SourceDetuple
	SourceScrub
)

func (k SourceKind) String() string {
	switch k {
	case SourceRule:
		return "rule"
	case SourceComposition:
		return "composition"
	case SourceAnify:
		return "anify"
	case SourceDetuple:
		return "detuple"
	case SourceScrub:
		return "scrub"
	default:
		return "?"
	}
}

// Source describes a HornClause's origin. RuleID is populated only for
// SourceRule; Parents holds the one or two clauses it was derived from
// otherwise (composition has two, the factoring operations have one).
type Source struct {
	Kind    SourceKind
	RuleID  int64
	Parents []*HornClause
}

// HornClause is the elaborator's flattened derived form: "{premise
// messages} -[guard, rank]-> result message" (spec §3). Rank is a
// non-negative frame index, or -1 meaning "always applicable."
type HornClause struct {
	id       int64
	premises []*term.Message
	guard    *term.Guard
	result   *term.Message
	rank     int
	source   Source
}

var clauseIDCounter int64

func nextClauseID() int64 { return atomic.AddInt64(&clauseIDCounter, 1) }

// NewClause builds a HornClause with a freshly assigned id.
func NewClause(premises []*term.Message, guard *term.Guard, result *term.Message, rank int, source Source) *HornClause {
	return &HornClause{
		id:       nextClauseID(),
		premises: append([]*term.Message(nil), premises...),
		guard:    guard,
		result:   result,
		rank:     rank,
		source:   source,
	}
}

func (c *HornClause) ID() int64               { return c.id }
func (c *HornClause) Premises() []*term.Message { return c.premises }
func (c *HornClause) Guard() *term.Guard        { return c.guard }
func (c *HornClause) Result() *term.Message     { return c.result }
func (c *HornClause) Rank() int                 { return c.rank }
func (c *HornClause) Source() Source            { return c.source }

// Depth is the maximum message depth across the clause's premises and
// result, the quantity bounded by the elaborator's max-message-depth
// budget.
func (c *HornClause) Depth() int {
	d := c.result.MaxDepth()
	for _, p := range c.premises {
		if p.MaxDepth() > d {
			d = p.MaxDepth()
		}
	}
	return d
}

// OriginSize counts the clause's derivation tree: 1 for a clause derived
// directly from a rule, or 1 plus every parent's OriginSize otherwise.
// Used by the elaborator's equivalence-class dedup, which keeps the
// clause with the smallest origin tree (spec §4.4).
func (c *HornClause) OriginSize() int {
	if c.source.Kind == SourceRule {
		return 1
	}
	size := 1
	for _, p := range c.source.Parents {
		size += p.OriginSize()
	}
	return size
}

// String renders the clause using the spec's "{p1, p2} -[guard, rank]-> r"
// shorthand.
func (c *HornClause) String() string {
	var b strings.Builder
	b.WriteString("{")
	for i, p := range c.premises {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.String())
	}
	b.WriteString("} -[")
	if !c.guard.IsEmpty() {
		b.WriteString(c.guard.String())
		b.WriteString(", ")
	}
	if c.rank == -1 {
		b.WriteString("*")
	} else {
		b.WriteString(itoa(c.rank))
	}
	b.WriteString("]-> ")
	b.WriteString(c.result.String())
	return b.String()
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	if neg {
		return "-" + string(digits)
	}
	return string(digits)
}

// combineRank implements spec §3's rank discipline: max(a, b) unless both
// are -1, in which case -1. Ordinary integer max already yields -1 when
// both operands are -1 (since max(-1,-1) == -1) and yields the other
// operand whenever exactly one is -1 (since -1 is less than every valid
// non-negative rank), so no special case is needed beyond plain max.
func combineRank(a, b int) int {
	if a > b {
		return a
	}
	return b
}
