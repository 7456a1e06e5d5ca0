// Package nession implements the bounded symbolic execution engine (spec
// §3 "Nession", §4.3): enumerating finite sequences of frames by combining
// state-transferring rules with an initial state, subject to a per-frame
// state-variable table and branch/frame-equivalence collapsing.
package nession

import (
	"sort"
	"strings"

	"github.com/google/uuid"

	"sarsaparilla/pkg/rule"
	"sarsaparilla/pkg/term"
)

// Frame is one committed step of a nession (spec §3 "Nession"): the cell
// values in force at that step, the state-consistent rules that apply
// there, and the transfer rule (if any) that produced the next frame.
type Frame struct {
	Index           int
	Cells           map[string]*term.Message
	ApplicableRules []*rule.Rule
	TransferRule    *rule.Rule
	// EntryPremises holds the instantiated premises of the transferring
	// rule that produced this frame from its predecessor (nil for frame
	// 0). A nession is one linear trace, so observing this frame's cell
	// values at all presupposes the adversary already met every earlier
	// transition's own knowledge requirement — pkg/horn folds these in as
	// additional premises of any clause that reads a snapshot at or after
	// this frame (see CumulativePremises).
	EntryPremises []*term.Message
}

func cloneCells(cells map[string]*term.Message) map[string]*term.Message {
	out := make(map[string]*term.Message, len(cells))
	for k, v := range cells {
		out[k] = v
	}
	return out
}

// cellsKey renders a frame's cell bindings canonically, used by frame
// equivalence collapsing.
func cellsKey(cells map[string]*term.Message) string {
	names := make([]string, 0, len(cells))
	for k := range cells {
		names = append(names, k)
	}
	sort.Strings(names)
	var b strings.Builder
	for _, n := range names {
		b.WriteString(n)
		b.WriteByte('=')
		b.WriteString(cells[n].String())
		b.WriteByte(';')
	}
	return b.String()
}

// openPremiseKey renders the set of rule ids applicable in a frame
// canonically — the "open-premise set" of spec §4.3's frame-equivalence
// test, approximated here by which state-consistent rules have their
// snapshot-bound premises satisfied in this frame (a frame's full
// knowledge-derivability is the elaborator/attack-search's job, not the
// nession engine's; see DESIGN.md).
func openPremiseKey(rules []*rule.Rule) string {
	ids := make([]int64, len(rules))
	for i, r := range rules {
		ids[i] = r.ID()
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	var b strings.Builder
	for _, id := range ids {
		b.WriteString(itoa64(id))
		b.WriteByte(',')
	}
	return b.String()
}

func itoa64(n int64) string {
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

// Nession is a finalized, immutable sequence of frames (spec §3). Once
// produced by Engine.Run it is never mutated further.
type Nession struct {
	id     uuid.UUID
	label  string
	frames []*Frame
}

// ID returns the nession's stable identity, handed across the callback ABI
// (spec §4.6) so a consumer can correlate repeated deliveries.
func (n *Nession) ID() uuid.UUID { return n.id }

// Label returns the nession's serialized label ("Nession N", spec §4.3).
func (n *Nession) Label() string { return n.label }

// Frames returns the nession's frame sequence, index 0 first.
func (n *Nession) Frames() []*Frame { return n.frames }

// Depth returns the number of frames.
func (n *Nession) Depth() int { return len(n.frames) }

func (n *Nession) String() string {
	var b strings.Builder
	b.WriteString(n.label)
	b.WriteString(": ")
	for i, f := range n.frames {
		if i > 0 {
			b.WriteString(" -> ")
		}
		names := make([]string, 0, len(f.Cells))
		for k := range f.Cells {
			names = append(names, k)
		}
		sort.Strings(names)
		b.WriteByte('[')
		for j, k := range names {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString(k)
			b.WriteByte('=')
			b.WriteString(f.Cells[k].String())
		}
		b.WriteByte(']')
	}
	return b.String()
}
