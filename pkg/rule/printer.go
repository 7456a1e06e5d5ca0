package rule

import (
	"fmt"
	"strings"
)

// String renders r using the spec §4.2 textual grammar, the inverse of
// ParseRule: ParseRule(r.String()) must reproduce a rule α-equivalent to
// r (spec §6/§8's round-trip law, exercised by TestRuleRoundTrip).
func (r *Rule) String() string {
	var b strings.Builder
	if r.userLabel != "" {
		fmt.Fprintf(&b, "%s = ", r.userLabel)
	}
	if !r.guard.IsEmpty() {
		b.WriteString(r.guard.String())
	}
	for i, p := range r.premises {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.Event.String())
		if p.SnapshotLabel != "" {
			fmt.Fprintf(&b, "(%s)", p.SnapshotLabel)
		}
	}
	b.WriteString(" -[")
	printSnapshots(&b, r)
	b.WriteString("]-> ")
	switch r.kind {
	case KindStateConsistent:
		if r.result != nil {
			b.WriteString(r.result.String())
		}
	case KindStateTransferring:
		for i, t := range r.transitions {
			if i > 0 {
				b.WriteString(" ")
			}
			fmt.Fprintf(&b, "<%s: %s>", t.Label, t.NewState.String())
		}
	}
	return b.String()
}

func printSnapshots(b *strings.Builder, r *Rule) {
	nodes := r.snapshots.All()
	for i, n := range nodes {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(b, "(%s, %s)", n.Condition.String(), n.Label)
	}
	var ords []string
	for _, n := range nodes {
		for _, pred := range n.LaterThan {
			ords = append(ords, fmt.Sprintf("%s =< %s", r.snapshots.Get(pred).Label, n.Label))
		}
	}
	if len(ords) > 0 {
		if len(nodes) > 0 {
			b.WriteString(" ")
		}
		fmt.Fprintf(b, ": {%s}", strings.Join(ords, ", "))
	}
}
