package horn

import (
	"container/heap"
	"context"
	"fmt"
	"strings"

	"sarsaparilla/pkg/term"
)

// Strategy selects how the elaborator orders its pending-clause queue.
type Strategy int

const (
	// PriorityByRank orders strictly by the §4.4 (rank, depth, premise-count)
	// key, always expanding the most generally-applicable clauses first.
	PriorityByRank Strategy = iota
	// BreadthFirst processes clauses in the order they were discovered,
	// ignoring rank/depth/premise-count.
	BreadthFirst
)

// Budget bounds the elaborator's fixed-point search (spec §4.4, §6).
type Budget struct {
	MaxMessageDepth int // default 20; <= 0 means unbounded
	MaxRank         int // clauses with rank above this are dropped; -1 means unbounded
	MaxSteps        int // dequeue budget; negative means unbounded, 0 means none
	Strategy        Strategy
}

// DefaultBudget matches spec §6's stated defaults.
func DefaultBudget() Budget {
	return Budget{MaxMessageDepth: 20, MaxRank: -1, MaxSteps: -1, Strategy: PriorityByRank}
}

// Elaborate computes the composition/factoring fixed point over initial,
// bounded by budget and ctx. It returns every surviving clause, one per
// alpha-equivalence class (keeping the smallest origin tree per class, spec
// §4.4), in no particular order.
func Elaborate(ctx context.Context, initial []*HornClause, budget Budget) []*HornClause {
	closed := map[string]*HornClause{}
	var order []string // insertion order, used by BreadthFirst via plain FIFO
	pq := &clauseQueue{}
	var fifo []*HornClause
	heap.Init(pq)

	consider := func(c *HornClause) {
		if budget.MaxMessageDepth > 0 && c.Depth() > budget.MaxMessageDepth {
			return
		}
		if budget.MaxRank >= 0 && c.rank >= 0 && c.rank > budget.MaxRank {
			return
		}
		key := canonicalKey(c)
		if existing, ok := closed[key]; ok {
			if c.OriginSize() >= existing.OriginSize() {
				return
			}
		} else {
			order = append(order, key)
		}
		closed[key] = c
		if budget.Strategy == BreadthFirst {
			fifo = append(fifo, c)
		} else {
			heap.Push(pq, c)
		}
	}

	for _, c := range initial {
		consider(c)
	}

	steps := 0
	for {
		if budget.MaxSteps >= 0 && steps >= budget.MaxSteps {
			break
		}
		if ctx.Err() != nil {
			break
		}
		var cur *HornClause
		switch budget.Strategy {
		case BreadthFirst:
			if len(fifo) == 0 {
				goto done
			}
			cur = fifo[0]
			fifo = fifo[1:]
		default:
			if pq.Len() == 0 {
				goto done
			}
			cur = heap.Pop(pq).(*HornClause)
		}
		steps++

		// cur may have been superseded by a smaller-origin clause in the
		// same equivalence class since it was enqueued; skip stale entries.
		if best, ok := closed[canonicalKey(cur)]; !ok || best.id != cur.id {
			continue
		}

		for _, nc := range anify(cur) {
			consider(nc)
		}
		for _, nc := range detuple(cur) {
			consider(nc)
		}
		if nc, ok := scrub(cur); ok {
			consider(nc)
		}

		for _, key := range order {
			other := closed[key]
			if other == nil {
				continue
			}
			for _, nc := range compose(renameApart(cur, nextRenameTag()), renameApart(other, nextRenameTag())) {
				consider(nc)
			}
			if other.id != cur.id {
				for _, nc := range compose(renameApart(other, nextRenameTag()), renameApart(cur, nextRenameTag())) {
					consider(nc)
				}
			}
		}
	}
done:

	out := make([]*HornClause, 0, len(closed))
	for _, key := range order {
		if c, ok := closed[key]; ok {
			out = append(out, c)
		}
	}
	return out
}

// canonicalKey renders c with its variables replaced by canonical,
// first-occurrence-ordered names, so that two alpha-equivalent clauses
// (differing only in variable names) collapse to the same dedup key. This
// is a conservative approximation: it does not also normalize premise
// order, so two clauses differing only in premise permutation are treated
// as distinct equivalence classes rather than merged — a safe
// over-approximation (it can only produce redundant, still-correct extra
// clauses, never drop a valid one).
func canonicalKey(c *HornClause) string {
	names := map[string]string{}
	next := 0
	var b strings.Builder

	var render func(m *term.Message) string
	render = func(m *term.Message) string {
		if m.Kind() == term.KindVariable {
			n, ok := names[m.Text()]
			if !ok {
				n = fmt.Sprintf("V%d", next)
				next++
				names[m.Text()] = n
			}
			return "?" + n
		}
		if len(m.Params()) == 0 {
			return m.String()
		}
		var pb strings.Builder
		pb.WriteString(m.Text())
		pb.WriteByte('(')
		for i, p := range m.Params() {
			if i > 0 {
				pb.WriteByte(',')
			}
			pb.WriteString(render(p))
		}
		pb.WriteByte(')')
		return pb.String()
	}

	for _, p := range c.premises {
		b.WriteString(render(p))
		b.WriteByte(';')
	}
	b.WriteString("->")
	b.WriteString(render(c.result))
	fmt.Fprintf(&b, "|rank=%d|", c.rank)

	for _, key := range sortStrings(c.guard.UnunifiedKeys()) {
		n, ok := names[key]
		if !ok {
			n = fmt.Sprintf("V%d", next)
			next++
			names[key] = n
		}
		for _, t := range c.guard.UnunifiedTerms(key) {
			b.WriteString("u:?")
			b.WriteString(n)
			b.WriteByte(':')
			b.WriteString(render(t))
			b.WriteByte('|')
		}
	}
	for _, key := range sortStrings(c.guard.UnunifiableKeys()) {
		n, ok := names[key]
		if !ok {
			n = fmt.Sprintf("V%d", next)
			next++
			names[key] = n
		}
		for _, t := range c.guard.UnunifiableTerms(key) {
			b.WriteString("x:?")
			b.WriteString(n)
			b.WriteByte(':')
			b.WriteString(render(t))
			b.WriteByte('|')
		}
	}
	return b.String()
}

func sortStrings(ss []string) []string {
	out := append([]string(nil), ss...)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}
