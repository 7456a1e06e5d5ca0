package attack

import (
	"context"

	"github.com/google/uuid"

	"sarsaparilla/pkg/horn"
	"sarsaparilla/pkg/term"
)

// Search seeks a derivation of query against clauses (spec §4.5): a clause
// whose result unifies with query, every one of whose (substituted)
// premises is itself recursively derivable. Visited messages along the
// current recursion path are tracked to break cycles; resolved messages are
// memoized across sibling premises within one call.
func Search(ctx context.Context, query *term.Message, clauses []*horn.HornClause) (*Attack, bool) {
	return derive(ctx, query, clauses, map[string]*Attack{}, map[string]bool{})
}

// GlobalAttack checks derivability using only the globally-applicable
// clauses (rank -1, spec §4.4's "clauses without snapshot requirements"),
// i.e. before any nession is built. The Orchestrator (pkg/query) calls this
// first and short-circuits the whole search if it succeeds (spec §4.5's
// "before any nession is built ... the Orchestrator short-circuits").
func GlobalAttack(ctx context.Context, query *term.Message, clauses []*horn.HornClause) (*Attack, bool) {
	global := make([]*horn.HornClause, 0, len(clauses))
	for _, c := range clauses {
		if c.Rank() == -1 {
			global = append(global, c)
		}
	}
	return Search(ctx, query, global)
}

// derive is the recursive core: query is the message currently being
// derived, memo caches successful derivations by message text (reused
// across sibling premises), visiting holds messages on the current
// recursion path (a premise requiring its own ancestor's derivation fails
// rather than looping forever).
func derive(ctx context.Context, query *term.Message, clauses []*horn.HornClause, memo map[string]*Attack, visiting map[string]bool) (*Attack, bool) {
	key := query.String()
	if a, ok := memo[key]; ok {
		return a, true
	}
	if visiting[key] {
		return nil, false
	}
	visiting[key] = true
	defer delete(visiting, key)

	for _, c := range clauses {
		if ctx.Err() != nil {
			return nil, false
		}
		f := term.NewSigmaFactory()
		ok, _, _ := term.Unifiable(c.Result(), query, c.Guard(), term.NewGuard(), f)
		if !ok {
			continue
		}
		fwd, bwd := f.ResultPair()
		apply := func(m *term.Message) *term.Message { return fwd.Apply(bwd.Apply(m)) }

		premises := make(map[string]*Attack, len(c.Premises()))
		derived := true
		for _, p := range c.Premises() {
			pm := apply(p)
			child, ok := derive(ctx, pm, clauses, memo, visiting)
			if !ok {
				derived = false
				break
			}
			premises[pm.String()] = child
		}
		if !derived {
			continue
		}

		a := &Attack{
			id:       uuid.New(),
			query:    query,
			derived:  apply(c.Result()),
			clause:   c,
			sigma:    fwd,
			premises: premises,
		}
		memo[key] = a
		return a, true
	}
	return nil, false
}
