package horn

import (
	"fmt"
	"sync/atomic"

	"sarsaparilla/pkg/term"
)

var renameCounter int64

func nextRenameTag() string {
	return fmt.Sprintf("h%d", atomic.AddInt64(&renameCounter, 1))
}

// renameApart returns a structurally identical clause with every variable
// renamed to a fresh name tagged by tag, so that composing two independently
// constructed clauses can never accidentally capture a variable the two
// happen to share a name with (clause variables, unlike rule variables, do
// not carry their own scope once flattened out of a nession).
func renameApart(c *HornClause, tag string) *HornClause {
	vars := map[string]*term.Message{}
	for _, p := range c.premises {
		for name := range p.Variables() {
			vars[name] = nil
		}
	}
	for name := range c.result.Variables() {
		vars[name] = nil
	}
	for _, key := range c.guard.UnunifiedKeys() {
		vars[key] = nil
		for _, t := range c.guard.UnunifiedTerms(key) {
			for name := range t.Variables() {
				vars[name] = nil
			}
		}
	}
	for _, key := range c.guard.UnunifiableKeys() {
		vars[key] = nil
		for _, t := range c.guard.UnunifiableTerms(key) {
			for name := range t.Variables() {
				vars[name] = nil
			}
		}
	}
	if len(vars) == 0 {
		return c
	}
	sigma := make(term.SigmaMap, len(vars))
	for name := range vars {
		sigma[name] = term.NewVariable(name + "$" + tag)
	}

	newPremises := make([]*term.Message, len(c.premises))
	for i, p := range c.premises {
		newPremises[i] = sigma.Apply(p)
	}
	newResult := sigma.Apply(c.result)
	newGuard, ok := c.guard.Substitute(sigma)
	if !ok {
		// A pure renaming can never make a guard self-contradictory; if it
		// somehow did, the original guard was already unsatisfiable.
		newGuard = c.guard
	}
	return &HornClause{
		id:       nextClauseID(),
		premises: newPremises,
		guard:    newGuard,
		result:   newResult,
		rank:     c.rank,
		source:   c.source,
	}
}

// compose implements spec §4.4's composition rule: given C1: Γ1 -> r and
// C2: {..., p, ...} ∪ Γ2 -> s where p unifies with r, produces
// C3: σ(Γ1 ∪ (Γ2 - p)) -> σ(s). c1 and c2 must already be renamed apart from
// one another (the elaborator's driving loop is responsible for that); this
// function only attempts unification against c1's result and every premise
// of c2 in turn, producing one candidate clause per matching premise.
func compose(c1, c2 *HornClause) []*HornClause {
	var out []*HornClause
	for i, p := range c2.premises {
		f := term.NewSigmaFactory()
		ok, fg, bg := term.Unifiable(c1.result, p, c1.guard, c2.guard, f)
		if !ok {
			continue
		}
		fwd, bwd := f.ResultPair()
		apply := func(m *term.Message) *term.Message { return fwd.Apply(bwd.Apply(m)) }

		mergedGuard := fg.Union(bg)
		finalGuard, gok := mergedGuard.Substitute(fwd)
		if !gok {
			continue
		}
		finalGuard, gok = finalGuard.Substitute(bwd)
		if !gok {
			continue
		}
		if finalGuard.SelfContradictory() {
			continue
		}

		newPremises := make([]*term.Message, 0, len(c1.premises)+len(c2.premises)-1)
		for _, q := range c1.premises {
			newPremises = append(newPremises, apply(q))
		}
		for j, q := range c2.premises {
			if j == i {
				continue
			}
			newPremises = append(newPremises, apply(q))
		}
		newResult := apply(c2.result)
		rank := combineRank(c1.rank, c2.rank)

		out = append(out, NewClause(newPremises, finalGuard, newResult, rank, Source{
			Kind:    SourceComposition,
			Parents: []*HornClause{c1, c2},
		}))
	}
	return out
}

// anify produces, for each nonce that occurs in c's premises or result but
// never in its guard, a new clause with that nonce generalized to the
// distinguished Any name (spec §9 Open Question decision: scope limited to
// guard-free nonces, which by construction never changes the clause's
// rank since Anify never unifies or composes anything).
func anify(c *HornClause) []*HornClause {
	guardNonces := map[string]bool{}
	collectGuardNonces := func(keys []string, terms func(string) []*term.Message) {
		for _, k := range keys {
			for _, t := range terms(k) {
				collectNonces(t, guardNonces)
			}
		}
	}
	collectGuardNonces(c.guard.UnunifiedKeys(), c.guard.UnunifiedTerms)
	collectGuardNonces(c.guard.UnunifiableKeys(), c.guard.UnunifiableTerms)

	bodyNonces := map[string]bool{}
	for _, p := range c.premises {
		collectNonces(p, bodyNonces)
	}
	collectNonces(c.result, bodyNonces)

	var out []*HornClause
	for name := range bodyNonces {
		if guardNonces[name] {
			continue
		}
		// Anify generalizes by substituting every occurrence of the literal
		// nonce term with Any; since nonces are never variables, this is a
		// textual rewrite rather than a true substitution, implemented via
		// a one-off recursive rewrite rather than SigmaMap.Apply.
		any := term.NewName("Any")
		newPremises := make([]*term.Message, len(c.premises))
		for i, p := range c.premises {
			newPremises[i] = rewriteNonce(p, name, any)
		}
		newResult := rewriteNonce(c.result, name, any)
		out = append(out, NewClause(newPremises, c.guard, newResult, c.rank, Source{
			Kind:    SourceAnify,
			Parents: []*HornClause{c},
		}))
	}
	return out
}

func collectNonces(m *term.Message, set map[string]bool) {
	if m.Kind() == term.KindNonce {
		set[m.Text()] = true
		return
	}
	for _, p := range m.Params() {
		collectNonces(p, set)
	}
}

func rewriteNonce(m *term.Message, name string, any *term.Message) *term.Message {
	if m.Kind() == term.KindNonce && m.Text() == name {
		return any
	}
	if len(m.Params()) == 0 {
		return m
	}
	newParams := make([]*term.Message, len(m.Params()))
	changed := false
	for i, p := range m.Params() {
		np := rewriteNonce(p, name, any)
		newParams[i] = np
		if np != p {
			changed = true
		}
	}
	if !changed {
		return m
	}
	if m.Kind() == term.KindTuple {
		return term.NewTuple(newParams...)
	}
	return term.NewFunction(m.Text(), newParams...)
}

// detuple splits a tuple-shaped premise or result into its components,
// implementing the tupling axiom (knowing a tuple and knowing every one of
// its components are interchangeable): one new clause per tuple premise
// (the tuple premise flattened into its member messages) and one new clause
// per result tuple member (a separate, narrower clause asserting just that
// component is derivable).
func detuple(c *HornClause) []*HornClause {
	var out []*HornClause
	for i, p := range c.premises {
		if !p.IsTuple() {
			continue
		}
		newPremises := make([]*term.Message, 0, len(c.premises)-1+len(p.Params()))
		for j, q := range c.premises {
			if j == i {
				continue
			}
			newPremises = append(newPremises, q)
		}
		newPremises = append(newPremises, p.Params()...)
		out = append(out, NewClause(newPremises, c.guard, c.result, c.rank, Source{
			Kind:    SourceDetuple,
			Parents: []*HornClause{c},
		}))
	}
	if c.result.IsTuple() {
		for _, member := range c.result.Params() {
			out = append(out, NewClause(c.premises, c.guard, member, c.rank, Source{
				Kind:    SourceDetuple,
				Parents: []*HornClause{c},
			}))
		}
	}
	return out
}

// scrub removes a premise that is an exact structural duplicate of another
// premise already in the clause, the conservative case of "a premise
// implied by the others" (spec §4.4) that requires no further reasoning
// about the guard to justify.
func scrub(c *HornClause) (*HornClause, bool) {
	seen := make([]*term.Message, 0, len(c.premises))
	dropped := false
	for _, p := range c.premises {
		dup := false
		for _, s := range seen {
			if s.Equal(p) {
				dup = true
				break
			}
		}
		if dup {
			dropped = true
			continue
		}
		seen = append(seen, p)
	}
	if !dropped {
		return nil, false
	}
	return NewClause(seen, c.guard, c.result, c.rank, Source{
		Kind:    SourceScrub,
		Parents: []*HornClause{c},
	}), true
}
