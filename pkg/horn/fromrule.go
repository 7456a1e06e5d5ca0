package horn

import (
	"sarsaparilla/pkg/nession"
	"sarsaparilla/pkg/rule"
	"sarsaparilla/pkg/term"
)

// FromRule flattens a state-consistent rule into a HornClause under sigma
// (the substitution binding its snapshot-condition variables to a concrete
// frame history, or the empty substitution for a globally-applicable
// rule), tagged with rank (spec §4.4: "the elaborator converts every
// state-consistent rule whose snapshots align with the nession into a
// HornClause tagged with the frame index as rank"). extraPremises are
// folded in verbatim (already substituted) ahead of r's own premises — see
// FromNession's use of nession.CumulativePremises. Returns nil if sigma
// makes the rule's guard self-contradictory, in which case the caller
// drops the clause (spec §7: "guard inconsistency at elaboration time
// causes the offending clause to be dropped, not a query failure").
func FromRule(r *rule.Rule, sigma term.SigmaMap, rank int, extraPremises ...*term.Message) *HornClause {
	guard, ok := r.Guard().Substitute(sigma)
	if !ok {
		return nil
	}
	premises := make([]*term.Message, 0, len(extraPremises)+len(r.Premises()))
	premises = append(premises, extraPremises...)
	for _, p := range r.Premises() {
		premises = append(premises, sigma.Apply(p.Event.Message()))
	}
	result := sigma.Apply(r.Result().Message())
	return NewClause(premises, guard, result, rank, Source{Kind: SourceRule, RuleID: r.ID()})
}

// GlobalClauses builds rank -1 clauses for every state-consistent rule in
// rules that carries no snapshot requirements (spec §4.4: "the initial
// clause set is augmented with the globally-applicable rules... at rank
// -1"). State-transferring rules have no result event to flatten into a
// clause result and are excluded.
func GlobalClauses(rules []*rule.Rule) []*HornClause {
	var out []*HornClause
	for _, r := range rules {
		if r.Kind() != rule.KindStateConsistent || !r.IsGlobal() {
			continue
		}
		if c := FromRule(r, term.EmptySigma(), -1); c != nil {
			out = append(out, c)
		}
	}
	return out
}

// FromNession builds the full per-nession clause seed set that Elaborate
// computes its fixed point over (spec §4.4): every state-consistent rule
// a frame lists as applicable becomes one clause per valid snapshot
// alignment at that frame's index, plus rules's globally-applicable rules
// at rank -1 (these never depend on n at all, but are always part of the
// seed set a query is checked against). "A rule alignable across a range
// of frames becomes one clause per frame" falls out naturally here: a rule
// listed as applicable in several of n's frames contributes one clause per
// such frame, each at that frame's own rank.
func FromNession(n *nession.Nession, rules []*rule.Rule) []*HornClause {
	out := GlobalClauses(rules)
	for _, f := range n.Frames() {
		extra := nession.CumulativePremises(n, f.Index)
		for _, r := range f.ApplicableRules {
			for _, sigma := range nession.AlignRule(n, f.Index, r, 0) {
				if c := FromRule(r, sigma, f.Index, extra...); c != nil {
					out = append(out, c)
				}
			}
		}
	}
	return out
}
