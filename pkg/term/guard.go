package term

import "strings"

// Guard is a pair of variable -> set-of-messages relations constraining
// which substitutions a rule or clause will accept: ununified ("~/>",
// syntactic inequality) and ununifiable ("=/=", unification impossibility).
// Guards are immutable; every mutator returns a new Guard.
type Guard struct {
	ununified   map[string][]*Message
	ununifiable map[string][]*Message
}

// NewGuard returns the empty (always-satisfied) guard.
func NewGuard() *Guard {
	return &Guard{ununified: map[string][]*Message{}, ununifiable: map[string][]*Message{}}
}

// IsEmpty reports whether the guard carries no constraints at all.
func (g *Guard) IsEmpty() bool {
	return len(g.ununified) == 0 && len(g.ununifiable) == 0
}

// WithUnunified returns a guard extended with the constraint that v's
// eventual image must not be structurally equal to t.
func (g *Guard) WithUnunified(v, t *Message) *Guard {
	return g.with(&g.ununified, v, t, true)
}

// WithUnunifiable returns a guard extended with the constraint that v's
// eventual image must not be unifiable with t.
func (g *Guard) WithUnunifiable(v, t *Message) *Guard {
	return g.with(&g.ununifiable, v, t, false)
}

func (g *Guard) with(which *map[string][]*Message, v, t *Message, asUnunified bool) *Guard {
	out := g.clone()
	var dst *map[string][]*Message
	if asUnunified {
		dst = &out.ununified
	} else {
		dst = &out.ununifiable
	}
	key := v.Text()
	(*dst)[key] = append(append([]*Message(nil), (*dst)[key]...), t)
	return out
}

func (g *Guard) clone() *Guard {
	out := &Guard{
		ununified:   make(map[string][]*Message, len(g.ununified)),
		ununifiable: make(map[string][]*Message, len(g.ununifiable)),
	}
	for k, v := range g.ununified {
		out.ununified[k] = append([]*Message(nil), v...)
	}
	for k, v := range g.ununifiable {
		out.ununifiable[k] = append([]*Message(nil), v...)
	}
	return out
}

// UnunifiedKeys returns the variable names carrying at least one
// ununified ("~/>") constraint, for callers (e.g. pkg/rule's
// alpha-equivalence check) that need to walk a guard's constraints
// without reaching into its unexported representation.
func (g *Guard) UnunifiedKeys() []string { return keysOf(g.ununified) }

// UnunifiedTerms returns the ununified constraint terms recorded for key.
func (g *Guard) UnunifiedTerms(key string) []*Message { return g.ununified[key] }

// UnunifiableKeys returns the variable names carrying at least one
// ununifiable ("=/=") constraint.
func (g *Guard) UnunifiableKeys() []string { return keysOf(g.ununifiable) }

// UnunifiableTerms returns the ununifiable constraint terms recorded for key.
func (g *Guard) UnunifiableTerms(key string) []*Message { return g.ununifiable[key] }

func keysOf(m map[string][]*Message) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

// CanUnify reports whether binding v to t is consistent with the guard:
// t must not equal any ununified image of v, and must not be unifiable
// with any ununifiable image of v.
func (g *Guard) CanUnify(v, t *Message) bool {
	key := v.Text()
	for _, u := range g.ununified[key] {
		if t.Equal(u) {
			return false
		}
	}
	for _, u := range g.ununifiable[key] {
		if CanonicallyUnifiable(t, u) {
			return false
		}
	}
	return true
}

// Satisfies reports whether sigma is consistent with g: for every (v, t)
// in sigma, CanUnify(v, t) must hold.
func (g *Guard) Satisfies(sigma SigmaMap) bool {
	for v, t := range sigma {
		if !g.CanUnify(NewVariable(v), t) {
			return false
		}
	}
	return true
}

// Substitute rewrites both sides of every constraint by sigma. It returns
// the rewritten guard and a bool that is false iff some constraint became
// statically unsatisfiable (e.g. a key's image now equals one of its own
// ununified terms) and must be treated as a GuardInconsistency by the
// caller (the rule or clause carrying this guard is dropped, never the
// query as a whole — see spec §7 policy).
func (g *Guard) Substitute(sigma SigmaMap) (*Guard, bool) {
	out := NewGuard()
	ok := true
	for key, terms := range g.ununified {
		newKeyMsg := sigma.Apply(NewVariable(key))
		for _, t := range terms {
			newT := sigma.Apply(t)
			if newKeyMsg.Kind() != KindVariable {
				// The constraint's subject is no longer a variable; it is
				// only still meaningful (and satisfiable) if the concrete
				// instance really differs from newT.
				if newKeyMsg.Equal(newT) {
					ok = false
				}
				continue
			}
			out.ununified[newKeyMsg.Text()] = append(out.ununified[newKeyMsg.Text()], newT)
		}
	}
	for key, terms := range g.ununifiable {
		newKeyMsg := sigma.Apply(NewVariable(key))
		for _, t := range terms {
			newT := sigma.Apply(t)
			if newKeyMsg.Kind() != KindVariable {
				if CanonicallyUnifiable(newKeyMsg, newT) {
					ok = false
				}
				continue
			}
			out.ununifiable[newKeyMsg.Text()] = append(out.ununifiable[newKeyMsg.Text()], newT)
		}
	}
	return out, ok
}

// Union merges two guards' constraint sets, used when composing two Horn
// clauses (spec §4.4): the composed clause's guard must honor both
// parents' constraints.
func (g *Guard) Union(other *Guard) *Guard {
	out := g.clone()
	for k, v := range other.ununified {
		out.ununified[k] = append(out.ununified[k], v...)
	}
	for k, v := range other.ununifiable {
		out.ununifiable[k] = append(out.ununifiable[k], v...)
	}
	return out
}

// SelfContradictory reports whether the guard can never be satisfied by
// any substitution, the GuardInconsistency case named in spec §7 (e.g.
// "v ~/> v": a variable constrained to differ from itself).
func (g *Guard) SelfContradictory() bool {
	for key, terms := range g.ununified {
		for _, t := range terms {
			if t.Kind() == KindVariable && t.Text() == key {
				return true
			}
		}
	}
	return false
}

// String renders the guard using the spec's "[a ~/> b, c =/= d]" notation.
func (g *Guard) String() string {
	var parts []string
	for k, terms := range g.ununified {
		for _, t := range terms {
			parts = append(parts, k+" ~/> "+t.String())
		}
	}
	for k, terms := range g.ununifiable {
		for _, t := range terms {
			parts = append(parts, k+" =/= "+t.String())
		}
	}
	if len(parts) == 0 {
		return "[]"
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
