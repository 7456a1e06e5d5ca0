package term

// UnifyTo performs one-directional unification: finds a substitution sigma
// (recorded into f) such that sigma(a) is structurally equal to b, refining
// only the variables occurring in a. It recurses structurally: function
// heads and arity, and tuple arity, must match; the only variables the
// recursion may bind are those on the a side. Returns false on arity
// mismatch, head mismatch, or guard violation.
func UnifyTo(a, b *Message, g *Guard, f *SigmaFactory) bool {
	if a.Kind() == KindVariable {
		if existing, ok := f.fwd[a.Text()]; ok {
			return existing.Equal(b)
		}
		if !g.CanUnify(a, b) {
			return false
		}
		return f.Forward(a, b)
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch a.Kind() {
	case KindName, KindNonce:
		return a.Text() == b.Text()
	case KindFunction, KindTuple:
		if a.Text() != b.Text() || len(a.Params()) != len(b.Params()) {
			return false
		}
		for i := range a.Params() {
			if !UnifyTo(a.Params()[i], b.Params()[i], g, f) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Unifiable performs two-directional unification: finds sigma1, sigma2
// (recorded into f) such that sigma1(a) is structurally equal to sigma2(b).
// It recurses structurally; on hitting a variable on either side it binds
// on the corresponding side. After each successful binding the two guards
// are rewritten by that binding, so a "v =/= w" constraint becomes
// "v =/= sigma(w)" once w is resolved. Returns the (possibly rewritten)
// guards alongside the success bool so callers (the Horn-clause composer)
// can carry the updated constraints forward.
func Unifiable(a, b *Message, fg, bg *Guard, f *SigmaFactory) (bool, *Guard, *Guard) {
	if resolved, ok := f.fwd[keyOf(a)]; a.Kind() == KindVariable && ok {
		a = resolved
	}
	if resolved, ok := f.bwd[keyOf(b)]; b.Kind() == KindVariable && ok {
		b = resolved
	}

	switch {
	case a.Kind() == KindVariable && b.Kind() == KindVariable && a.Text() == b.Text():
		return true, fg, bg
	case a.Kind() == KindVariable:
		if !fg.CanUnify(a, b) {
			return false, fg, bg
		}
		if !f.Forward(a, b) {
			return false, fg, bg
		}
		single := SigmaMap{a.Text(): b}
		newFg, okFg := fg.Substitute(single)
		newBg, okBg := bg.Substitute(single)
		if !okFg || !okBg {
			return false, fg, bg
		}
		return true, newFg, newBg
	case b.Kind() == KindVariable:
		if !bg.CanUnify(b, a) {
			return false, fg, bg
		}
		if !f.Backward(b, a) {
			return false, fg, bg
		}
		single := SigmaMap{b.Text(): a}
		newFg, okFg := fg.Substitute(single)
		newBg, okBg := bg.Substitute(single)
		if !okFg || !okBg {
			return false, fg, bg
		}
		return true, newFg, newBg
	case a.Kind() != b.Kind():
		return false, fg, bg
	case a.Kind() == KindName || a.Kind() == KindNonce:
		return a.Text() == b.Text(), fg, bg
	case a.Kind() == KindFunction || a.Kind() == KindTuple:
		if a.Text() != b.Text() || len(a.Params()) != len(b.Params()) {
			return false, fg, bg
		}
		curFg, curBg := fg, bg
		for i := range a.Params() {
			var ok bool
			ok, curFg, curBg = Unifiable(a.Params()[i], b.Params()[i], curFg, curBg, f)
			if !ok {
				return false, fg, bg
			}
		}
		return true, curFg, curBg
	default:
		return false, fg, bg
	}
}

func keyOf(m *Message) string {
	if m.Kind() == KindVariable {
		return m.Text()
	}
	return ""
}

// CanonicallyUnifiable is a guard-free, factory-free convenience wrapper
// around Unifiable used by Guard.CanUnify and Guard.Substitute to test
// whether two ground-or-open messages could ever be unified, independent
// of any outer guard. It builds a fresh, empty guard/factory scope for the
// check so it never leaks bindings into the caller's own factory.
func CanonicallyUnifiable(a, b *Message) bool {
	ok, _, _ := Unifiable(a, b, NewGuard(), NewGuard(), NewSigmaFactory())
	return ok
}
