package term

// SigmaMap is a finite mapping from variable name to Message. Application
// is idempotent: applying a SigmaMap twice to any Message yields the same
// result as applying it once, because images never themselves contain
// variables bound by the same map (SigmaFactory enforces this at
// construction time; see sigmafactory.go).
type SigmaMap map[string]*Message

// emptySigma is the single shared empty substitution; Go maps are
// reference types, so returning this value never risks aliasing writes
// into caller state as long as callers only ever read from it, which is
// the only operation SigmaMap exposes besides Compose.
var emptySigma = SigmaMap{}

// EmptySigma returns the shared empty substitution.
func EmptySigma() SigmaMap { return emptySigma }

// Apply substitutes m structurally through s.
func (s SigmaMap) Apply(m *Message) *Message { return m.Substitute(s) }

// Compose returns the substitution (s ∘ t): applying it to a message is
// equivalent to first applying t, then applying s to the result. Per the
// spec, composition applies one substitution to the other's image and
// unions the resulting bindings.
func (s SigmaMap) Compose(t SigmaMap) SigmaMap {
	if len(s) == 0 {
		return t
	}
	if len(t) == 0 {
		return s
	}
	out := make(SigmaMap, len(s)+len(t))
	for v, img := range t {
		out[v] = s.Apply(img)
	}
	for v, img := range s {
		if _, already := t[v]; !already {
			out[v] = img
		}
	}
	return out
}

// Idempotent reports whether applying s twice to m equals applying it
// once; exposed for the universal-invariant property tests in §8.
func (s SigmaMap) Idempotent(m *Message) bool {
	once := s.Apply(m)
	twice := s.Apply(once)
	return once.Equal(twice)
}

// Domain returns the set of variable names bound by s.
func (s SigmaMap) Domain() map[string]struct{} {
	out := make(map[string]struct{}, len(s))
	for v := range s {
		out[v] = struct{}{}
	}
	return out
}

// Restrict returns the sub-map of s whose keys are in vars.
func (s SigmaMap) Restrict(vars map[string]struct{}) SigmaMap {
	out := make(SigmaMap)
	for v, img := range s {
		if _, ok := vars[v]; ok {
			out[v] = img
		}
	}
	return out
}
