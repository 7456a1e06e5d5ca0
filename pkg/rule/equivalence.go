package rule

import (
	"sarsaparilla/pkg/model"
	"sarsaparilla/pkg/term"
)

// AlphaEqual reports whether a and b are the same rule up to a consistent
// renaming of their variables (spec §4.2/§8: rule equality is structural
// up to α-renaming, not textual). Premises, snapshots and the result are
// compared in declaration order, with variables matched up to a consistent
// renaming. Labels (the rule's own, snapshot, premise-reference and
// transition labels) are not compared, LaterThan edges are compared by
// arena position, and ModifiedLaterThan edges are not compared.
func AlphaEqual(a, b *Rule) bool {
	if a.kind != b.kind {
		return false
	}
	if len(a.premises) != len(b.premises) {
		return false
	}
	vm := newVarMapping()
	for i := range a.premises {
		pa, pb := a.premises[i], b.premises[i]
		if pa.Event.Kind() != pb.Event.Kind() {
			return false
		}
		if !messagesAlphaEqual(pa.Event.Message(), pb.Event.Message(), vm) {
			return false
		}
	}
	if !snapshotsAlphaEqual(a.snapshots, b.snapshots, vm) {
		return false
	}
	if !guardAlphaEqual(a.guard, b.guard, vm) {
		return false
	}
	switch a.kind {
	case KindStateConsistent:
		if (a.result == nil) != (b.result == nil) {
			return false
		}
		if a.result != nil {
			if a.result.Kind() != b.result.Kind() {
				return false
			}
			if !messagesAlphaEqual(a.result.Message(), b.result.Message(), vm) {
				return false
			}
		}
	case KindStateTransferring:
		if len(a.transitions) != len(b.transitions) {
			return false
		}
		for i := range a.transitions {
			ta, tb := a.transitions[i], b.transitions[i]
			if ta.NewState.Cell() != tb.NewState.Cell() {
				return false
			}
			if !messagesAlphaEqual(ta.NewState.Value(), tb.NewState.Value(), vm) {
				return false
			}
		}
	}
	return true
}

func snapshotsAlphaEqual(a, b *model.SnapshotTable, vm *varMapping) bool {
	an, bn := a.All(), b.All()
	if len(an) != len(bn) {
		return false
	}
	for i := range an {
		if an[i].Condition.Cell() != bn[i].Condition.Cell() {
			return false
		}
		if !messagesAlphaEqual(an[i].Condition.Value(), bn[i].Condition.Value(), vm) {
			return false
		}
		if len(an[i].LaterThan) != len(bn[i].LaterThan) {
			return false
		}
		for j := range an[i].LaterThan {
			if an[i].LaterThan[j] != bn[i].LaterThan[j] {
				return false
			}
		}
	}
	return true
}

// guardAlphaEqual compares two guards under a variable mapping already
// established by the rule's premises/snapshots/result. It does not
// attempt to discover new bindings for variables appearing only in a
// guard (every guard variable is expected to be safe, i.e. already bound
// elsewhere in the rule — spec §3's safety invariant), so it only reads
// vm rather than extending it.
func guardAlphaEqual(a, b *term.Guard, vm *varMapping) bool {
	if a.IsEmpty() && b.IsEmpty() {
		return true
	}
	// Guards are small in practice; rather than a combinatorial set
	// matcher, canonicalize each side's constraints through the already
	// fixed variable mapping and compare the resulting strings.
	return canonicalGuardTerms(a, vm, false) == canonicalGuardTerms(b, vm, true)
}

func canonicalGuardTerms(g *term.Guard, vm *varMapping, useBackward bool) string {
	rename := func(key string) string {
		if useBackward {
			if v, ok := vm.bwd[key]; ok {
				return v
			}
			return key
		}
		if v, ok := vm.fwd[key]; ok {
			return v
		}
		return key
	}
	var parts []string
	emit := func(kind, key string, terms []*term.Message) {
		for _, t := range terms {
			parts = append(parts, kind+":"+rename(key)+":"+renameMessage(t, vm, useBackward))
		}
	}
	for _, key := range sortedKeys(g.UnunifiedKeys()) {
		emit("u", key, g.UnunifiedTerms(key))
	}
	for _, key := range sortedKeys(g.UnunifiableKeys()) {
		emit("x", key, g.UnunifiableTerms(key))
	}
	sortStrings(parts)
	out := ""
	for _, p := range parts {
		out += p + "|"
	}
	return out
}

// renameMessage renders m with every variable replaced by its counterpart
// under vm, for canonical comparison inside guardAlphaEqual.
func renameMessage(m *term.Message, vm *varMapping, useBackward bool) string {
	if m.Kind() == term.KindVariable {
		if useBackward {
			if v, ok := vm.bwd[m.Text()]; ok {
				return v
			}
			return m.Text()
		}
		if v, ok := vm.fwd[m.Text()]; ok {
			return v
		}
		return m.Text()
	}
	if len(m.Params()) == 0 {
		return m.String()
	}
	out := m.Text() + "("
	for i, p := range m.Params() {
		if i > 0 {
			out += ","
		}
		out += renameMessage(p, vm, useBackward)
	}
	return out + ")"
}

func sortedKeys(keys []string) []string {
	out := append([]string(nil), keys...)
	sortStrings(out)
	return out
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// varMapping tracks a bijection between two rules' variable names,
// discovered incrementally as their premises/snapshots/results are walked
// in lockstep.
type varMapping struct {
	fwd map[string]string
	bwd map[string]string
}

func newVarMapping() *varMapping {
	return &varMapping{fwd: map[string]string{}, bwd: map[string]string{}}
}

func (vm *varMapping) bind(a, b string) bool {
	if fb, ok := vm.fwd[a]; ok {
		return fb == b
	}
	if bb, ok := vm.bwd[b]; ok {
		return bb == a
	}
	vm.fwd[a] = b
	vm.bwd[b] = a
	return true
}

// messagesAlphaEqual reports structural equality of a and b up to the
// variable renaming recorded (and, where new, extended) in vm.
func messagesAlphaEqual(a, b *term.Message, vm *varMapping) bool {
	if a.Kind() != b.Kind() {
		return false
	}
	switch a.Kind() {
	case term.KindVariable:
		return vm.bind(a.Text(), b.Text())
	case term.KindName, term.KindNonce:
		return a.Text() == b.Text()
	case term.KindFunction:
		if a.Text() != b.Text() || len(a.Params()) != len(b.Params()) {
			return false
		}
	case term.KindTuple:
		if len(a.Params()) != len(b.Params()) {
			return false
		}
	default:
		return false
	}
	for i := range a.Params() {
		if !messagesAlphaEqual(a.Params()[i], b.Params()[i], vm) {
			return false
		}
	}
	return true
}
