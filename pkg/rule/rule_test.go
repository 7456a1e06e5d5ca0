package rule

import (
	"testing"

	"sarsaparilla/pkg/model"
	"sarsaparilla/pkg/term"
)

func TestParseRuleStateConsistent(t *testing.T) {
	r, err := ParseRule("k(x), k(y) -[]-> k(f(x, y))")
	if err != nil {
		t.Fatalf("ParseRule: %v", err)
	}
	if r.Kind() != KindStateConsistent {
		t.Fatalf("Kind = %v, want KindStateConsistent", r.Kind())
	}
	if len(r.Premises()) != 2 {
		t.Fatalf("Premises = %d, want 2", len(r.Premises()))
	}
	if r.Result().Kind() != model.EventKnow {
		t.Errorf("Result kind = %v, want EventKnow", r.Result().Kind())
	}
	if !r.IsGlobal() {
		t.Error("rule with no snapshots should be global")
	}
}

func TestParseRuleWithLabelAndGuard(t *testing.T) {
	r, err := ParseRule("decrypt = [x ~/> secret[]] k(enc(x, k2[])), k(k2[]) -[]-> k(x)")
	if err != nil {
		t.Fatalf("ParseRule: %v", err)
	}
	if r.Label() != "decrypt" {
		t.Errorf("Label = %q, want decrypt", r.Label())
	}
	if r.Guard().IsEmpty() {
		t.Error("expected a non-empty guard")
	}
}

func TestParseRuleStateTransferring(t *testing.T) {
	r, err := ParseRule("k(x) -[(SD(init[]), a0)]-> <a0: SD(running[])>")
	if err != nil {
		t.Fatalf("ParseRule: %v", err)
	}
	if r.Kind() != KindStateTransferring {
		t.Fatalf("Kind = %v, want KindStateTransferring", r.Kind())
	}
	if len(r.Transitions()) != 1 {
		t.Fatalf("Transitions = %d, want 1", len(r.Transitions()))
	}
	if r.Snapshots().Len() != 1 {
		t.Fatalf("Snapshots = %d, want 1", r.Snapshots().Len())
	}
}

func TestParseRuleSnapshotOrdering(t *testing.T) {
	r, err := ParseRule("k(x) -[(SD(a[]), a0), (SD(b[]), a1) : {a0 =< a1}]-> <a1: SD(c[])>")
	if err != nil {
		t.Fatalf("ParseRule: %v", err)
	}
	ordered, err := r.Snapshots().TotalOrderForCell("SD")
	if err != nil {
		t.Fatalf("TotalOrderForCell: %v", err)
	}
	if ordered[0].Label != "a0" || ordered[1].Label != "a1" {
		t.Errorf("unexpected order: %+v", ordered)
	}
}

func TestParseRuleRejectsCorresp(t *testing.T) {
	if _, err := ParseRule("k(x) : {c1} -[]-> k(x)"); err == nil {
		t.Error("expected error: correspondence annotations are unsupported")
	}
}

func TestParseRuleUnsafeVariable(t *testing.T) {
	if _, err := ParseRule("k(x) -[]-> k(y)"); err == nil {
		t.Error("expected a construction error for the unsafe variable y")
	}
}

func TestParseRuleMakeInPremiseRejected(t *testing.T) {
	if _, err := ParseRule("m(x) -[]-> k(x)"); err == nil {
		t.Error("expected a construction error: Make event may not appear in a premise")
	}
}

func TestParseRuleGuardInconsistency(t *testing.T) {
	if _, err := ParseRule("[x ~/> x] k(x) -[]-> k(x)"); err == nil {
		t.Error("expected a guard inconsistency parse error for x ~/> x")
	}
}

func TestParseRuleEmptyPremises(t *testing.T) {
	r, err := ParseRule("-[ (SD(init[]), a0), (SD(m), a1) : {a0 =< a1} ]-> k(m)")
	if err != nil {
		t.Fatalf("ParseRule: %v", err)
	}
	if len(r.Premises()) != 0 {
		t.Errorf("Premises() = %v, want none", r.Premises())
	}
	if r.Snapshots().Len() != 2 {
		t.Errorf("Snapshots().Len() = %d, want 2", r.Snapshots().Len())
	}
}

func TestRuleRoundTrip(t *testing.T) {
	texts := []string{
		"k(x), k(y) -[]-> k(f(x, y))",
		"k(x) -[(SD(init[]), a0)]-> <a0: SD(running[])>",
		"-[ (SD(init[]), a0), (SD(m), a1) : {a0 =< a1} ]-> k(m)",
	}
	for _, text := range texts {
		r, err := ParseRule(text)
		if err != nil {
			t.Fatalf("ParseRule(%q): %v", text, err)
		}
		printed := r.String()
		r2, err := ParseRule(printed)
		if err != nil {
			t.Fatalf("ParseRule(round-trip %q): %v", printed, err)
		}
		if !AlphaEqual(r, r2) {
			t.Errorf("round trip of %q produced a non-equivalent rule: %q", text, printed)
		}
	}
}

func TestAlphaEqualRenamedVariables(t *testing.T) {
	a, err := ParseRule("k(x), k(y) -[]-> k(f(x, y))")
	if err != nil {
		t.Fatalf("ParseRule: %v", err)
	}
	b, err := ParseRule("k(p), k(q) -[]-> k(f(p, q))")
	if err != nil {
		t.Fatalf("ParseRule: %v", err)
	}
	if !AlphaEqual(a, b) {
		t.Error("rules differing only by variable names should be alpha-equivalent")
	}
}

func TestAlphaEqualRejectsDifferentShape(t *testing.T) {
	a, _ := ParseRule("k(x) -[]-> k(f(x))")
	b, _ := ParseRule("k(x) -[]-> k(g(x))")
	if AlphaEqual(a, b) {
		t.Error("rules with different functors should not be alpha-equivalent")
	}
}

func TestParseCorpusAggregatesErrors(t *testing.T) {
	rules, err := ParseCorpus([]string{
		"k(x) -[]-> k(x)",
		"not a rule",
		"k(x), k(y) -[]-> k(f(x, y))",
	})
	if len(rules) != 2 {
		t.Fatalf("got %d rules, want 2", len(rules))
	}
	if err == nil {
		t.Fatal("expected an aggregate error for the malformed rule")
	}
}

func TestBuilderDirectConstruction(t *testing.T) {
	b := NewBuilder(Source{Kind: SourceComposition, Operation: "compose"})
	x := term.NewVariable("x")
	b.AddPremise(model.NewKnowEvent(x), "")
	b.SetResult(model.NewKnowEvent(x))
	r, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if r.Source().Kind != SourceComposition {
		t.Errorf("Source.Kind = %v, want SourceComposition", r.Source().Kind)
	}
}
