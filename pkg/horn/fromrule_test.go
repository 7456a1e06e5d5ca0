package horn

import (
	"context"
	"testing"

	"sarsaparilla/pkg/nession"
	"sarsaparilla/pkg/rule"
	"sarsaparilla/pkg/term"
)

func mustParse(t *testing.T, text string) *rule.Rule {
	t.Helper()
	r, err := rule.ParseRule(text)
	if err != nil {
		t.Fatalf("ParseRule(%q): %v", text, err)
	}
	return r
}

func TestGlobalClausesSkipsSnapshotBoundRules(t *testing.T) {
	global := mustParse(t, "k(x) -[]-> k(pk(x))")
	bound := mustParse(t, "-[ (SD(init[]), a0), (SD(m), a1) : {a0 =< a1} ]-> k(m)")

	clauses := GlobalClauses([]*rule.Rule{global, bound})
	if len(clauses) != 1 {
		t.Fatalf("GlobalClauses() = %d clauses, want 1 (only the snapshot-free rule)", len(clauses))
	}
	if clauses[0].Rank() != -1 {
		t.Errorf("Rank() = %d, want -1", clauses[0].Rank())
	}
}

func TestFromRuleDropsContradictoryGuard(t *testing.T) {
	r := mustParse(t, "[x ~/> secret[]] k(x) -[]-> k(leak(x))")
	sigma := term.SigmaMap{"x": term.NewName("secret")}
	if c := FromRule(r, sigma, -1); c != nil {
		t.Errorf("FromRule() with a guard-violating sigma = %v, want nil", c)
	}
}

// TestFromNessionRequiresTransferPremise grounds the soundness concern
// behind Frame.EntryPremises: a readback rule reading a value the
// adversary folded into a cell via a transferring rule must not be able to
// derive that value's contents without the transfer's own premise being
// separately satisfiable. With no rule supplying k(left[]), the
// elaborated clause set here should never let the query resolve.
func TestFromNessionRequiresTransferPremise(t *testing.T) {
	transfer := mustParse(t, "k(x) -[ (SD(m), a) ]-> <a: SD(h(m, x))>")
	readback := mustParse(t, "-[ (SD(init[]), a0), (SD(m), a1) : {a0 =< a1} ]-> k(m)")
	rules := []*rule.Rule{transfer, readback}

	e := nession.NewEngine(rules, nession.Config{MaxFrames: 2})
	nessions, err := e.Run(context.Background(), map[string]*term.Message{"SD": term.NewName("init")})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if len(nessions) != 1 {
		t.Fatalf("Run() = %d nessions, want 1", len(nessions))
	}

	clauses := FromNession(nessions[0], rules)
	for _, c := range clauses {
		if len(c.Premises()) != 0 {
			continue
		}
		if c.Result().Kind() == term.KindFunction && c.Result().Text() == "h" {
			t.Errorf("found a premise-free clause deriving %v; the transfer's own premise must survive as a precondition", c.Result())
		}
	}
}

// TestFromNessionComposesTransferPremiseWithKnowledge mirrors S3 end to
// end at the clause-building layer: once a rule supplies k(left[]),
// Elaborate should close the transfer's premise against it and let the
// query resolve.
func TestFromNessionComposesTransferPremiseWithKnowledge(t *testing.T) {
	transfer := mustParse(t, "k(x) -[ (SD(m), a) ]-> <a: SD(h(m, x))>")
	readback := mustParse(t, "-[ (SD(init[]), a0), (SD(m), a1) : {a0 =< a1} ]-> k(m)")
	knowsLeft := mustParse(t, "-[]-> k(left[])")
	rules := []*rule.Rule{transfer, readback, knowsLeft}

	e := nession.NewEngine(rules, nession.Config{MaxFrames: 2})
	nessions, err := e.Run(context.Background(), map[string]*term.Message{"SD": term.NewName("init")})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if len(nessions) != 1 {
		t.Fatalf("Run() = %d nessions, want 1", len(nessions))
	}

	clauses := FromNession(nessions[0], rules)
	elaborated := Elaborate(context.Background(), clauses, DefaultBudget())

	want := term.NewFunction("h", term.NewName("init"), term.NewName("left"))
	found := false
	for _, c := range elaborated {
		if len(c.Premises()) == 0 && c.Result().Equal(want) {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("Elaborate() never closed a premise-free clause for %v", want)
		for _, c := range elaborated {
			t.Logf("  %s", c.String())
		}
	}
}
