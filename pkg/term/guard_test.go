package term

import "testing"

func TestParseGuardTerm(t *testing.T) {
	g, err := ParseGuardTerm("x ~/> secret[]")
	if err != nil {
		t.Fatalf("ParseGuardTerm: %v", err)
	}
	if !g.CanUnify(NewVariable("x"), NewName("other")) {
		t.Error("x should still be bindable to other[]")
	}
	if g.CanUnify(NewVariable("x"), NewName("secret")) {
		t.Error("x should not be bindable to secret[]")
	}
}

func TestParseGuardTermUnunifiable(t *testing.T) {
	g, err := ParseGuardTerm("x =/= f(y)")
	if err != nil {
		t.Fatalf("ParseGuardTerm: %v", err)
	}
	if g.CanUnify(NewVariable("x"), NewFunction("f", NewName("a"))) {
		t.Error("x should not unify with anything unifiable with f(y)")
	}
}

func TestParseGuardTermRequiresVariable(t *testing.T) {
	if _, err := ParseGuardTerm("a[] ~/> b[]"); err == nil {
		t.Error("expected error when neither operand is a variable")
	}
}

func TestParseGuardTermSelfContradictory(t *testing.T) {
	if _, err := ParseGuardTerm("x ~/> x"); err == nil {
		t.Error("expected guard inconsistency error for x ~/> x")
	}
}

func TestGuardUnion(t *testing.T) {
	x := NewVariable("x")
	g1 := NewGuard().WithUnunified(x, NewName("a"))
	g2 := NewGuard().WithUnunified(x, NewName("b"))
	u := g1.Union(g2)
	if u.CanUnify(x, NewName("a")) || u.CanUnify(x, NewName("b")) {
		t.Error("union should carry forward both constraints")
	}
	if !u.CanUnify(x, NewName("c")) {
		t.Error("union should still allow unconstrained values")
	}
}
