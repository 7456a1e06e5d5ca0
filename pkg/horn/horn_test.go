package horn

import (
	"context"
	"testing"

	"sarsaparilla/pkg/term"
)

func ruleClause(premises []*term.Message, result *term.Message, rank int) *HornClause {
	return NewClause(premises, term.NewGuard(), result, rank, Source{Kind: SourceRule})
}

// TestComposeChaining mirrors a trivial two-step knowledge derivation: from
// {a} derive b, and from {b} derive c; composing should yield {a} -> c.
func TestComposeChaining(t *testing.T) {
	a := term.NewName("a")
	b := term.NewName("b")
	c := term.NewName("c")

	c1 := ruleClause([]*term.Message{a}, b, -1)
	c2 := ruleClause([]*term.Message{b}, c, -1)

	results := compose(c1, c2)
	if len(results) != 1 {
		t.Fatalf("compose() returned %d clauses, want 1", len(results))
	}
	got := results[0]
	if len(got.Premises()) != 1 || !got.Premises()[0].Equal(a) {
		t.Errorf("premises = %v, want [a[]]", got.Premises())
	}
	if !got.Result().Equal(c) {
		t.Errorf("result = %v, want c[]", got.Result())
	}
	if got.Rank() != -1 {
		t.Errorf("rank = %d, want -1", got.Rank())
	}
	if got.Source().Kind != SourceComposition {
		t.Errorf("source kind = %v, want SourceComposition", got.Source().Kind)
	}
}

// TestComposeWithVariable checks that a variable premise in c2 unifies
// against a concrete result from c1, substituting through the rest of c2.
func TestComposeWithVariable(t *testing.T) {
	x := term.NewVariable("X")
	key := term.NewName("k")
	encrypted := term.NewFunction("enc", x, key)

	// c1: {} -> enc(m[], k[])   (someone published a fixed ciphertext)
	m := term.NewName("m")
	c1 := ruleClause(nil, term.NewFunction("enc", m, key), -1)

	// c2: {enc(X, k[]), k[]} -> X   (decrypt given the key)
	c2 := ruleClause([]*term.Message{encrypted, key}, x, -1)

	results := compose(c1, c2)
	if len(results) != 1 {
		t.Fatalf("compose() returned %d clauses, want 1", len(results))
	}
	got := results[0]
	if len(got.Premises()) != 1 || !got.Premises()[0].Equal(key) {
		t.Errorf("premises = %v, want [k[]]", got.Premises())
	}
	if !got.Result().Equal(m) {
		t.Errorf("result = %v, want m[]", got.Result())
	}
}

func TestComposeNoMatchReturnsEmpty(t *testing.T) {
	a := term.NewName("a")
	b := term.NewName("b")
	c := term.NewName("c")
	c1 := ruleClause(nil, a, -1)
	c2 := ruleClause([]*term.Message{b}, c, -1)
	if got := compose(c1, c2); len(got) != 0 {
		t.Errorf("compose() = %v, want empty", got)
	}
}

func TestAnifySkipsNoncesInGuard(t *testing.T) {
	n := term.NewNonce("n")
	guarded := ruleClause(nil, n, -1)
	guarded.guard = term.NewGuard().WithUnunified(term.NewVariable("x"), n)
	if got := anify(guarded); len(got) != 0 {
		t.Errorf("anify() with guarded nonce = %v, want none", got)
	}

	unguarded := ruleClause(nil, n, -1)
	got := anify(unguarded)
	if len(got) != 1 {
		t.Fatalf("anify() = %d clauses, want 1", len(got))
	}
	if got[0].Result().Kind() != term.KindName || got[0].Result().Text() != "Any" {
		t.Errorf("anify() result = %v, want Any[]", got[0].Result())
	}
	if got[0].Rank() != unguarded.Rank() {
		t.Errorf("anify() rank = %d, want unchanged %d", got[0].Rank(), unguarded.Rank())
	}
}

func TestDetupleSplitsResultAndPremise(t *testing.T) {
	a := term.NewName("a")
	b := term.NewName("b")
	tuple := term.NewTuple(a, b)

	resultClause := ruleClause(nil, tuple, 0)
	got := detuple(resultClause)
	if len(got) != 2 {
		t.Fatalf("detuple() on tuple result = %d clauses, want 2", len(got))
	}

	premiseClause := ruleClause([]*term.Message{tuple}, term.NewName("c"), 0)
	got = detuple(premiseClause)
	if len(got) != 1 {
		t.Fatalf("detuple() on tuple premise = %d clauses, want 1", len(got))
	}
	if len(got[0].Premises()) != 2 {
		t.Errorf("flattened premises = %v, want 2 entries", got[0].Premises())
	}
}

func TestScrubRemovesDuplicatePremise(t *testing.T) {
	a := term.NewName("a")
	dup := ruleClause([]*term.Message{a, a}, term.NewName("b"), 0)
	got, ok := scrub(dup)
	if !ok {
		t.Fatal("scrub() reported no change on a clause with a duplicate premise")
	}
	if len(got.Premises()) != 1 {
		t.Errorf("scrubbed premises = %v, want 1", got.Premises())
	}

	clean := ruleClause([]*term.Message{a}, term.NewName("b"), 0)
	if _, ok := scrub(clean); ok {
		t.Error("scrub() reported a change on an already-clean clause")
	}
}

func TestCombineRank(t *testing.T) {
	cases := []struct{ a, b, want int }{
		{-1, -1, -1},
		{-1, 3, 3},
		{3, -1, 3},
		{2, 5, 5},
		{5, 2, 5},
	}
	for _, tc := range cases {
		if got := combineRank(tc.a, tc.b); got != tc.want {
			t.Errorf("combineRank(%d, %d) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}

// TestElaborateFixedPoint checks the elaborator closes a two-hop chain
// (a -> b, b -> c) into also containing a direct a -> c clause.
func TestElaborateFixedPoint(t *testing.T) {
	a := term.NewName("a")
	b := term.NewName("b")
	c := term.NewName("c")
	initial := []*HornClause{
		ruleClause([]*term.Message{a}, b, -1),
		ruleClause([]*term.Message{b}, c, -1),
	}
	out := Elaborate(context.Background(), initial, DefaultBudget())

	found := false
	for _, cl := range out {
		if len(cl.Premises()) == 1 && cl.Premises()[0].Equal(a) && cl.Result().Equal(c) {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("Elaborate() did not close {a}->c from {a}->b and {b}->c; got %d clauses", len(out))
		for _, cl := range out {
			t.Logf("  %s", cl.String())
		}
	}
}

func TestElaborateRespectsMaxSteps(t *testing.T) {
	a := term.NewName("a")
	b := term.NewName("b")
	c := term.NewName("c")
	initial := []*HornClause{
		ruleClause([]*term.Message{a}, b, -1),
		ruleClause([]*term.Message{b}, c, -1),
	}
	budget := DefaultBudget()
	budget.MaxSteps = 0
	out := Elaborate(context.Background(), initial, budget)

	if len(out) != 2 {
		t.Errorf("Elaborate() with MaxSteps=0 processed clauses beyond the seed set: got %d, want 2", len(out))
	}
	for _, cl := range out {
		if len(cl.Premises()) == 1 && cl.Premises()[0].Equal(a) && cl.Result().Equal(c) {
			t.Errorf("Elaborate() with MaxSteps=0 already closed {a}->c; want the budget to stop it short")
		}
	}
}

func TestElaborateCancellation(t *testing.T) {
	a := term.NewName("a")
	b := term.NewName("b")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	initial := []*HornClause{ruleClause([]*term.Message{a}, b, -1)}
	out := Elaborate(ctx, initial, DefaultBudget())
	if len(out) != 1 {
		t.Errorf("Elaborate() on a pre-cancelled context = %d clauses, want 1 (only the seed, no expansion)", len(out))
	}
}

func TestHornClauseString(t *testing.T) {
	a := term.NewName("a")
	b := term.NewName("b")
	cl := ruleClause([]*term.Message{a}, b, -1)
	want := "{a[]} -[*]-> b[]"
	if got := cl.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestOriginSizeTracksDerivation(t *testing.T) {
	a := term.NewName("a")
	b := term.NewName("b")
	c := term.NewName("c")
	c1 := ruleClause([]*term.Message{a}, b, -1)
	c2 := ruleClause([]*term.Message{b}, c, -1)
	if c1.OriginSize() != 1 {
		t.Errorf("OriginSize() of a rule clause = %d, want 1", c1.OriginSize())
	}
	composed := compose(c1, c2)
	if len(composed) != 1 {
		t.Fatalf("compose() = %d, want 1", len(composed))
	}
	if got := composed[0].OriginSize(); got != 3 {
		t.Errorf("OriginSize() of a one-step composition = %d, want 3", got)
	}
}
