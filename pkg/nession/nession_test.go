package nession

import (
	"context"
	"testing"

	"sarsaparilla/pkg/rule"
	"sarsaparilla/pkg/term"
)

// mustParse is a test helper around rule.ParseRule.
func mustParse(t *testing.T, text string) *rule.Rule {
	t.Helper()
	r, err := rule.ParseRule(text)
	if err != nil {
		t.Fatalf("ParseRule(%q): %v", text, err)
	}
	return r
}

// TestEngineRunStatefulDisclosure grounds pkg/nession in spec scenario S3
// "Stateful disclosure": a transferring rule repeatedly folds adversary
// knowledge into a cell, and a state-consistent rule reads the cell's
// initial and current values back out. The nession engine's job ends at
// producing the frame history and marking which rules could fire where;
// turning that into an actual attack is pkg/attack's job.
func TestEngineRunStatefulDisclosure(t *testing.T) {
	transfer := mustParse(t, "k(x) -[ (SD(m), a) ]-> <a: SD(h(m, x))>")
	readback := mustParse(t, "-[ (SD(init[]), a0), (SD(m), a1) : {a0 =< a1} ]-> k(m)")

	e := NewEngine([]*rule.Rule{transfer, readback}, Config{})
	initial := map[string]*term.Message{"SD": term.NewName("init")}

	nessions, err := e.Run(context.Background(), initial)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if len(nessions) != 1 {
		t.Fatalf("Run() produced %d nessions, want 1 (single transferring rule, single mapping per step)", len(nessions))
	}

	n := nessions[0]
	if n.Depth() != 3 {
		t.Fatalf("Depth() = %d, want 3 (MaxFrames defaults to len(initial)*3 = 3)", n.Depth())
	}
	frames := n.Frames()

	sd0 := frames[0].Cells["SD"]
	if !sd0.Equal(term.NewName("init")) {
		t.Errorf("frame 0 SD = %v, want init[]", sd0)
	}

	sd1 := frames[1].Cells["SD"]
	if sd1.Kind() != term.KindFunction || sd1.Text() != "h" || len(sd1.Params()) != 2 {
		t.Fatalf("frame 1 SD = %v, want h(_, _)", sd1)
	}
	if !sd1.Params()[0].Equal(term.NewName("init")) {
		t.Errorf("frame 1 SD first arg = %v, want init[]", sd1.Params()[0])
	}
	x1 := sd1.Params()[1]
	if x1.Kind() != term.KindVariable {
		t.Errorf("frame 1 SD second arg = %v, want a free variable (adversary's choice)", x1)
	}

	sd2 := frames[2].Cells["SD"]
	if sd2.Kind() != term.KindFunction || sd2.Text() != "h" || len(sd2.Params()) != 2 {
		t.Fatalf("frame 2 SD = %v, want h(_, _)", sd2)
	}
	if !sd2.Params()[0].Equal(sd1) {
		t.Errorf("frame 2 SD first arg = %v, want frame 1's SD value %v", sd2.Params()[0], sd1)
	}
	x2 := sd2.Params()[1]
	if x2.Kind() != term.KindVariable {
		t.Errorf("frame 2 SD second arg = %v, want a free variable", x2)
	}
	if x1.Equal(x2) {
		t.Errorf("rule1's two applications share the free variable %v; rename-apart should give each its own identity", x1)
	}

	// readback's snapshot graph (a0 pinned to the cell's ground init value,
	// a1 free) has a satisfiable mapping as soon as any frame exists, so it
	// should show up as applicable from frame 0 onward.
	for i, f := range frames {
		found := false
		for _, r := range f.ApplicableRules {
			if r.ID() == readback.ID() {
				found = true
			}
		}
		if !found {
			t.Errorf("frame %d: readback rule not listed as applicable", i)
		}
	}
}

func TestEngineRunRespectsMaxFrames(t *testing.T) {
	transfer := mustParse(t, "k(x) -[ (SD(m), a) ]-> <a: SD(h(m, x))>")
	e := NewEngine([]*rule.Rule{transfer}, Config{MaxFrames: 1})
	initial := map[string]*term.Message{"SD": term.NewName("init")}

	nessions, err := e.Run(context.Background(), initial)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if len(nessions) != 1 || nessions[0].Depth() != 1 {
		t.Fatalf("Run() with MaxFrames=1 = %v, want a single depth-1 nession", nessions)
	}
}

func TestEngineRunCancellation(t *testing.T) {
	transfer := mustParse(t, "k(x) -[ (SD(m), a) ]-> <a: SD(h(m, x))>")
	e := NewEngine([]*rule.Rule{transfer}, Config{MaxFrames: 10})
	initial := map[string]*term.Message{"SD": term.NewName("init")}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	nessions, err := e.Run(ctx, initial)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if len(nessions) != 1 || nessions[0].Depth() != 1 {
		t.Fatalf("Run() on a pre-cancelled context = %v, want a single depth-1 nession (only frame 0)", nessions)
	}
}

func TestEngineNoApplicableRuleFinalizesImmediately(t *testing.T) {
	readback := mustParse(t, "-[ (SD(init[]), a0), (SD(m), a1) : {a0 =< a1} ]-> k(m)")
	e := NewEngine([]*rule.Rule{readback}, Config{})
	initial := map[string]*term.Message{"SD": term.NewName("init")}

	nessions, err := e.Run(context.Background(), initial)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if len(nessions) != 1 || nessions[0].Depth() != 1 {
		t.Fatalf("Run() with no transferring rule = %v, want a single depth-1 nession", nessions)
	}
}
