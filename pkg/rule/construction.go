package rule

import (
	"fmt"

	"sarsaparilla/pkg/model"
	"sarsaparilla/pkg/term"
)

// Builder assembles a Rule transactionally: callers append guard
// constraints, snapshots and premises, then call Build, which validates
// safety and acyclicity before handing back an immutable Rule with an
// assigned id. A Builder that fails Build is simply discarded; nothing it
// produced is ever observed by the rest of the engine (spec §4.2 "Rule
// construction is transactional").
type Builder struct {
	userLabel   string
	guard       *term.Guard
	snapshots   *model.SnapshotTable
	premises    []Premise
	kind        Kind
	result      *model.Event
	transitions []Transition
	source      Source
}

// NewBuilder returns an empty Builder with the given origin.
func NewBuilder(source Source) *Builder {
	return &Builder{guard: term.NewGuard(), snapshots: model.NewSnapshotTable(), source: source}
}

// WithLabel sets the rule's optional user-given label.
func (b *Builder) WithLabel(label string) *Builder {
	b.userLabel = label
	return b
}

// WithGuard merges g into the rule's guard.
func (b *Builder) WithGuard(g *term.Guard) *Builder {
	b.guard = b.guard.Union(g)
	return b
}

// AddSnapshot registers a snapshot in the rule's local arena. See
// model.SnapshotTable.Add for the label/ordering resolution rules.
func (b *Builder) AddSnapshot(label string, condition model.State, laterThan, modifiedLaterThan []string, transfersTo *model.State) error {
	if _, err := b.snapshots.Add(label, condition, laterThan, modifiedLaterThan, transfersTo); err != nil {
		return &ConstructionError{Reason: err.Error()}
	}
	return nil
}

// AddPremise appends a premise event, optionally bound to a snapshot label.
func (b *Builder) AddPremise(ev *model.Event, snapshotLabel string) *Builder {
	b.premises = append(b.premises, Premise{Event: ev, SnapshotLabel: snapshotLabel})
	return b
}

// SetResult finalizes this as a state-consistent rule with the given
// result event.
func (b *Builder) SetResult(ev *model.Event) *Builder {
	b.kind = KindStateConsistent
	b.result = ev
	return b
}

// AddTransition finalizes this as a state-transferring rule, adding one
// "<label: newState>" entry.
func (b *Builder) AddTransition(label string, newState model.State) *Builder {
	b.kind = KindStateTransferring
	b.transitions = append(b.transitions, Transition{Label: label, NewState: newState})
	return b
}

// Build validates and produces the immutable Rule, or a
// RuleConstructionError describing exactly why construction failed
// (spec §7 "RuleConstructionError").
func (b *Builder) Build() (*Rule, error) {
	if b.snapshots.HasCycle() {
		return nil, &ConstructionError{Reason: "snapshot graph contains a cycle"}
	}
	for _, p := range b.premises {
		if p.SnapshotLabel == "" {
			continue
		}
		if _, ok := b.snapshots.Resolve(p.SnapshotLabel); !ok {
			return nil, &ConstructionError{Reason: fmt.Sprintf("premise %s references unknown snapshot label %q", p.Event, p.SnapshotLabel)}
		}
	}
	for _, n := range b.snapshots.All() {
		if _, err := b.snapshots.TotalOrderForCell(n.Condition.Cell()); err != nil {
			return nil, &ConstructionError{Reason: err.Error()}
		}
	}
	if b.guard.SelfContradictory() {
		return nil, &GuardInconsistencyError{Guard: b.guard}
	}
	if err := b.checkSafety(); err != nil {
		return nil, err
	}
	if b.kind == KindStateConsistent && b.result != nil && b.result.Kind() == model.EventKnow {
		for _, p := range b.premises {
			if p.Event.Kind() == model.EventMake {
				return nil, &ConstructionError{Reason: "a Make-like event may not appear in a premise"}
			}
		}
	}
	r := &Rule{
		id:          nextRuleID(),
		userLabel:   b.userLabel,
		guard:       b.guard,
		premises:    append([]Premise(nil), b.premises...),
		snapshots:   b.snapshots,
		kind:        b.kind,
		result:      b.result,
		transitions: append([]Transition(nil), b.transitions...),
		source:      b.source,
	}
	return r, nil
}

// checkSafety enforces "every variable of the result appears in some
// premise or some state condition" (spec §3 rule invariants).
func (b *Builder) checkSafety() error {
	bound := map[string]bool{}
	for _, p := range b.premises {
		for v := range p.Event.Message().Variables() {
			bound[v] = true
		}
	}
	for _, n := range b.snapshots.All() {
		for v := range n.Condition.Value().Variables() {
			bound[v] = true
		}
	}
	check := func(m *term.Message, where string) error {
		for v := range m.Variables() {
			if !bound[v] {
				return &ConstructionError{Reason: fmt.Sprintf("unsafe variable %q in %s: not bound by any premise or state condition", v, where)}
			}
		}
		return nil
	}
	switch b.kind {
	case KindStateConsistent:
		if b.result != nil {
			if err := check(b.result.Message(), "result"); err != nil {
				return err
			}
		}
	case KindStateTransferring:
		for _, t := range b.transitions {
			if err := check(t.NewState.Value(), fmt.Sprintf("transition %q", t.Label)); err != nil {
				return err
			}
		}
	}
	return nil
}

// ConstructionError reports a logically inconsistent rule (spec §7
// "RuleConstructionError"): cyclic or non-total snapshot ordering, a
// duplicate or unresolvable snapshot label (reported by AddSnapshot), a
// premise naming an unknown snapshot label, an unsafe result variable, or a
// Make event in a premise of a rule whose result is a Know event.
type ConstructionError struct{ Reason string }

func (e *ConstructionError) Error() string { return "rule construction error: " + e.Reason }

// GuardInconsistencyError reports a guard that can never be satisfied
// (spec §7 "GuardInconsistency"), e.g. "v ~/> v".
type GuardInconsistencyError struct{ Guard *term.Guard }

func (e *GuardInconsistencyError) Error() string {
	return "guard inconsistency: " + e.Guard.String() + " can never be satisfied"
}
