// Package rule implements the rule algebra: StateConsistentRule and
// StateTransferringRule, their transactional construction, the spec §4.2
// textual grammar (parser and pretty-printer) and alpha-equivalence.
package rule

import (
	"fmt"
	"sync/atomic"

	"sarsaparilla/pkg/model"
	"sarsaparilla/pkg/term"
)

// Kind distinguishes the two rule variants sharing a common preamble.
type Kind int

const (
	// KindStateConsistent is "guard · premises -[snapshots]-> result event".
	KindStateConsistent Kind = iota
	// KindStateTransferring is the same preamble with a set of snapshot
	// transitions <label: newState> on the right-hand side.
	KindStateTransferring
)

// SourceKind tags how a Rule came to exist (spec §4.2: "an IRuleSource
// describing its origin").
type SourceKind int

const (
	SourceUserGiven SourceKind = iota
	SourceComposition
	SourceOperation
)

// Source describes a rule's origin.
type Source struct {
	Kind      SourceKind
	Operation string // populated when Kind == SourceOperation
}

// Premise is one event on the left-hand side of a rule, optionally bound
// to a snapshot label (spec §4.2 grammar: "event '(' label ')'").
type Premise struct {
	Event         *model.Event
	SnapshotLabel string // "" if the premise carries no snapshot reference
}

// Transition is one "<label: newState>" entry of a StateTransferringRule's
// right-hand side.
type Transition struct {
	Label    string
	NewState model.State
}

// Rule is the immutable, validated result of Builder.Build. Construction
// is transactional (spec §4.2): callers never observe a partially built or
// invalid Rule.
type Rule struct {
	id        int64
	userLabel string
	guard     *term.Guard
	premises  []Premise
	snapshots *model.SnapshotTable
	kind      Kind
	result    *model.Event // valid iff kind == KindStateConsistent
	transitions []Transition // valid iff kind == KindStateTransferring
	source    Source
}

var ruleIDCounter int64

func nextRuleID() int64 { return atomic.AddInt64(&ruleIDCounter, 1) }

// ID returns the rule's assigned identity.
func (r *Rule) ID() int64 { return r.id }

// Label returns the rule's optional user-given label ("" if none).
func (r *Rule) Label() string { return r.userLabel }

// Kind returns whether this is a state-consistent or state-transferring rule.
func (r *Rule) Kind() Kind { return r.kind }

// Guard returns the rule's guard (never nil; empty guard if none given).
func (r *Rule) Guard() *term.Guard { return r.guard }

// Premises returns the rule's ordered premise events.
func (r *Rule) Premises() []Premise { return r.premises }

// Snapshots returns the rule's local snapshot arena.
func (r *Rule) Snapshots() *model.SnapshotTable { return r.snapshots }

// Result returns the result event of a state-consistent rule. Panics if
// called on a state-transferring rule; callers must check Kind first.
func (r *Rule) Result() *model.Event {
	if r.kind != KindStateConsistent {
		panic("rule: Result called on a state-transferring rule")
	}
	return r.result
}

// Transitions returns the state transitions of a state-transferring rule.
// Panics if called on a state-consistent rule; callers must check Kind first.
func (r *Rule) Transitions() []Transition {
	if r.kind != KindStateTransferring {
		panic("rule: Transitions called on a state-consistent rule")
	}
	return r.transitions
}

// Source returns the rule's origin.
func (r *Rule) Source() Source { return r.source }

// IsGlobal reports whether this rule has no snapshot requirements at all
// (spec §4.4: "the globally-applicable rules (those without snapshot
// requirements)"), making it applicable at rank -1 without any nession.
func (r *Rule) IsGlobal() bool { return r.snapshots.Len() == 0 }

// ResolveSnapshot looks up the snapshot a premise references. Returns an
// error if the premise names a label absent from the rule's arena — this
// should never happen for a rule that passed Build's validation, and is
// exposed mainly so callers can assert the invariant in tests.
func (r *Rule) ResolveSnapshot(p Premise) (*model.Snapshot, error) {
	if p.SnapshotLabel == "" {
		return nil, fmt.Errorf("rule: premise %s carries no snapshot reference", p.Event)
	}
	id, ok := r.snapshots.Resolve(p.SnapshotLabel)
	if !ok {
		return nil, fmt.Errorf("rule: premise references unknown snapshot label %q", p.SnapshotLabel)
	}
	return r.snapshots.Get(id), nil
}
