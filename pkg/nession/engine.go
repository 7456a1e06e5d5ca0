package nession

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"sarsaparilla/internal/parallel"
	"sarsaparilla/pkg/model"
	"sarsaparilla/pkg/rule"
	"sarsaparilla/pkg/term"
)

// Config bounds the engine's bounded symbolic execution (spec §4.3, §6).
type Config struct {
	// MaxFrames bounds a nession's length. <= 0 defaults to the number of
	// declared cells times 3, per spec §4.3's "typically 3" guidance.
	MaxFrames int
	// MaxBranchingPerFrame bounds how many sibling branches one builder may
	// fan out into at a single extension step. <= 0 defaults to 8.
	MaxBranchingPerFrame int
	// Concurrency bounds the worker pool fanning out frontier builders and
	// the per-builder candidate-rule errgroup. <= 0 defaults to the pool's
	// own NewPool(0) default (runtime.NumCPU()).
	Concurrency int
}

func (c Config) effectiveMaxBranching() int {
	if c.MaxBranchingPerFrame <= 0 {
		return 8
	}
	return c.MaxBranchingPerFrame
}

// Engine enumerates nessions by combining state-transferring rules with a
// set of initial cell values (spec §4.3).
type Engine struct {
	consistentRules   []*rule.Rule
	transferringRules []*rule.Rule
	pool              *parallel.Pool
	cfg               Config
}

// NewEngine partitions rules by kind and builds an engine bounded by cfg.
func NewEngine(rules []*rule.Rule, cfg Config) *Engine {
	e := &Engine{cfg: cfg, pool: parallel.NewPool(cfg.Concurrency)}
	for _, r := range rules {
		switch r.Kind() {
		case rule.KindStateTransferring:
			e.transferringRules = append(e.transferringRules, r)
		default:
			e.consistentRules = append(e.consistentRules, r)
		}
	}
	return e
}

// nessionBuilder is an in-progress nession: the frames committed so far and
// the accumulated state-variable table (spec §4.3's "per-frame
// state-variable table": the open variable bindings any later unification
// in this nession must respect).
type nessionBuilder struct {
	frames    []*Frame
	stateVars term.SigmaMap
}

// Run enumerates nessions starting from initial (one value per declared
// cell), bounded by e.cfg and ctx. Each depth level fans the current
// frontier of in-progress builders out across e.pool; within a single
// builder, candidate transferring rules are evaluated concurrently via an
// errgroup bounded to the pool's capacity.
func (e *Engine) Run(ctx context.Context, initial map[string]*term.Message) ([]*Nession, error) {
	maxFrames := e.cfg.MaxFrames
	if maxFrames <= 0 {
		maxFrames = len(initial) * 3
		if maxFrames == 0 {
			maxFrames = 3
		}
	}

	frame0 := &Frame{Index: 0, Cells: cloneCells(initial)}
	builder0 := &nessionBuilder{frames: []*Frame{frame0}, stateVars: term.SigmaMap{}}
	frame0.ApplicableRules = e.computeApplicable(builder0, 0)
	frontier := []*nessionBuilder{builder0}

	var finalized []*nessionBuilder
	for len(frontier) > 0 && len(frontier[0].frames) < maxFrames {
		if ctx.Err() != nil {
			break
		}
		tasks := make([]func(context.Context) ([]*nessionBuilder, error), len(frontier))
		for i, b := range frontier {
			b := b
			tasks[i] = func(ctx context.Context) ([]*nessionBuilder, error) { return e.extend(ctx, b) }
		}
		results, err := parallel.Run(ctx, e.pool, tasks)
		if err != nil {
			return nil, fmt.Errorf("nession: extending frontier: %w", err)
		}

		var next []*nessionBuilder
		seen := map[string]bool{}
		for i, children := range results {
			if len(children) == 0 {
				finalized = append(finalized, frontier[i])
				continue
			}
			count := 0
			for _, c := range children {
				if count >= e.cfg.effectiveMaxBranching() {
					break
				}
				last := c.frames[len(c.frames)-1]
				key := cellsKey(last.Cells) + "|" + openPremiseKey(last.ApplicableRules)
				if seen[key] {
					continue
				}
				seen[key] = true
				next = append(next, c)
				count++
			}
		}
		frontier = next
	}
	finalized = append(finalized, frontier...)

	out := make([]*Nession, len(finalized))
	for i, b := range finalized {
		out[i] = &Nession{id: uuid.New(), label: fmt.Sprintf("Nession %d", i+1), frames: b.frames}
	}
	return out, nil
}

// extend tries every transferring rule against b's tail frame, returning
// one child builder per valid (rule, snapshot mapping) combination. An
// empty result means b cannot be extended further and should be finalized.
func (e *Engine) extend(ctx context.Context, b *nessionBuilder) ([]*nessionBuilder, error) {
	tail := b.frames[len(b.frames)-1]

	var mu sync.Mutex
	var children []*nessionBuilder
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(e.pool.Capacity())
	for _, tr := range e.transferringRules {
		tr := tr
		g.Go(func() error {
			// Every application of tr at this step gets its own fresh
			// variable identities, so repeated use of the same rule
			// template across different frames of the same nession (or
			// across sibling branches) never aliases unrelated adversary
			// choices together — the same technique pkg/horn.renameApart
			// uses before composing two clauses.
			fresh := freshVars(tr, nextEngineRenameTag())
			for _, m := range e.resolveMappings(tr, b, tail, fresh) {
				nb, ok := e.applyTransition(tr, b, tail, m, fresh)
				if !ok {
					continue
				}
				mu.Lock()
				children = append(children, nb)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return children, nil
}

// mapping is one valid assignment of a transferring rule's snapshots onto
// frame indices of the builder's history.
type mapping struct {
	sigma term.SigmaMap
}

// resolveMappings enumerates valid ways to bind tr's snapshot graph onto
// b's frame history (spec §4.3: "the substitution that maps the rule's
// snapshot conditions into the nession's accumulated conditions, subject to
// the ordering constraints... one branch per valid mapping"). Every
// snapshot named by one of tr's transitions must resolve to the tail frame
// (a transition can only fire off the cell's current value); every other
// snapshot may resolve to any earlier frame consistent with its LaterThan/
// ModifiedLaterThan edges.
func (e *Engine) resolveMappings(tr *rule.Rule, b *nessionBuilder, tail *Frame, fresh term.SigmaMap) []mapping {
	transitionSnap := map[model.SnapshotID]bool{}
	for _, t := range tr.Transitions() {
		if id, ok := tr.Snapshots().Resolve(t.Label); ok {
			transitionSnap[id] = true
		}
	}
	return resolveSnapshotMappings(tr.Snapshots().All(), tr.Guard(), transitionSnap, b.frames, tail.Index, fresh, e.cfg.effectiveMaxBranching())
}

// resolveSnapshotMappings enumerates valid ways to bind a set of snapshot
// nodes onto b's frame history up to and including tailIdx (spec §4.3: "the
// substitution that maps the rule's snapshot conditions into the nession's
// accumulated conditions, subject to the ordering constraints... one branch
// per valid mapping"). Nodes named in pinned resolve only against tailIdx (a
// state-transferring rule's transition can only fire off the cell's current
// value); every other node may resolve to any frame in [0, tailIdx]
// consistent with its LaterThan/ModifiedLaterThan edges. The same search
// also answers "does this state-consistent rule apply at frame tailIdx",
// with pinned left nil (no snapshot is transition-bound, so the search
// ranges freely over the rule's own internal ordering constraints).
func resolveSnapshotMappings(nodes []*model.Snapshot, guard *term.Guard, pinned map[model.SnapshotID]bool, frames []*Frame, tailIdx int, fresh term.SigmaMap, limit int) []mapping {
	if g2, ok := guard.Substitute(fresh); ok {
		guard = g2
	}

	var out []mapping
	chosen := make(map[model.SnapshotID]int, len(nodes))

	var walk func(i int, f *term.SigmaFactory)
	walk = func(i int, f *term.SigmaFactory) {
		if len(out) >= limit {
			return
		}
		if i == len(nodes) {
			out = append(out, mapping{sigma: f.Result()})
			return
		}
		n := nodes[i]
		condition := fresh.Apply(n.Condition.Value())
		candidates := []int{tailIdx}
		if !pinned[n.ID] {
			candidates = make([]int, tailIdx+1)
			for j := range candidates {
				candidates[j] = j
			}
		}
		for _, idx := range candidates {
			val, ok := frames[idx].Cells[n.Condition.Cell()]
			if !ok {
				continue
			}
			if !respectsOrdering(frames, n, idx, chosen) {
				continue
			}
			fCopy := *f
			if !term.UnifyTo(condition, val, guard, &fCopy) {
				continue
			}
			chosen[n.ID] = idx
			walk(i+1, &fCopy)
			delete(chosen, n.ID)
		}
	}
	walk(0, term.NewSigmaFactory())
	return out
}

var engineRenameCounter int64

func nextEngineRenameTag() string {
	return fmt.Sprintf("n%d", atomic.AddInt64(&engineRenameCounter, 1))
}

// freshVars collects every variable occurring anywhere in tr (premises,
// snapshot conditions, guard, transition targets) and maps each to a fresh
// name tagged by tag.
func freshVars(tr *rule.Rule, tag string) term.SigmaMap {
	vars := map[string]bool{}
	collect := func(m *term.Message) {
		for v := range m.Variables() {
			vars[v] = true
		}
	}
	for _, p := range tr.Premises() {
		collect(p.Event.Message())
	}
	for _, n := range tr.Snapshots().All() {
		collect(n.Condition.Value())
	}
	for _, key := range tr.Guard().UnunifiedKeys() {
		vars[key] = true
		for _, t := range tr.Guard().UnunifiedTerms(key) {
			collect(t)
		}
	}
	for _, key := range tr.Guard().UnunifiableKeys() {
		vars[key] = true
		for _, t := range tr.Guard().UnunifiableTerms(key) {
			collect(t)
		}
	}
	if tr.Kind() == rule.KindStateTransferring {
		for _, t := range tr.Transitions() {
			collect(t.NewState.Value())
		}
	}
	sigma := make(term.SigmaMap, len(vars))
	for v := range vars {
		sigma[v] = term.NewVariable(v + "$" + tag)
	}
	return sigma
}

func respectsOrdering(frames []*Frame, n *model.Snapshot, idx int, chosen map[model.SnapshotID]int) bool {
	for _, t := range n.LaterThan {
		if ci, assigned := chosen[t]; assigned && idx < ci {
			return false
		}
	}
	for _, t := range n.ModifiedLaterThan {
		ci, assigned := chosen[t]
		if !assigned {
			continue
		}
		if idx <= ci {
			return false
		}
		cell := n.Condition.Cell()
		if frames[idx].Cells[cell].Equal(frames[ci].Cells[cell]) {
			return false
		}
	}
	return true
}

// applyTransition builds the child builder for one resolved mapping: the
// new frame's cells carry every transition's new value forward, everything
// else unchanged, and the parent's tail frame records tr as the rule that
// produced it. Returns ok=false if the mapping's bindings contradict the
// builder's accumulated state-variable table.
func (e *Engine) applyTransition(tr *rule.Rule, b *nessionBuilder, tail *Frame, m mapping, fresh term.SigmaMap) (*nessionBuilder, bool) {
	newStateVars := make(term.SigmaMap, len(b.stateVars)+len(m.sigma))
	for v, t := range b.stateVars {
		newStateVars[v] = t
	}
	for v, t := range m.sigma {
		if existing, ok := newStateVars[v]; ok && !existing.Equal(t) {
			return nil, false
		}
		newStateVars[v] = t
	}

	newCells := cloneCells(tail.Cells)
	for _, t := range tr.Transitions() {
		newCells[t.NewState.Cell()] = m.sigma.Apply(fresh.Apply(t.NewState.Value()))
	}

	entryPremises := make([]*term.Message, len(tr.Premises()))
	for i, p := range tr.Premises() {
		entryPremises[i] = m.sigma.Apply(fresh.Apply(p.Event.Message()))
	}

	newTail := &Frame{Index: tail.Index, Cells: tail.Cells, ApplicableRules: tail.ApplicableRules, TransferRule: tr}
	newFrames := make([]*Frame, len(b.frames))
	copy(newFrames, b.frames)
	newFrames[len(newFrames)-1] = newTail

	newFrame := &Frame{Index: tail.Index + 1, Cells: newCells, EntryPremises: entryPremises}
	newFrames = append(newFrames, newFrame)
	newBuilder := &nessionBuilder{frames: newFrames, stateVars: newStateVars}
	newFrame.ApplicableRules = e.computeApplicable(newBuilder, newFrame.Index)

	return newBuilder, true
}

// computeApplicable returns the state-consistent rules whose snapshot graph
// unifies against b's frame history through idx (every snapshot node may
// resolve to any frame in [0, idx], subject to the rule's own LaterThan/
// ModifiedLaterThan edges — the same historical-matching search
// resolveMappings runs for a transferring rule's transition, just with no
// node pinned to idx). Rules with no snapshot requirements at all
// (rule.IsGlobal) are excluded: they are handled by the elaborator directly
// at rank -1, never tied to a frame.
func (e *Engine) computeApplicable(b *nessionBuilder, idx int) []*rule.Rule {
	var out []*rule.Rule
	for _, r := range e.consistentRules {
		if r.IsGlobal() {
			continue
		}
		fresh := freshVars(r, nextEngineRenameTag())
		if len(resolveSnapshotMappings(r.Snapshots().All(), r.Guard(), nil, b.frames, idx, fresh, 1)) > 0 {
			out = append(out, r)
		}
	}
	return out
}

// defaultAlignmentLimit bounds AlignRule's search when callers don't supply
// their own limit, matching Config's own branching default.
const defaultAlignmentLimit = 8

// AlignRule enumerates every valid way to bind r's snapshot graph onto n's
// frame history through frameIdx — the same historical-matching search
// Engine.Run uses internally to populate a frame's ApplicableRules (spec
// §4.3), exposed here so a caller that already has r in hand (from
// Frame.ApplicableRules) can recover the concrete substitution(s) rather
// than just the existence check computeApplicable performs. This is what
// lets the elaborator (spec §4.4: "a rule alignable across a range of
// frames becomes one clause per frame") turn a frame's applicable rules
// into concrete HornClause premises and results. limit <= 0 defaults to
// defaultAlignmentLimit. The returned substitutions are already composed
// with r's own fresh-variable renaming, so callers apply them directly to
// r's premise/result/guard messages.
func AlignRule(n *Nession, frameIdx int, r *rule.Rule, limit int) []term.SigmaMap {
	if limit <= 0 {
		limit = defaultAlignmentLimit
	}
	fresh := freshVars(r, nextEngineRenameTag())
	mappings := resolveSnapshotMappings(r.Snapshots().All(), r.Guard(), nil, n.frames, frameIdx, fresh, limit)
	out := make([]term.SigmaMap, len(mappings))
	for i, m := range mappings {
		out[i] = composeSigma(fresh, m.sigma)
	}
	return out
}

// composeSigma folds a rule's fresh-variable renaming and the snapshot
// search's resulting bindings into one substitution keyed by the rule's
// original variable names, so callers never need to apply fresh and sigma
// as two separate steps.
func composeSigma(fresh, sigma term.SigmaMap) term.SigmaMap {
	out := make(term.SigmaMap, len(fresh))
	for v, fv := range fresh {
		out[v] = sigma.Apply(fv)
	}
	return out
}

// CumulativePremises returns every EntryPremises message accumulated from
// frame 1 through frameIdx of n. A nession is one linear trace, so a
// state-consistent rule reading a snapshot at frameIdx implicitly
// presupposes every earlier transition already fired — pkg/horn adds
// these as extra premises on any clause derived at or after frameIdx, so
// an attack can only use a transferred value the adversary could actually
// have supplied, not a value the engine left as a free pattern variable.
func CumulativePremises(n *Nession, frameIdx int) []*term.Message {
	var out []*term.Message
	frames := n.Frames()
	if frameIdx >= len(frames) {
		frameIdx = len(frames) - 1
	}
	for i := 1; i <= frameIdx; i++ {
		out = append(out, frames[i].EntryPremises...)
	}
	return out
}
