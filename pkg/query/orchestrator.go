// Package query implements the Query Orchestrator (spec §4.6): the
// long-running search that drives nession generation and Horn-clause
// elaboration cooperatively, reporting per-nession results through a
// callback ABI and honoring cancellation and time budgets (spec §5, §7).
package query

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"sarsaparilla/pkg/attack"
	"sarsaparilla/pkg/horn"
	"sarsaparilla/pkg/nession"
	"sarsaparilla/pkg/rule"
	"sarsaparilla/pkg/term"
)

// Status reports how an Execute call ended (spec §7: "budget and
// cancellation are surfaced via on_complete() with a status field and
// never as exceptions").
type Status int

const (
	// StatusCompleted means every configured depth level was generated,
	// elaborated and queried (or the search stopped early because an
	// attack was found and no deeper nessions were worth generating).
	StatusCompleted Status = iota
	// StatusGlobalAttack means a query was derivable from the
	// globally-applicable rules alone, before any nession was built (spec
	// §4.5's "global attack" short-circuit).
	StatusGlobalAttack
	// StatusCancelled means Cancel was called before the search completed.
	StatusCancelled
	// StatusTimedOut means PerQueryTimeBudget elapsed before the search
	// completed.
	StatusTimedOut
)

func (s Status) String() string {
	switch s {
	case StatusCompleted:
		return "completed"
	case StatusGlobalAttack:
		return "global-attack"
	case StatusCancelled:
		return "cancelled"
	case StatusTimedOut:
		return "timed-out"
	default:
		return "unknown"
	}
}

// Result is the value handed to Callbacks.OnComplete and returned from
// Execute.
type Result struct {
	Status Status
	// GlobalAttacks holds, keyed by query text, the attacks found against
	// the globally-applicable rules alone. Populated only when Status is
	// StatusGlobalAttack.
	GlobalAttacks map[string]*attack.Attack
	// FirstAttackDepth is the depth (1-based) of the first nession level
	// at which any query resolved to an attack, or -1 if none did (spec
	// §4.6: "records the first depth at which any attack is found").
	FirstAttackDepth int
}

// Callbacks is the orchestrator's callback ABI (spec §4.6, §5): invoked in
// order and never overlapping. Any field may be left nil.
type Callbacks struct {
	// OnLevelStart fires once per depth increment, before that level's
	// nessions are generated.
	OnLevelStart func(depth int)
	// OnNessionAssessed fires once per finalized nession, after its
	// clauses have been elaborated and every query searched against them.
	// atk is nil if no query was derivable from clauses.
	OnNessionAssessed func(n *nession.Nession, clauses []*horn.HornClause, atk *attack.Attack)
	// OnComplete fires exactly once, however the search ends.
	OnComplete func(Result)
}

// Orchestrator owns one long-running stateful-protocol query (spec §4.6).
// A single Orchestrator is built for one (rules, initial states, queries)
// triple; Execute may be called more than once (each call gets its own
// cancellation scope), but concurrent calls on the same Orchestrator are
// not supported, mirroring the single-threaded-per-query model of spec §5.
type Orchestrator struct {
	rules   []*rule.Rule
	initial map[string]*term.Message
	queries []*term.Message
	cfg     Config
	metrics *Metrics
	logger  hclog.Logger

	mu       sync.Mutex
	cancelFn context.CancelFunc
}

// Option configures an Orchestrator at construction time.
type Option func(*Orchestrator)

// WithLogger overrides the orchestrator's hclog.Logger (default: a logger
// that discards everything).
func WithLogger(l hclog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics attaches a Metrics instance the orchestrator updates as it
// runs. Metrics is nil-safe, so this option is optional.
func WithMetrics(m *Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// NewOrchestrator builds an Orchestrator over rules, the declared initial
// cell values, and the set of leak queries to search for (spec §6
// "make_query_engine(rules, initial_states, queries)").
func NewOrchestrator(rules []*rule.Rule, initial map[string]*term.Message, queries []*term.Message, cfg Config, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		rules:   rules,
		initial: initial,
		queries: queries,
		cfg:     cfg.withDefaults(),
		logger:  hclog.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Cancel cooperatively aborts an in-flight Execute call (spec §4.6
// "cancel()", §5 "a flag is polled at the suspension points"). Safe to
// call before Execute starts (the cancellation is simply observed
// immediately) or after it has already finished (a no-op).
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	fn := o.cancelFn
	o.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Execute runs the query to completion, a budget, or cancellation (spec
// §4.6 "execute(onLevelStart, onNessionAssessed, onComplete)"): it first
// checks for a global attack (§4.5), then iterates nession depth 1..N,
// generating, elaborating and querying each depth's nessions before
// advancing. It records the first depth at which any query resolves to an
// attack and stops generating deeper nessions, without interrupting
// elaboration already in flight for the current depth (§4.6).
func (o *Orchestrator) Execute(ctx context.Context, cb Callbacks) Result {
	start := time.Now()

	ctx, cancelQuery := context.WithCancel(ctx)
	defer cancelQuery()
	if o.cfg.PerQueryTimeBudget > 0 {
		var timeoutCancel context.CancelFunc
		ctx, timeoutCancel = context.WithTimeout(ctx, o.cfg.PerQueryTimeBudget)
		defer timeoutCancel()
	}
	o.mu.Lock()
	o.cancelFn = cancelQuery
	o.mu.Unlock()

	var once sync.Once
	var result Result
	complete := func(r Result) Result {
		once.Do(func() {
			result = r
			o.metrics.observeDuration(start)
			o.logger.Debug("query complete", "status", r.Status.String(), "first_attack_depth", r.FirstAttackDepth)
			if cb.OnComplete != nil {
				cb.OnComplete(r)
			}
		})
		return result
	}

	global := horn.GlobalClauses(o.rules)
	globalAttacks := map[string]*attack.Attack{}
	for _, q := range o.queries {
		if ctx.Err() != nil {
			break
		}
		if a, ok := attack.GlobalAttack(ctx, q, global); ok {
			globalAttacks[q.String()] = a
		}
	}
	if len(globalAttacks) > 0 {
		for range globalAttacks {
			o.metrics.addAttack()
		}
		o.logger.Debug("global attack found", "count", len(globalAttacks))
		return complete(Result{Status: StatusGlobalAttack, GlobalAttacks: globalAttacks, FirstAttackDepth: -1})
	}

	firstAttackDepth := -1

depths:
	for depth := 1; depth <= o.cfg.MaxNessionDepth; depth++ {
		if ctx.Err() != nil {
			break
		}
		if cb.OnLevelStart != nil {
			cb.OnLevelStart(depth)
		}
		o.logger.Trace("level start", "depth", depth)
		if ctx.Err() != nil {
			break
		}

		// Each level is generated from scratch bounded to that depth
		// rather than incrementally extending the previous level's
		// frontier: Engine.Run already finalizes a branch the moment it
		// can't extend further or hits MaxFrames, so a fresh run per depth
		// is what "iterates nession depth 1..N, within each depth
		// generates all nessions" (spec §4.6) means operationally — there
		// is no separate notion of "resume the frontier from depth d-1".
		eng := nession.NewEngine(o.rules, nession.Config{
			MaxFrames:            depth,
			MaxBranchingPerFrame: o.cfg.MaxBranchingPerFrame,
		})
		nessions, err := eng.Run(ctx, o.initial)
		if err != nil {
			o.logger.Warn("nession generation failed", "depth", depth, "error", err)
			break
		}
		o.metrics.addNessions(len(nessions))

		levelHasAttack := false
		for _, n := range nessions {
			if ctx.Err() != nil {
				break depths
			}

			nctx := ctx
			var nessionCancel context.CancelFunc
			if o.cfg.PerNessionTimeBudget > 0 {
				nctx, nessionCancel = context.WithTimeout(ctx, o.cfg.PerNessionTimeBudget)
			}

			clauses := horn.FromNession(n, o.rules)
			elaborated := horn.Elaborate(nctx, clauses, o.cfg.budget())
			o.metrics.addClauses(elaborated)

			var found *attack.Attack
			for _, q := range o.queries {
				if a, ok := attack.Search(nctx, q, elaborated); ok {
					found = a
					break
				}
			}
			if nessionCancel != nil {
				nessionCancel()
			}
			if found != nil {
				o.metrics.addAttack()
				levelHasAttack = true
			}

			o.logger.Trace("nession assessed", "label", n.Label(), "clauses", len(elaborated), "attack", found != nil)
			if cb.OnNessionAssessed != nil {
				cb.OnNessionAssessed(n, elaborated, found)
			}
			if ctx.Err() != nil {
				break depths
			}
		}

		if levelHasAttack {
			firstAttackDepth = depth
			break
		}
	}

	status := StatusCompleted
	switch ctx.Err() {
	case context.Canceled:
		status = StatusCancelled
	case context.DeadlineExceeded:
		status = StatusTimedOut
	}
	return complete(Result{Status: status, FirstAttackDepth: firstAttackDepth})
}
