package query

import (
	"time"

	"sarsaparilla/pkg/horn"
)

// Strategy selects the elaborator's pending-clause ordering (spec §6
// "elaboration_strategy"). It is horn.Strategy itself, not a wrapper type,
// so a Config's ElaborationStrategy field plugs directly into
// horn.Budget.Strategy with no translation step.
type Strategy = horn.Strategy

const (
	PriorityByRank = horn.PriorityByRank
	BreadthFirst   = horn.BreadthFirst
)

// Config bounds one Orchestrator query (spec §6 "Configuration options").
type Config struct {
	// MaxNessionDepth bounds how many depth levels the orchestrator will
	// drive the nession engine through. <= 0 defaults to 6.
	MaxNessionDepth int
	// MaxMessageDepth bounds the elaborator's clause-message depth (spec
	// §4.4, §6). <= 0 defaults to 20.
	MaxMessageDepth int
	// MaxBranchingPerFrame bounds the nession engine's per-frame fan-out
	// (spec §4.3, §6). <= 0 defaults to 8.
	MaxBranchingPerFrame int
	// PerNessionTimeBudget bounds one nession's generation+elaboration+
	// search wall clock. 0 means unbounded.
	PerNessionTimeBudget time.Duration
	// PerQueryTimeBudget bounds the whole Execute call's wall clock. 0
	// means unbounded.
	PerQueryTimeBudget time.Duration
	// ElaborationStrategy selects the elaborator's clause ordering.
	ElaborationStrategy Strategy
}

// withDefaults returns a copy of c with every non-positive bound replaced
// by its spec §6 default.
func (c Config) withDefaults() Config {
	if c.MaxNessionDepth <= 0 {
		c.MaxNessionDepth = 6
	}
	if c.MaxMessageDepth <= 0 {
		c.MaxMessageDepth = 20
	}
	if c.MaxBranchingPerFrame <= 0 {
		c.MaxBranchingPerFrame = 8
	}
	return c
}

func (c Config) budget() horn.Budget {
	return horn.Budget{
		MaxMessageDepth: c.MaxMessageDepth,
		MaxRank:         -1,
		MaxSteps:        -1,
		Strategy:        c.ElaborationStrategy,
	}
}
