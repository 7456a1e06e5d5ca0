// Package attack implements the recursive, memoized derivability search
// over an elaborated clause set and the attack-tree it reconstructs along
// the way (spec §3 "Attack", §4.5).
package attack

import (
	"github.com/google/uuid"

	"sarsaparilla/pkg/horn"
	"sarsaparilla/pkg/term"
)

// Attack is a proof that query is derivable: the clause whose result
// unified with it, the substitution that refined both into their common
// instance, and one child Attack per premise that clause required (spec §3
// "a tree: (query msg, actual msg derived, generating clause, transformation
// σ, map from premise msg → child Attack)").
type Attack struct {
	id       uuid.UUID
	query    *term.Message
	derived  *term.Message
	clause   *horn.HornClause
	sigma    term.SigmaMap
	premises map[string]*Attack
}

// ID returns the attack's stable identity, handed across the callback ABI
// (spec §4.6) alongside its nession.
func (a *Attack) ID() uuid.UUID { return a.id }

// Query returns the message this node was asked to derive.
func (a *Attack) Query() *term.Message { return a.query }

// Derived returns the actual term produced, refined through Sigma. It may
// be more specific than Query when Query itself carried variables.
func (a *Attack) Derived() *term.Message { return a.derived }

// Clause returns the HornClause whose result unified with Query.
func (a *Attack) Clause() *horn.HornClause { return a.clause }

// Sigma returns the substitution unifying Clause's result with Query.
func (a *Attack) Sigma() term.SigmaMap { return a.sigma }

// Premises returns the child attacks, keyed by the (substituted) premise
// message they derive.
func (a *Attack) Premises() map[string]*Attack { return a.premises }

func (a *Attack) String() string {
	return a.derived.String() + " via " + a.clause.String()
}
