package rule

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"sarsaparilla/pkg/model"
	"sarsaparilla/pkg/term"
)

// ParseCorpus parses a batch of independent rule texts, continuing past
// individual failures and returning every successfully parsed rule
// alongside an aggregate error describing every line that failed (spec
// §6's external interface treats a corpus load as "parse what you can,
// report everything that's wrong").
func ParseCorpus(texts []string) ([]*Rule, error) {
	var rules []*Rule
	var errs *multierror.Error
	for i, text := range texts {
		r, err := ParseRule(text)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("rule %d: %w", i, err))
			continue
		}
		rules = append(rules, r)
	}
	return rules, errs.ErrorOrNil()
}

// ValidateInitialStates validates the cell declarations that seed the
// nession engine (spec §3: "Cell names are finite and declared by initial
// states."). Every cell name must be distinct and every value must be
// ground — the engine's starting knowledge is fixed, not an adversary
// pattern. Continues past individual failures like ParseCorpus, returning
// every well-formed cell binding plus an aggregate error for every
// ill-formed one.
func ValidateInitialStates(states []model.State) (map[string]*term.Message, error) {
	out := make(map[string]*term.Message, len(states))
	var errs *multierror.Error
	for i, s := range states {
		if s.Value().ContainsVariables() {
			errs = multierror.Append(errs, fmt.Errorf("initial state %d (%s): value must be ground, got %s", i, s.Cell(), s.Value()))
			continue
		}
		if _, dup := out[s.Cell()]; dup {
			errs = multierror.Append(errs, fmt.Errorf("initial state %d: cell %q declared more than once", i, s.Cell()))
			continue
		}
		out[s.Cell()] = s.Value()
	}
	return out, errs.ErrorOrNil()
}
