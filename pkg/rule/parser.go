package rule

import (
	"fmt"

	"sarsaparilla/pkg/model"
	"sarsaparilla/pkg/term"
)

// ParseRule parses the spec §4.2 rule grammar:
//
//	rule      := [label '='] [guard] [premises] '-[' snapshots ']->' result
//	guard     := '[' guardTerm (',' guardTerm)* ']'
//	guardTerm := msg ('~/>'|'=/=') msg
//	premises  := event (',' event)*
//	event     := ('k'|'know'|'n'|'new'|'m'|'make') '(' msg ')' ['(' label ')']
//	snapshots := (state (',' state)*)? [':' '{' ord (',' ord)* '}']
//	state     := '(' stateExpr ',' label ')'
//	ord       := label ('=<'|'≤'|'<@'|'⋖') label
//	result    := event | ('<' label ':' stateExpr '>')+
//
// The corresp clause of premises (": { corresp, ... }") is deliberately
// unsupported: the spec never defines the corresp nonterminal and no
// worked scenario exercises it (SPEC_FULL.md). A rule text that uses it
// produces a ParseError naming the construct rather than silently
// ignoring it.
func ParseRule(input string) (*Rule, error) {
	rp := &ruleParser{lx: term.NewLexer(input), input: input}
	rp.advance()
	r, err := rp.parseRule()
	if err != nil {
		return nil, err
	}
	if rp.tok.Kind() != term.TokEOF {
		return nil, term.NewParseError(input, rp.tok.Pos(), "unexpected trailing input %q", rp.tok.Text())
	}
	return r, nil
}

type ruleParser struct {
	lx    *term.Lexer
	tok   term.Token
	input string
}

func (rp *ruleParser) advance() { rp.tok = rp.lx.Next() }

func (rp *ruleParser) errorf(format string, args ...any) error {
	return term.NewParseError(rp.input, rp.tok.Pos(), format, args...)
}

func (rp *ruleParser) expect(kind term.TokenKind, what string) (term.Token, error) {
	if rp.tok.Kind() != kind {
		return term.Token{}, rp.errorf("expected %s, found %q", what, rp.tok.Text())
	}
	t := rp.tok
	rp.advance()
	return t, nil
}

// parseMessage parses one msg non-terminal starting at the parser's
// current token, using the shared term tokenizer/parser in continuation
// mode so the rule grammar and the message grammar can share one stream.
func (rp *ruleParser) parseMessage() (*term.Message, error) {
	m, next, err := term.ParseMessageContinuation(rp.lx, rp.tok, rp.input)
	if err != nil {
		return nil, err
	}
	rp.tok = next
	return m, nil
}

func (rp *ruleParser) parseGuardTerm() (*term.Guard, error) {
	g, next, err := term.ParseGuardTermContinuation(rp.lx, rp.tok, rp.input)
	if err != nil {
		return nil, err
	}
	rp.tok = next
	return g, nil
}

func (rp *ruleParser) parseRule() (*Rule, error) {
	b := NewBuilder(Source{Kind: SourceUserGiven})

	label, err := rp.maybeParseLabel()
	if err != nil {
		return nil, err
	}
	b.WithLabel(label)

	if rp.tok.Kind() == term.TokLBracket {
		g, err := rp.parseGuardBracket()
		if err != nil {
			return nil, err
		}
		b.WithGuard(g)
	}

	// Premises are optional: a rule may open straight at "-[" with no
	// events at all (spec S3's second rule, an empty-premise-list
	// state-consistent rule keyed only off its snapshot history).
	if rp.tok.Kind() == term.TokIdent {
		if _, ok := eventKeywords[rp.tok.Text()]; ok {
			if err := rp.parsePremises(b); err != nil {
				return nil, err
			}
		}
	}

	if _, err := rp.expect(term.TokArrowOpen, "'-['"); err != nil {
		return nil, err
	}
	if err := rp.parseSnapshots(b); err != nil {
		return nil, err
	}
	if _, err := rp.expect(term.TokArrowClose, "']->'"); err != nil {
		return nil, err
	}

	if err := rp.parseResult(b); err != nil {
		return nil, err
	}

	return b.Build()
}

// maybeParseLabel consumes a leading "label =" if present. One token of
// lookahead (beyond the already-lexed current token) suffices: every
// other construct that can open a rule (a guard's '[' or an event's
// identifier-then-'(') is distinguishable from "ident =" without further
// backtracking.
func (rp *ruleParser) maybeParseLabel() (string, error) {
	if rp.tok.Kind() != term.TokIdent {
		return "", nil
	}
	if rp.lx.Peek().Kind() != term.TokEquals {
		return "", nil
	}
	label := rp.tok.Text()
	rp.advance() // consume ident
	rp.advance() // consume '='
	return label, nil
}

func (rp *ruleParser) parseGuardBracket() (*term.Guard, error) {
	if _, err := rp.expect(term.TokLBracket, "'['"); err != nil {
		return nil, err
	}
	g := term.NewGuard()
	if rp.tok.Kind() == term.TokRBracket {
		rp.advance()
		return g, nil
	}
	for {
		gt, err := rp.parseGuardTerm()
		if err != nil {
			return nil, err
		}
		g = g.Union(gt)
		if rp.tok.Kind() == term.TokComma {
			rp.advance()
			continue
		}
		break
	}
	if _, err := rp.expect(term.TokRBracket, "']'"); err != nil {
		return nil, err
	}
	return g, nil
}

var eventKeywords = map[string]model.EventKind{
	"k": model.EventKnow, "know": model.EventKnow,
	"n": model.EventNew, "new": model.EventNew,
	"m": model.EventMake, "make": model.EventMake,
}

// parseEvent parses one event, returning the built model.Event and the
// optional trailing "(label)" snapshot reference ("" if absent).
func (rp *ruleParser) parseEvent() (*model.Event, string, error) {
	if rp.tok.Kind() != term.TokIdent {
		return nil, "", rp.errorf("expected event keyword (k/know/n/new/m/make), found %q", rp.tok.Text())
	}
	kind, ok := eventKeywords[rp.tok.Text()]
	if !ok {
		return nil, "", rp.errorf("unknown event keyword %q", rp.tok.Text())
	}
	msg, err := rp.parseMessage()
	if err != nil {
		return nil, "", err
	}
	if msg.Kind() != term.KindFunction || len(msg.Params()) != 1 {
		return nil, "", rp.errorf("event must have the form kind(msg)")
	}
	payload := msg.Params()[0]
	var ev *model.Event
	switch kind {
	case model.EventKnow:
		ev = model.NewKnowEvent(payload)
	case model.EventMake:
		ev = model.NewMakeEvent(payload)
	case model.EventNew:
		ev, err = model.NewNewEvent(payload)
		if err != nil {
			return nil, "", fmt.Errorf("rule: %w", err)
		}
	}
	label := ""
	if rp.tok.Kind() == term.TokLParen {
		rp.advance()
		lt, err := rp.expect(term.TokIdent, "snapshot label")
		if err != nil {
			return nil, "", err
		}
		label = lt.Text()
		if _, err := rp.expect(term.TokRParen, "')'"); err != nil {
			return nil, "", err
		}
	}
	return ev, label, nil
}

func (rp *ruleParser) parsePremises(b *Builder) error {
	for {
		ev, label, err := rp.parseEvent()
		if err != nil {
			return err
		}
		b.AddPremise(ev, label)
		if rp.tok.Kind() == term.TokComma {
			rp.advance()
			continue
		}
		break
	}
	if rp.tok.Kind() == term.TokColon {
		return rp.errorf("premise correspondence annotations (': { corresp, ... }') are not supported")
	}
	return nil
}

// stateDecl is one parsed "(stateExpr, label)" entry, collected before its
// ordering edges (declared separately, in the trailing ord clause) are
// known.
type stateDecl struct {
	label string
	state model.State
}

func (rp *ruleParser) parseStateExpr() (model.State, error) {
	msg, err := rp.parseMessage()
	if err != nil {
		return model.State{}, err
	}
	if msg.Kind() != term.KindFunction || len(msg.Params()) != 1 {
		return model.State{}, rp.errorf("state must have the form cell(value)")
	}
	return model.NewState(msg.Text(), msg.Params()[0]), nil
}

func (rp *ruleParser) parseSnapshots(b *Builder) error {
	var decls []stateDecl
	if rp.tok.Kind() == term.TokLParen {
		for {
			if _, err := rp.expect(term.TokLParen, "'('"); err != nil {
				return err
			}
			st, err := rp.parseStateExpr()
			if err != nil {
				return err
			}
			if _, err := rp.expect(term.TokComma, "','"); err != nil {
				return err
			}
			labelTok, err := rp.expect(term.TokIdent, "snapshot label")
			if err != nil {
				return err
			}
			if _, err := rp.expect(term.TokRParen, "')'"); err != nil {
				return err
			}
			decls = append(decls, stateDecl{label: labelTok.Text(), state: st})
			if rp.tok.Kind() == term.TokComma {
				rp.advance()
				continue
			}
			break
		}
	}

	// laterThan[label] collects every snapshot label asserted (via ord) to
	// precede-or-equal it; the weaker of the two arena edges (spec §4.2's
	// single "precede" relation has no stricter counterpart in the textual
	// grammar, so every ord edge becomes a LaterThan edge — see SPEC_FULL.md).
	laterThan := map[string][]string{}
	if rp.tok.Kind() == term.TokColon {
		rp.advance()
		if _, err := rp.expect(term.TokLBrace, "'{'"); err != nil {
			return err
		}
		for {
			leftTok, err := rp.expect(term.TokIdent, "snapshot label")
			if err != nil {
				return err
			}
			if rp.tok.Kind() != term.TokPrecede {
				return rp.errorf("expected a precedence operator ('=<', '<@', '≤' or '⋖'), found %q", rp.tok.Text())
			}
			rp.advance()
			rightTok, err := rp.expect(term.TokIdent, "snapshot label")
			if err != nil {
				return err
			}
			laterThan[rightTok.Text()] = append(laterThan[rightTok.Text()], leftTok.Text())
			if rp.tok.Kind() == term.TokComma {
				rp.advance()
				continue
			}
			break
		}
		if _, err := rp.expect(term.TokRBrace, "'}'"); err != nil {
			return err
		}
	}

	for _, d := range decls {
		if err := b.AddSnapshot(d.label, d.state, laterThan[d.label], nil, nil); err != nil {
			return err
		}
	}
	return nil
}

func (rp *ruleParser) parseResult(b *Builder) error {
	if rp.tok.Kind() == term.TokLAngle {
		for rp.tok.Kind() == term.TokLAngle {
			rp.advance()
			labelTok, err := rp.expect(term.TokIdent, "transition label")
			if err != nil {
				return err
			}
			if _, err := rp.expect(term.TokColon, "':'"); err != nil {
				return err
			}
			st, err := rp.parseStateExpr()
			if err != nil {
				return err
			}
			if _, err := rp.expect(term.TokRAngle, "'>'"); err != nil {
				return err
			}
			b.AddTransition(labelTok.Text(), st)
		}
		return nil
	}
	ev, _, err := rp.parseEvent()
	if err != nil {
		return err
	}
	b.SetResult(ev)
	return nil
}
