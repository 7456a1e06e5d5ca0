package term

// ParseMessage parses the surface notation described in spec §3:
// name[]          -> Name
// [name]          -> Nonce
// name            -> Variable
// f(a, b, ...)    -> Function
// <a, b, ...>     -> Tuple
func ParseMessage(input string) (*Message, error) {
	p := &msgParser{lx: newLexer(input), input: input}
	p.advance()
	m, err := p.parseMessage()
	if err != nil {
		return nil, err
	}
	if p.tok.kind != tokEOF {
		return nil, NewParseError(input, p.tok.pos, "unexpected trailing input %q", p.tok.text)
	}
	return m, nil
}

type msgParser struct {
	lx    *lexer
	tok   token
	input string
}

func (p *msgParser) advance() { p.tok = p.lx.next() }

func (p *msgParser) parseMessage() (*Message, error) {
	switch p.tok.kind {
	case tokLBracket:
		p.advance()
		if p.tok.kind != tokIdent {
			return nil, NewParseError(p.input, p.tok.pos, "expected nonce name inside [...]")
		}
		name := p.tok.text
		p.advance()
		if p.tok.kind != tokRBracket {
			return nil, NewParseError(p.input, p.tok.pos, "expected ']' closing nonce")
		}
		p.advance()
		return NewNonce(name), nil
	case tokLAngle:
		p.advance()
		members, err := p.parseMessageListUntil(tokRAngle)
		if err != nil {
			return nil, err
		}
		p.advance() // consume '>'
		return NewTuple(members...), nil
	case tokIdent:
		name := p.tok.text
		pos := p.tok.pos
		p.advance()
		switch p.tok.kind {
		case tokLBracket:
			p.advance()
			if p.tok.kind != tokRBracket {
				return nil, NewParseError(p.input, p.tok.pos, "expected ']' after name, found %q", p.tok.text)
			}
			p.advance()
			return NewName(name), nil
		case tokLParen:
			p.advance()
			params, err := p.parseMessageListUntil(tokRParen)
			if err != nil {
				return nil, err
			}
			p.advance() // consume ')'
			return NewFunction(name, params...), nil
		default:
			if name == "" {
				return nil, NewParseError(p.input, pos, "expected identifier")
			}
			return NewVariable(name), nil
		}
	default:
		return nil, NewParseError(p.input, p.tok.pos, "unexpected token %q parsing message", p.tok.text)
	}
}

func (p *msgParser) parseMessageListUntil(closer tokenKind) ([]*Message, error) {
	var out []*Message
	if p.tok.kind == closer {
		return out, nil
	}
	for {
		m, err := p.parseMessage()
		if err != nil {
			return nil, err
		}
		out = append(out, m)
		if p.tok.kind == tokComma {
			p.advance()
			continue
		}
		if p.tok.kind == closer {
			return out, nil
		}
		return nil, NewParseError(p.input, p.tok.pos, "expected ',' or closing delimiter, found %q", p.tok.text)
	}
}
