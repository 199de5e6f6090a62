package domain

import "fmt"

// AST for the filter mini-language. Deliberately small: literal lists,
// tuples, the two whitelisted date helpers and arithmetic between their
// results. There is no general evaluation here, which removes the
// evaluator-escape surface a sandboxed interpreter would carry.

type node interface{}

type strNode struct{ val string }

type intNode struct{ val int64 }

type floatNode struct{ val float64 }

type boolNode struct{ val bool }

type noneNode struct{}

type listNode struct{ items []node }

type tupleNode struct{ items []node }

type nameNode struct{ name string }

type attrNode struct {
	recv node
	name string
}

type callNode struct {
	recv   node
	args   []node
	kwargs []kwarg
}

type kwarg struct {
	name string
	val  node
}

type binNode struct {
	op    byte // '+' or '-'
	left  node
	right node
}

type negNode struct{ operand node }

type parser struct {
	tokens []token
	pos    int
}

// parseExpression parses a full candidate string into an AST.
func parseExpression(input string) (node, error) {
	tokens, err := tokenize(input)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	n, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.peek().typ != tokEOF {
		return nil, fmt.Errorf("unexpected trailing input at position %d", p.peek().pos)
	}
	return n, nil
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) next() token {
	t := p.tokens[p.pos]
	if t.typ != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) expect(typ tokenType, what string) (token, error) {
	t := p.next()
	if t.typ != typ {
		return t, fmt.Errorf("expected %s at position %d, got %q", what, t.pos, t.val)
	}
	return t, nil
}

// expr := postfix (('+'|'-') postfix)*
func (p *parser) parseExpr() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.typ != tokPlus && t.typ != tokMinus {
			return left, nil
		}
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		op := byte('+')
		if t.typ == tokMinus {
			op = '-'
		}
		left = binNode{op: op, left: left, right: right}
	}
}

func (p *parser) parseUnary() (node, error) {
	if p.peek().typ == tokMinus {
		p.next()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return negNode{operand: operand}, nil
	}
	return p.parsePostfix()
}

// postfix := primary ('.' name | '(' args ')')*
func (p *parser) parsePostfix() (node, error) {
	n, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		switch t.typ {
		case tokDot:
			p.next()
			name, err := p.expect(tokName, "attribute name")
			if err != nil {
				return nil, err
			}
			n = attrNode{recv: n, name: name.val}
		case tokLParen:
			p.next()
			args, kwargs, err := p.parseCallArgs()
			if err != nil {
				return nil, err
			}
			n = callNode{recv: n, args: args, kwargs: kwargs}
		default:
			return n, nil
		}
	}
}

func (p *parser) parseCallArgs() ([]node, []kwarg, error) {
	var args []node
	var kwargs []kwarg
	if p.peek().typ == tokRParen {
		p.next()
		return args, kwargs, nil
	}
	for {
		// keyword argument: name '=' expr
		if p.peek().typ == tokName && p.tokens[p.pos+1].typ == tokEquals {
			name := p.next().val
			p.next() // '='
			val, err := p.parseExpr()
			if err != nil {
				return nil, nil, err
			}
			kwargs = append(kwargs, kwarg{name: name, val: val})
		} else {
			if len(kwargs) > 0 {
				return nil, nil, fmt.Errorf("positional argument after keyword argument at position %d", p.peek().pos)
			}
			val, err := p.parseExpr()
			if err != nil {
				return nil, nil, err
			}
			args = append(args, val)
		}
		t := p.next()
		if t.typ == tokRParen {
			return args, kwargs, nil
		}
		if t.typ != tokComma {
			return nil, nil, fmt.Errorf("expected ',' or ')' in call at position %d, got %q", t.pos, t.val)
		}
		if p.peek().typ == tokRParen { // trailing comma
			p.next()
			return args, kwargs, nil
		}
	}
}

func (p *parser) parsePrimary() (node, error) {
	t := p.peek()
	switch t.typ {
	case tokString:
		p.next()
		return strNode{val: t.val}, nil
	case tokNumber:
		p.next()
		return parseNumber(t)
	case tokName:
		p.next()
		switch t.val {
		case "True":
			return boolNode{val: true}, nil
		case "False":
			return boolNode{val: false}, nil
		case "None":
			return noneNode{}, nil
		}
		return nameNode{name: t.val}, nil
	case tokLBracket:
		p.next()
		return p.parseList()
	case tokLParen:
		p.next()
		return p.parseParenOrTuple()
	default:
		return nil, fmt.Errorf("unexpected token %q at position %d", t.val, t.pos)
	}
}

func (p *parser) parseList() (node, error) {
	var items []node
	if p.peek().typ == tokRBracket {
		p.next()
		return listNode{items: items}, nil
	}
	for {
		item, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		t := p.next()
		if t.typ == tokRBracket {
			return listNode{items: items}, nil
		}
		if t.typ != tokComma {
			return nil, fmt.Errorf("expected ',' or ']' at position %d, got %q", t.pos, t.val)
		}
		if p.peek().typ == tokRBracket { // trailing comma
			p.next()
			return listNode{items: items}, nil
		}
	}
}

// A parenthesized expression is a tuple when it contains a comma,
// otherwise plain grouping.
func (p *parser) parseParenOrTuple() (node, error) {
	if p.peek().typ == tokRParen {
		p.next()
		return tupleNode{}, nil
	}
	first, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	t := p.next()
	if t.typ == tokRParen {
		return first, nil
	}
	if t.typ != tokComma {
		return nil, fmt.Errorf("expected ',' or ')' at position %d, got %q", t.pos, t.val)
	}
	items := []node{first}
	if p.peek().typ == tokRParen {
		p.next()
		return tupleNode{items: items}, nil
	}
	for {
		item, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		t := p.next()
		if t.typ == tokRParen {
			return tupleNode{items: items}, nil
		}
		if t.typ != tokComma {
			return nil, fmt.Errorf("expected ',' or ')' at position %d, got %q", t.pos, t.val)
		}
		if p.peek().typ == tokRParen {
			p.next()
			return tupleNode{items: items}, nil
		}
	}
}

func parseNumber(t token) (node, error) {
	for i := 0; i < len(t.val); i++ {
		if t.val[i] == '.' {
			var f float64
			if _, err := fmt.Sscanf(t.val, "%g", &f); err != nil {
				return nil, fmt.Errorf("invalid number %q at position %d", t.val, t.pos)
			}
			return floatNode{val: f}, nil
		}
	}
	var n int64
	if _, err := fmt.Sscanf(t.val, "%d", &n); err != nil {
		return nil, fmt.Errorf("invalid number %q at position %d", t.val, t.pos)
	}
	return intNode{val: n}, nil
}
