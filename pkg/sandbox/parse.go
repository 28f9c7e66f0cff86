package sandbox

import (
	"fmt"
)

// resultName is the binding a program must produce.
const resultName = "result"

type node interface{}

type numberLit struct {
	value float64
}

type stringLit struct {
	value string
}

// ident resolves at evaluation time: a prior local binding shadows an input
// column of the same name.
type ident struct {
	name string
	line int
}

type unaryExpr struct {
	op    tokenKind
	right node
}

type binaryExpr struct {
	op    tokenKind
	opTxt string
	left  node
	right node
}

type callExpr struct {
	fn   string
	args []node
	line int
}

type assignment struct {
	name string
	expr node
	line int
}

type program struct {
	statements []assignment
}

type parser struct {
	tokens []token
	pos    int
}

// parse turns source text into a program and rejects anything outside the
// whitelisted grammar. A program that never assigns "result" is rejected
// here, before any evaluation.
func parse(src string) (*program, error) {
	tokens, err := scan(src)
	if err != nil {
		return nil, err
	}

	p := &parser{tokens: tokens}
	prog := &program{}

	for {
		p.skipNewlines()
		if p.peek().kind == tokEOF {
			break
		}
		stmt, err := p.parseAssignment()
		if err != nil {
			return nil, err
		}
		prog.statements = append(prog.statements, stmt)

		next := p.peek()
		if next.kind != tokNewline && next.kind != tokEOF {
			return nil, fmt.Errorf("line %d: unexpected %q after statement", next.line, next.text)
		}
	}

	if len(prog.statements) == 0 {
		return nil, fmt.Errorf("computation logic is empty")
	}

	bindsResult := false
	for _, stmt := range prog.statements {
		if stmt.name == resultName {
			bindsResult = true
		}
	}
	if !bindsResult {
		return nil, fmt.Errorf("computation logic must assign a value to %q", resultName)
	}

	return prog, nil
}

func (p *parser) parseAssignment() (assignment, error) {
	name := p.peek()
	if name.kind != tokIdent {
		return assignment{}, fmt.Errorf("line %d: expected assignment, got %q", name.line, name.text)
	}
	p.next()

	if eq := p.peek(); eq.kind != tokAssign {
		return assignment{}, fmt.Errorf("line %d: expected assignment, got %q without '='", name.line, name.text)
	}
	p.next()

	expr, err := p.parseExpr()
	if err != nil {
		return assignment{}, err
	}

	return assignment{name: name.text, expr: expr, line: name.line}, nil
}

func (p *parser) parseExpr() (node, error) {
	return p.parseComparison()
}

func (p *parser) parseComparison() (node, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}

	switch op := p.peek(); op.kind {
	case tokEq, tokNe, tokLt, tokLe, tokGt, tokGe:
		p.next()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return binaryExpr{op: op.kind, opTxt: op.text, left: left, right: right}, nil
	}
	return left, nil
}

func (p *parser) parseAdditive() (node, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}

	for {
		op := p.peek()
		if op.kind != tokPlus && op.kind != tokMinus {
			return left, nil
		}
		p.next()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = binaryExpr{op: op.kind, opTxt: op.text, left: left, right: right}
	}
}

func (p *parser) parseMultiplicative() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	for {
		op := p.peek()
		if op.kind != tokStar && op.kind != tokSlash {
			return left, nil
		}
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = binaryExpr{op: op.kind, opTxt: op.text, left: left, right: right}
	}
}

func (p *parser) parseUnary() (node, error) {
	if p.peek().kind == tokMinus {
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return unaryExpr{op: tokMinus, right: right}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (node, error) {
	tok := p.peek()
	switch tok.kind {
	case tokNumber:
		p.next()
		return numberLit{value: tok.num}, nil
	case tokString:
		p.next()
		return stringLit{value: tok.text}, nil
	case tokLParen:
		p.next()
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if p.peek().kind != tokRParen {
			return nil, fmt.Errorf("line %d: expected ')'", tok.line)
		}
		p.next()
		return expr, nil
	case tokIdent:
		p.next()
		if p.peek().kind != tokLParen {
			return ident{name: tok.text, line: tok.line}, nil
		}
		p.next() // consume '('
		var args []node
		if p.peek().kind != tokRParen {
			for {
				arg, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				args = append(args, arg)
				if p.peek().kind != tokComma {
					break
				}
				p.next()
			}
		}
		if p.peek().kind != tokRParen {
			return nil, fmt.Errorf("line %d: expected ')' in call to %q", tok.line, tok.text)
		}
		p.next()
		return callExpr{fn: tok.text, args: args, line: tok.line}, nil
	default:
		return nil, fmt.Errorf("line %d: unexpected %q in expression", tok.line, tok.text)
	}
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) next() token {
	tok := p.tokens[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

func (p *parser) skipNewlines() {
	for p.peek().kind == tokNewline {
		p.next()
	}
}
