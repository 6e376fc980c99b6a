package parser

import (
	"strings"

	"github.com/wippyai/wasm-jit/errors"
	"github.com/wippyai/wasm-jit/wat/internal/ast"
	"github.com/wippyai/wasm-jit/wat/internal/token"
)

// Func is a parsed function definition whose call and global references are
// still symbolic.
type Func struct {
	Name       string
	Params     []ast.ValType
	Results    []ast.ValType
	Locals     []ast.ValType
	Code       []ast.Instr
	Line       int
	UsesMemory bool
}

type Parser struct {
	fn       *Func
	localMap map[string]uint32
	tokens   []token.Token
	labels   []string
	pos      int
}

func New(tokens []token.Token) *Parser {
	return &Parser{
		tokens:   tokens,
		localMap: make(map[string]uint32),
	}
}

// ParseFunc parses exactly one (func ...) form.
func (p *Parser) ParseFunc() (*Func, error) {
	open, err := p.expect(token.LParen)
	if err != nil {
		return nil, err
	}
	kw, err := p.expect(token.Ident)
	if err != nil {
		return nil, err
	}
	if kw.Value != "func" {
		return nil, errors.Syntax(kw.Line, "expected 'func', got %q", kw.Value)
	}

	p.fn = &Func{Line: open.Line}
	if t := p.peek(); t != nil && t.Type == token.Ident && strings.HasPrefix(t.Value, "$") {
		p.next()
		p.fn.Name = t.Value
	}

	if err := p.parseFields(); err != nil {
		return nil, err
	}

	code, err := p.parseInstrs()
	if err != nil {
		return nil, err
	}
	p.fn.Code = code

	if _, err := p.expect(token.RParen); err != nil {
		return nil, err
	}
	if t := p.peek(); t != nil {
		return nil, errors.Syntax(t.Line, "unexpected %q after function", t.Value)
	}
	return p.fn, nil
}

func (p *Parser) peek() *token.Token {
	if p.pos >= len(p.tokens) {
		return nil
	}
	return &p.tokens[p.pos]
}

// peekKeyword reports the keyword that follows a '(' at the cursor.
func (p *Parser) peekKeyword() string {
	if p.pos+1 >= len(p.tokens) || p.tokens[p.pos].Type != token.LParen {
		return ""
	}
	if t := p.tokens[p.pos+1]; t.Type == token.Ident {
		return t.Value
	}
	return ""
}

func (p *Parser) next() *token.Token {
	if p.pos >= len(p.tokens) {
		return nil
	}
	t := &p.tokens[p.pos]
	p.pos++
	return t
}

func (p *Parser) line() int {
	if t := p.peek(); t != nil {
		return t.Line
	}
	if n := len(p.tokens); n > 0 {
		return p.tokens[n-1].Line
	}
	return 0
}

func (p *Parser) expect(typ token.Type) (*token.Token, error) {
	t := p.next()
	if t == nil {
		return nil, errors.Syntax(p.line(), "unexpected end of input, expected %v", typ)
	}
	if t.Type != typ {
		return nil, errors.Syntax(t.Line, "expected %v, got %q", typ, t.Value)
	}
	return t, nil
}

func (p *Parser) pushLabel(name string) {
	p.labels = append(p.labels, name)
}

func (p *Parser) popLabel() {
	p.labels = p.labels[:len(p.labels)-1]
}

func (p *Parser) resolveLabel(name string) (uint32, bool) {
	for i := len(p.labels) - 1; i >= 0; i-- {
		if p.labels[i] == name {
			return uint32(len(p.labels) - 1 - i), true
		}
	}
	return 0, false
}

func (p *Parser) parseValType() (ast.ValType, error) {
	t, err := p.expect(token.Ident)
	if err != nil {
		return 0, err
	}
	switch t.Value {
	case "i32":
		return ast.ValTypeI32, nil
	case "i64":
		return ast.ValTypeI64, nil
	case "f32":
		return ast.ValTypeF32, nil
	case "f64":
		return ast.ValTypeF64, nil
	}
	return 0, errors.Syntax(t.Line, "unknown value type: %s", t.Value)
}

// parseFields consumes (export ...), (param ...), (result ...) and
// (local ...) clauses in source order.
func (p *Parser) parseFields() error {
	for {
		kw := p.peekKeyword()
		switch kw {
		case "export":
			p.pos += 2
			if _, err := p.expect(token.String); err != nil {
				return err
			}
		case "param", "local":
			p.pos += 2
			if err := p.parseDecl(kw); err != nil {
				return err
			}
			continue
		case "result":
			p.pos += 2
			for {
				if t := p.peek(); t == nil || t.Type == token.RParen {
					break
				}
				vt, err := p.parseValType()
				if err != nil {
					return err
				}
				p.fn.Results = append(p.fn.Results, vt)
			}
		default:
			return nil
		}
		if _, err := p.expect(token.RParen); err != nil {
			return err
		}
	}
}

// parseDecl handles both (param $x i32) and (param i32 i32).
func (p *Parser) parseDecl(kind string) error {
	add := func(name string, vt ast.ValType, line int) error {
		if kind == "param" && len(p.fn.Locals) > 0 {
			return errors.Syntax(line, "param declared after local")
		}
		idx := uint32(len(p.fn.Params) + len(p.fn.Locals))
		if name != "" {
			if _, dup := p.localMap[name]; dup {
				return errors.Syntax(line, "duplicate local %s", name)
			}
			p.localMap[name] = idx
		}
		if kind == "param" {
			p.fn.Params = append(p.fn.Params, vt)
		} else {
			p.fn.Locals = append(p.fn.Locals, vt)
		}
		return nil
	}

	if t := p.peek(); t != nil && t.Type == token.Ident && strings.HasPrefix(t.Value, "$") {
		p.next()
		vt, err := p.parseValType()
		if err != nil {
			return err
		}
		if err := add(t.Value, vt, t.Line); err != nil {
			return err
		}
		_, err = p.expect(token.RParen)
		return err
	}

	for {
		t := p.peek()
		if t == nil || t.Type == token.RParen {
			break
		}
		vt, err := p.parseValType()
		if err != nil {
			return err
		}
		if err := add("", vt, t.Line); err != nil {
			return err
		}
	}
	_, err := p.expect(token.RParen)
	return err
}
