package parser

import (
	"strings"

	"github.com/wippyai/wasm-jit/errors"
	"github.com/wippyai/wasm-jit/wat/internal/ast"
	"github.com/wippyai/wasm-jit/wat/internal/opcode"
	"github.com/wippyai/wasm-jit/wat/internal/token"
)

// parseInstrs reads instructions until ')' or a flat 'end'/'else'. The
// terminator is left for the caller.
func (p *Parser) parseInstrs() ([]ast.Instr, error) {
	var code []ast.Instr
	for {
		t := p.peek()
		if t == nil || t.Type == token.RParen {
			return code, nil
		}

		var (
			ins []ast.Instr
			err error
		)
		switch {
		case t.Type == token.LParen:
			ins, err = p.parseFolded()
		case t.Type != token.Ident:
			return nil, errors.Syntax(t.Line, "unexpected %q in function body", t.Value)
		case t.Value == "end" || t.Value == "else":
			return code, nil
		case t.Value == "block" || t.Value == "loop" || t.Value == "if":
			ins, err = p.parseFlatBlock()
		default:
			p.next()
			ins, err = p.parseOp(t)
		}
		if err != nil {
			return nil, err
		}
		code = append(code, ins...)
	}
}

func blockOpcode(name string) byte {
	switch name {
	case "loop":
		return ast.OpLoop
	case "if":
		return ast.OpIf
	}
	return ast.OpBlock
}

// parseFlatBlock handles block/loop/if ... [else ...] end [$label].
func (p *Parser) parseFlatBlock() ([]ast.Instr, error) {
	kw := p.next()
	op := blockOpcode(kw.Value)
	label := p.parseLabelDecl()
	bt, err := p.parseBlockType()
	if err != nil {
		return nil, err
	}

	out := []ast.Instr{{Opcode: op, Imm: bt}}
	p.pushLabel(label)

	body, err := p.parseInstrs()
	if err != nil {
		return nil, err
	}
	out = append(out, body...)

	if t := p.peek(); t != nil && t.Type == token.Ident && t.Value == "else" {
		if op != ast.OpIf {
			return nil, errors.Syntax(t.Line, "else outside of if")
		}
		p.next()
		if err := p.closingLabel(label); err != nil {
			return nil, err
		}
		body, err := p.parseInstrs()
		if err != nil {
			return nil, err
		}
		out = append(out, ast.Instr{Opcode: ast.OpElse})
		out = append(out, body...)
	}

	end := p.next()
	if end == nil || end.Type != token.Ident || end.Value != "end" {
		return nil, errors.Syntax(kw.Line, "%s without matching end", kw.Value)
	}
	if err := p.closingLabel(label); err != nil {
		return nil, err
	}
	p.popLabel()

	return append(out, ast.Instr{Opcode: ast.OpEnd}), nil
}

// closingLabel consumes an optional label after else/end, which must repeat
// the block's own label.
func (p *Parser) closingLabel(label string) error {
	t := p.peek()
	if t == nil || t.Type != token.Ident || !strings.HasPrefix(t.Value, "$") {
		return nil
	}
	p.next()
	if t.Value != label {
		return errors.Syntax(t.Line, "mismatched label %s, expected %q", t.Value, label)
	}
	return nil
}

func (p *Parser) parseFolded() ([]ast.Instr, error) {
	p.next()
	kw, err := p.expect(token.Ident)
	if err != nil {
		return nil, err
	}

	switch kw.Value {
	case "block", "loop":
		label := p.parseLabelDecl()
		bt, err := p.parseBlockType()
		if err != nil {
			return nil, err
		}
		p.pushLabel(label)
		body, err := p.parseInstrs()
		if err != nil {
			return nil, err
		}
		p.popLabel()
		if _, err := p.expect(token.RParen); err != nil {
			return nil, err
		}
		out := append([]ast.Instr{{Opcode: blockOpcode(kw.Value), Imm: bt}}, body...)
		return append(out, ast.Instr{Opcode: ast.OpEnd}), nil

	case "if":
		return p.parseFoldedIf(kw)

	case "then", "else":
		return nil, errors.Syntax(kw.Line, "%s outside of if", kw.Value)
	}

	ins, err := p.parseOp(kw)
	if err != nil {
		return nil, err
	}

	var operands []ast.Instr
	for {
		t := p.peek()
		if t == nil || t.Type != token.LParen {
			break
		}
		sub, err := p.parseFolded()
		if err != nil {
			return nil, err
		}
		operands = append(operands, sub...)
	}
	if _, err := p.expect(token.RParen); err != nil {
		return nil, err
	}
	return append(operands, ins...), nil
}

// parseFoldedIf handles (if $l? bt cond* (then ...) (else ...)?).
func (p *Parser) parseFoldedIf(kw *token.Token) ([]ast.Instr, error) {
	label := p.parseLabelDecl()
	bt, err := p.parseBlockType()
	if err != nil {
		return nil, err
	}

	var out []ast.Instr
	for {
		k := p.peekKeyword()
		if k == "" || k == "then" || k == "else" {
			break
		}
		cond, err := p.parseFolded()
		if err != nil {
			return nil, err
		}
		out = append(out, cond...)
	}

	if p.peekKeyword() != "then" {
		return nil, errors.Syntax(kw.Line, "if without then clause")
	}
	out = append(out, ast.Instr{Opcode: ast.OpIf, Imm: bt})
	p.pushLabel(label)

	for _, clause := range []string{"then", "else"} {
		if p.peekKeyword() != clause {
			continue
		}
		p.pos += 2
		body, err := p.parseInstrs()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RParen); err != nil {
			return nil, err
		}
		if clause == "else" {
			out = append(out, ast.Instr{Opcode: ast.OpElse})
		}
		out = append(out, body...)
	}

	p.popLabel()
	if _, err := p.expect(token.RParen); err != nil {
		return nil, err
	}
	return append(out, ast.Instr{Opcode: ast.OpEnd}), nil
}

func (p *Parser) parseLabelDecl() string {
	if t := p.peek(); t != nil && t.Type == token.Ident && strings.HasPrefix(t.Value, "$") {
		p.next()
		return t.Value
	}
	return ""
}

// parseBlockType accepts no result or a single result type.
func (p *Parser) parseBlockType() (byte, error) {
	var results []ast.ValType
	line := p.line()
	for {
		switch p.peekKeyword() {
		case "result":
			p.pos += 2
			for {
				if t := p.peek(); t == nil || t.Type == token.RParen {
					break
				}
				vt, err := p.parseValType()
				if err != nil {
					return 0, err
				}
				results = append(results, vt)
			}
			if _, err := p.expect(token.RParen); err != nil {
				return 0, err
			}
			continue
		case "param", "type":
			return 0, errors.New(errors.PhaseParse, errors.KindUnsupported).
				Line(line).
				Detail("block %s clauses are not supported", p.peekKeyword()).
				Build()
		}
		break
	}

	switch len(results) {
	case 0:
		return ast.BlockTypeEmpty, nil
	case 1:
		return byte(results[0]), nil
	}
	return 0, errors.New(errors.PhaseParse, errors.KindUnsupported).
		Line(line).
		Detail("multi-value block results are not supported").
		Build()
}

func (p *Parser) parseOp(t *token.Token) ([]ast.Instr, error) {
	if sub, ok := opcode.LookupPrefixed(t.Value); ok {
		return []ast.Instr{{Opcode: ast.OpPrefixMisc, Imm: sub}}, nil
	}

	info, ok := opcode.Lookup(t.Value)
	if !ok {
		return nil, errors.Syntax(t.Line, "unknown instruction %s", t.Value)
	}
	if info.Memory {
		p.fn.UsesMemory = true
	}

	ins := ast.Instr{Opcode: info.Opcode}
	var err error
	switch info.Imm {
	case opcode.ImmLocal:
		ins.Imm, err = p.parseLocalRef(t)
	case opcode.ImmGlobal:
		ins.Imm, err = p.parseSymbolRef(t, "global")
	case opcode.ImmFunc:
		ins.Imm, err = p.parseSymbolRef(t, "function")
	case opcode.ImmLabel:
		ins.Imm, err = p.parseLabelRef(t)
	case opcode.ImmLabels:
		ins.Imm, err = p.parseLabelTable(t)
	case opcode.ImmI32, opcode.ImmI64, opcode.ImmF32, opcode.ImmF64:
		ins.Imm, err = p.parseConst(t, info.Imm)
	case opcode.ImmMemarg:
		ins.Imm, err = p.parseMemarg(t, info.Align)
	}
	if err != nil {
		return nil, err
	}
	return []ast.Instr{ins}, nil
}

func (p *Parser) parseLocalRef(op *token.Token) (uint32, error) {
	t := p.next()
	if t == nil {
		return 0, errors.Syntax(op.Line, "%s expects a local", op.Value)
	}
	if t.Type == token.Ident && strings.HasPrefix(t.Value, "$") {
		idx, ok := p.localMap[t.Value]
		if !ok {
			return 0, errors.Syntax(t.Line, "unknown local %s", t.Value)
		}
		return idx, nil
	}
	if t.Type != token.Number {
		return 0, errors.Syntax(t.Line, "%s expects a local, got %q", op.Value, t.Value)
	}
	v, err := parseInt(t.Value, 32)
	if err != nil {
		return 0, errors.Syntax(t.Line, "bad local index %q", t.Value)
	}
	if v >= uint64(len(p.fn.Params)+len(p.fn.Locals)) {
		return 0, errors.Syntax(t.Line, "local index %d out of range", v)
	}
	return uint32(v), nil
}

// parseSymbolRef keeps the name for resolution against the linking
// environment; numeric indices are meaningless before imports exist.
func (p *Parser) parseSymbolRef(op *token.Token, what string) (ast.Symbol, error) {
	t := p.next()
	if t == nil || t.Type != token.Ident || !strings.HasPrefix(t.Value, "$") {
		return ast.Symbol{}, errors.Syntax(op.Line, "%s expects a named %s", op.Value, what)
	}
	return ast.Symbol{Name: t.Value, Line: t.Line}, nil
}

func (p *Parser) parseLabelRef(op *token.Token) (uint32, error) {
	t := p.next()
	if t == nil {
		return 0, errors.Syntax(op.Line, "%s expects a label", op.Value)
	}
	return p.labelDepth(t)
}

func (p *Parser) labelDepth(t *token.Token) (uint32, error) {
	if t.Type == token.Ident && strings.HasPrefix(t.Value, "$") {
		depth, ok := p.resolveLabel(t.Value)
		if !ok {
			return 0, errors.Syntax(t.Line, "unknown label %s", t.Value)
		}
		return depth, nil
	}
	if t.Type != token.Number {
		return 0, errors.Syntax(t.Line, "expected label, got %q", t.Value)
	}
	v, err := parseInt(t.Value, 32)
	if err != nil {
		return 0, errors.Syntax(t.Line, "bad label depth %q", t.Value)
	}
	// depth len(labels) targets the function body itself
	if v > uint64(len(p.labels)) {
		return 0, errors.Syntax(t.Line, "label depth %d out of range", v)
	}
	return uint32(v), nil
}

func (p *Parser) parseLabelTable(op *token.Token) ([]uint32, error) {
	var labels []uint32
	for {
		t := p.peek()
		if t == nil || !(t.Type == token.Number || (t.Type == token.Ident && strings.HasPrefix(t.Value, "$"))) {
			break
		}
		p.next()
		d, err := p.labelDepth(t)
		if err != nil {
			return nil, err
		}
		labels = append(labels, d)
	}
	if len(labels) == 0 {
		return nil, errors.Syntax(op.Line, "br_table expects at least a default label")
	}
	return labels, nil
}

func (p *Parser) parseConst(op *token.Token, kind opcode.ImmKind) (any, error) {
	t := p.next()
	if t == nil || (t.Type != token.Number && t.Type != token.Ident) {
		return nil, errors.Syntax(op.Line, "%s expects a literal", op.Value)
	}

	switch kind {
	case opcode.ImmI32:
		if t.Type == token.Number {
			if v, err := parseInt(t.Value, 32); err == nil {
				return int32(uint32(v)), nil
			}
		}
	case opcode.ImmI64:
		if t.Type == token.Number {
			if v, err := parseInt(t.Value, 64); err == nil {
				return int64(v), nil
			}
		}
	case opcode.ImmF32:
		if v, err := parseF32(t.Value); err == nil {
			return v, nil
		}
	case opcode.ImmF64:
		if v, err := parseF64(t.Value); err == nil {
			return v, nil
		}
	}
	return nil, errors.Syntax(t.Line, "invalid %s literal %q", op.Value, t.Value)
}

func (p *Parser) parseMemarg(op *token.Token, natural uint32) (ast.Memarg, error) {
	ma := ast.Memarg{Align: natural}
	for {
		t := p.peek()
		if t == nil || t.Type != token.Ident {
			return ma, nil
		}
		key, val, ok := strings.Cut(t.Value, "=")
		if !ok || (key != "offset" && key != "align") {
			return ma, nil
		}
		p.next()

		v, err := parseInt(val, 32)
		if err != nil {
			return ma, errors.Syntax(t.Line, "invalid %s in %s", key, op.Value)
		}
		if key == "offset" {
			ma.Offset = uint32(v)
			continue
		}
		align, ok := log2(uint32(v))
		if !ok {
			return ma, errors.Syntax(t.Line, "alignment %d is not a power of two", v)
		}
		if align > natural {
			return ma, errors.Syntax(t.Line, "alignment %d exceeds natural alignment of %s", v, op.Value)
		}
		ma.Align = align
	}
}
