package opcode

type ImmKind int

const (
	ImmNone    ImmKind = iota
	ImmLocal           // local.get/set/tee
	ImmGlobal          // global.get/set
	ImmFunc            // call
	ImmLabel           // br, br_if
	ImmLabels          // br_table
	ImmI32             // i32.const
	ImmI64             // i64.const
	ImmF32             // f32.const
	ImmF64             // f64.const
	ImmMemarg          // loads and stores
	ImmMemory          // memory.size/grow reserved byte
)

type Info struct {
	Opcode byte
	Imm    ImmKind
	Align  uint32 // natural alignment (log2) for ImmMemarg
	Memory bool   // touches linear memory
}

func Lookup(name string) (Info, bool) {
	info, ok := table[name]
	return info, ok
}

// LookupPrefixed returns the sub-opcode of a 0xFC-prefixed instruction.
func LookupPrefixed(name string) (uint32, bool) {
	op, ok := prefixed[name]
	return op, ok
}

var table = map[string]Info{
	"unreachable": {Opcode: 0x00},
	"nop":         {Opcode: 0x01},
	"br":          {Opcode: 0x0C, Imm: ImmLabel},
	"br_if":       {Opcode: 0x0D, Imm: ImmLabel},
	"br_table":    {Opcode: 0x0E, Imm: ImmLabels},
	"return":      {Opcode: 0x0F},
	"call":        {Opcode: 0x10, Imm: ImmFunc},
	"drop":        {Opcode: 0x1A},
	"select":      {Opcode: 0x1B},
	"local.get":   {Opcode: 0x20, Imm: ImmLocal},
	"local.set":   {Opcode: 0x21, Imm: ImmLocal},
	"local.tee":   {Opcode: 0x22, Imm: ImmLocal},
	"global.get":  {Opcode: 0x23, Imm: ImmGlobal},
	"global.set":  {Opcode: 0x24, Imm: ImmGlobal},
	"memory.size": {Opcode: 0x3F, Imm: ImmMemory, Memory: true},
	"memory.grow": {Opcode: 0x40, Imm: ImmMemory, Memory: true},
	"i32.const":   {Opcode: 0x41, Imm: ImmI32},
	"i64.const":   {Opcode: 0x42, Imm: ImmI64},
	"f32.const":   {Opcode: 0x43, Imm: ImmF32},
	"f64.const":   {Opcode: 0x44, Imm: ImmF64},
}

var prefixed = map[string]uint32{}

// Numeric opcodes are laid out in contiguous runs; each run is registered
// from its first opcode.
func init() {
	run := func(first byte, names ...string) {
		for i, name := range names {
			table[name] = Info{Opcode: first + byte(i)}
		}
	}
	prefix := func(ty string, names ...string) []string {
		out := make([]string, len(names))
		for i, n := range names {
			out[i] = ty + "." + n
		}
		return out
	}

	intCompare := []string{"eq", "ne", "lt_s", "lt_u", "gt_s", "gt_u", "le_s", "le_u", "ge_s", "ge_u"}
	floatCompare := []string{"eq", "ne", "lt", "gt", "le", "ge"}
	intUnary := []string{"clz", "ctz", "popcnt"}
	intBinary := []string{"add", "sub", "mul", "div_s", "div_u", "rem_s", "rem_u", "and", "or", "xor", "shl", "shr_s", "shr_u", "rotl", "rotr"}
	floatUnary := []string{"abs", "neg", "ceil", "floor", "trunc", "nearest", "sqrt"}
	floatBinary := []string{"add", "sub", "mul", "div", "min", "max", "copysign"}

	run(0x45, "i32.eqz")
	run(0x46, prefix("i32", intCompare...)...)
	run(0x50, "i64.eqz")
	run(0x51, prefix("i64", intCompare...)...)
	run(0x5B, prefix("f32", floatCompare...)...)
	run(0x61, prefix("f64", floatCompare...)...)
	run(0x67, prefix("i32", intUnary...)...)
	run(0x6A, prefix("i32", intBinary...)...)
	run(0x79, prefix("i64", intUnary...)...)
	run(0x7C, prefix("i64", intBinary...)...)
	run(0x8B, prefix("f32", floatUnary...)...)
	run(0x92, prefix("f32", floatBinary...)...)
	run(0x99, prefix("f64", floatUnary...)...)
	run(0xA0, prefix("f64", floatBinary...)...)
	run(0xA7,
		"i32.wrap_i64", "i32.trunc_f32_s", "i32.trunc_f32_u", "i32.trunc_f64_s", "i32.trunc_f64_u",
		"i64.extend_i32_s", "i64.extend_i32_u", "i64.trunc_f32_s", "i64.trunc_f32_u", "i64.trunc_f64_s", "i64.trunc_f64_u",
		"f32.convert_i32_s", "f32.convert_i32_u", "f32.convert_i64_s", "f32.convert_i64_u", "f32.demote_f64",
		"f64.convert_i32_s", "f64.convert_i32_u", "f64.convert_i64_s", "f64.convert_i64_u", "f64.promote_f32",
		"i32.reinterpret_f32", "i64.reinterpret_f64", "f32.reinterpret_i32", "f64.reinterpret_i64",
		"i32.extend8_s", "i32.extend16_s", "i64.extend8_s", "i64.extend16_s", "i64.extend32_s")

	memory := []struct {
		name  string
		align uint32
	}{
		{"i32.load", 2}, {"i64.load", 3}, {"f32.load", 2}, {"f64.load", 3},
		{"i32.load8_s", 0}, {"i32.load8_u", 0}, {"i32.load16_s", 1}, {"i32.load16_u", 1},
		{"i64.load8_s", 0}, {"i64.load8_u", 0}, {"i64.load16_s", 1}, {"i64.load16_u", 1},
		{"i64.load32_s", 2}, {"i64.load32_u", 2},
		{"i32.store", 2}, {"i64.store", 3}, {"f32.store", 2}, {"f64.store", 3},
		{"i32.store8", 0}, {"i32.store16", 1},
		{"i64.store8", 0}, {"i64.store16", 1}, {"i64.store32", 2},
	}
	for i, m := range memory {
		table[m.name] = Info{
			Opcode: 0x28 + byte(i),
			Imm:    ImmMemarg,
			Align:  m.align,
			Memory: true,
		}
	}

	for i, name := range []string{
		"i32.trunc_sat_f32_s", "i32.trunc_sat_f32_u", "i32.trunc_sat_f64_s", "i32.trunc_sat_f64_u",
		"i64.trunc_sat_f32_s", "i64.trunc_sat_f32_u", "i64.trunc_sat_f64_s", "i64.trunc_sat_f64_u",
	} {
		prefixed[name] = uint32(i)
	}
}
