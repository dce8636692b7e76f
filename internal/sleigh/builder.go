package sleigh

import "fmt"

// Builder accumulates the pcode of one instruction. Engines lift into a
// Builder and emit only once the whole instruction translated, so a failed
// instruction produces no operations.
type Builder struct {
	lang    *Language
	ops     []builtOp
	next    uint64
	scratch Operands
}

type builtOp struct {
	opc    Opcode
	out    VarnodeData
	hasOut bool
	in     []VarnodeData
}

// uniqueBase is the first offset handed out for temporaries.
const uniqueBase = 0x100

func NewBuilder(lang *Language) *Builder {
	return &Builder{lang: lang, next: uniqueBase}
}

// Reset drops the accumulated operations and temporaries.
func (b *Builder) Reset() {
	b.ops = b.ops[:0]
	b.next = uniqueBase
}

// Len is the number of accumulated operations.
func (b *Builder) Len() int { return len(b.ops) }

// Const returns a constant varnode holding v truncated to size bytes.
func (b *Builder) Const(v uint64, size uint32) VarnodeData {
	if size < 8 {
		v &= uint64(1)<<(8*size) - 1
	}
	return VarnodeData{space: b.lang.ConstantSpace(), offset: v, size: size}
}

// Temp allocates a fresh temporary in the unique space.
func (b *Builder) Temp(size uint32) VarnodeData {
	off := b.next
	b.next += uint64((size + 0xf) &^ 0xf)
	return NewVarnode(b.lang.UniqueSpace(), off, size)
}

// CodeRef returns a varnode naming target in the default code space, as
// used by branch operations.
func (b *Builder) CodeRef(target uint64) VarnodeData {
	sp := b.lang.DefaultCodeSpace()
	return NewVarnode(sp, target, sp.AddrSize())
}

// SpaceID returns the constant that selects sp as the first input of LOAD
// and STORE.
func (b *Builder) SpaceID(sp *AddrSpace) VarnodeData {
	return b.Const(uint64(sp.Index()), 8)
}

// Op appends an operation writing out.
func (b *Builder) Op(opc Opcode, out VarnodeData, in ...VarnodeData) {
	b.add(builtOp{opc: opc, out: out, hasOut: true, in: in})
}

// Effect appends an operation with no output.
func (b *Builder) Effect(opc Opcode, in ...VarnodeData) {
	b.add(builtOp{opc: opc, in: in})
}

// Value appends an operation writing a fresh temporary of size bytes and
// returns the temporary.
func (b *Builder) Value(opc Opcode, size uint32, in ...VarnodeData) VarnodeData {
	t := b.Temp(size)
	b.Op(opc, t, in...)
	return t
}

func (b *Builder) add(op builtOp) {
	if len(op.in) > MaxOperands {
		panic(fmt.Sprintf("sleigh: %s with %d inputs", op.opc, len(op.in)))
	}
	b.ops = append(b.ops, op)
}

// Emit sends the accumulated operations to emit, all attributed to the
// instruction at addr of the given length.
func (b *Builder) Emit(emit PcodeEmit, addr Address, length int) {
	for i := range b.ops {
		op := &b.ops[i]
		n := copy(b.scratch[:], op.in)
		var out *VarnodeData
		if op.hasOut {
			out = &op.out
		}
		emit.Dump(addr, length, op.opc, out, &b.scratch, n)
	}
}
