package x86

import (
	"fmt"
	"strings"

	"golang.org/x/arch/x86/x86asm"

	"pcode/internal/sleigh"
)

// lifter translates one decoded instruction into pcode.
type lifter struct {
	b    *sleigh.Builder
	lang *sleigh.Language
	addr sleigh.Address
	inst x86asm.Inst
	next uint64 // address of the following instruction
}

func (l *lifter) unimplemented() error {
	return sleigh.Unimplemented(l.addr, strings.ToLower(l.inst.Op.String()))
}

// ptrSize is the width of the stack pointer and return addresses.
func (l *lifter) ptrSize() uint32 { return uint32(l.inst.Mode / 8) }

func (l *lifter) lift() error {
	args := l.inst.Args
	switch op := l.inst.Op; op {
	case x86asm.NOP:
		return nil

	case x86asm.MOV:
		sz, err := l.size(args[0])
		if err != nil {
			return err
		}
		v, err := l.read(args[1], sz)
		if err != nil {
			return err
		}
		return l.write(args[0], v)

	case x86asm.MOVZX, x86asm.MOVSX, x86asm.MOVSXD:
		dsz, err := l.size(args[0])
		if err != nil {
			return err
		}
		ssz, err := l.size(args[1])
		if err != nil {
			return err
		}
		v, err := l.read(args[1], ssz)
		if err != nil {
			return err
		}
		if ssz < dsz {
			opc := sleigh.OpIntSExt
			if op == x86asm.MOVZX {
				opc = sleigh.OpIntZExt
			}
			v = l.b.Value(opc, dsz, v)
		}
		return l.write(args[0], v)

	case x86asm.LEA:
		m, ok := args[1].(x86asm.Mem)
		if !ok {
			return l.unimplemented()
		}
		dsz, err := l.size(args[0])
		if err != nil {
			return err
		}
		ea, err := l.effectiveAddress(m)
		if err != nil {
			return err
		}
		return l.write(args[0], l.resize(ea, dsz))

	case x86asm.ADD, x86asm.SUB, x86asm.CMP, x86asm.AND, x86asm.OR, x86asm.XOR, x86asm.TEST:
		return l.arith(op)

	case x86asm.INC, x86asm.DEC:
		sz, err := l.size(args[0])
		if err != nil {
			return err
		}
		a, err := l.read(args[0], sz)
		if err != nil {
			return err
		}
		one := l.b.Const(1, sz)
		opc, ovf := sleigh.OpIntAdd, sleigh.OpIntSCarry
		if op == x86asm.DEC {
			opc, ovf = sleigh.OpIntSub, sleigh.OpIntSBorrow
		}
		l.b.Op(ovf, l.flag("of"), a, one)
		r := l.b.Value(opc, sz, a, one)
		if err := l.write(args[0], r); err != nil {
			return err
		}
		l.resultFlags(r)
		return nil

	case x86asm.NEG:
		sz, err := l.size(args[0])
		if err != nil {
			return err
		}
		a, err := l.read(args[0], sz)
		if err != nil {
			return err
		}
		zero := l.b.Const(0, sz)
		l.b.Op(sleigh.OpIntNotEqual, l.flag("cf"), a, zero)
		l.b.Op(sleigh.OpIntSBorrow, l.flag("of"), zero, a)
		r := l.b.Value(sleigh.OpInt2Comp, sz, a)
		if err := l.write(args[0], r); err != nil {
			return err
		}
		l.resultFlags(r)
		return nil

	case x86asm.NOT:
		sz, err := l.size(args[0])
		if err != nil {
			return err
		}
		a, err := l.read(args[0], sz)
		if err != nil {
			return err
		}
		return l.write(args[0], l.b.Value(sleigh.OpIntNegate, sz, a))

	case x86asm.PUSH:
		sz := l.pushSize(args[0])
		v, err := l.read(args[0], sz)
		if err != nil {
			return err
		}
		if v.SpaceType() != sleigh.SpaceConstant {
			v = l.b.Value(sleigh.OpCopy, sz, v)
		}
		return l.push(v)

	case x86asm.POP:
		sz, err := l.size(args[0])
		if err != nil {
			return err
		}
		v, err := l.pop(sz)
		if err != nil {
			return err
		}
		return l.write(args[0], v)

	case x86asm.JMP:
		if rel, ok := args[0].(x86asm.Rel); ok {
			l.b.Effect(sleigh.OpBranch, l.b.CodeRef(l.next+uint64(int64(rel))))
			return nil
		}
		t, err := l.read(args[0], l.ptrSize())
		if err != nil {
			return err
		}
		l.b.Effect(sleigh.OpBranchInd, t)
		return nil

	case x86asm.CALL:
		var target sleigh.VarnodeData
		rel, direct := args[0].(x86asm.Rel)
		if direct {
			target = l.b.CodeRef(l.next + uint64(int64(rel)))
		} else {
			t, err := l.read(args[0], l.ptrSize())
			if err != nil {
				return err
			}
			target = l.b.Value(sleigh.OpCopy, t.Size(), t)
		}
		if err := l.push(l.b.Const(l.next, l.ptrSize())); err != nil {
			return err
		}
		if direct {
			l.b.Effect(sleigh.OpCall, target)
		} else {
			l.b.Effect(sleigh.OpCallInd, target)
		}
		return nil

	case x86asm.RET:
		t, err := l.pop(l.ptrSize())
		if err != nil {
			return err
		}
		if imm, ok := args[0].(x86asm.Imm); ok {
			sp, err := l.stack()
			if err != nil {
				return err
			}
			l.b.Op(sleigh.OpIntAdd, sp, sp, l.b.Const(uint64(imm), sp.Size()))
		}
		l.b.Effect(sleigh.OpReturn, t)
		return nil
	}

	if cond, ok, err := l.condition(l.inst.Op); ok {
		if err != nil {
			return err
		}
		rel, isRel := args[0].(x86asm.Rel)
		if !isRel {
			return l.unimplemented()
		}
		l.b.Effect(sleigh.OpCBranch, l.b.CodeRef(l.next+uint64(int64(rel))), cond)
		return nil
	}
	return l.unimplemented()
}

func (l *lifter) arith(op x86asm.Op) error {
	args := l.inst.Args
	sz, err := l.size(args[0])
	if err != nil {
		return err
	}
	a, err := l.read(args[0], sz)
	if err != nil {
		return err
	}
	c, err := l.read(args[1], sz)
	if err != nil {
		return err
	}
	var r sleigh.VarnodeData
	switch op {
	case x86asm.ADD:
		l.b.Op(sleigh.OpIntCarry, l.flag("cf"), a, c)
		l.b.Op(sleigh.OpIntSCarry, l.flag("of"), a, c)
		r = l.b.Value(sleigh.OpIntAdd, sz, a, c)
	case x86asm.SUB, x86asm.CMP:
		l.b.Op(sleigh.OpIntLess, l.flag("cf"), a, c)
		l.b.Op(sleigh.OpIntSBorrow, l.flag("of"), a, c)
		r = l.b.Value(sleigh.OpIntSub, sz, a, c)
	default:
		opc := map[x86asm.Op]sleigh.Opcode{
			x86asm.AND:  sleigh.OpIntAnd,
			x86asm.TEST: sleigh.OpIntAnd,
			x86asm.OR:   sleigh.OpIntOr,
			x86asm.XOR:  sleigh.OpIntXor,
		}[op]
		l.b.Op(sleigh.OpCopy, l.flag("cf"), l.b.Const(0, 1))
		l.b.Op(sleigh.OpCopy, l.flag("of"), l.b.Const(0, 1))
		r = l.b.Value(opc, sz, a, c)
	}
	if op != x86asm.CMP && op != x86asm.TEST {
		if err := l.write(args[0], r); err != nil {
			return err
		}
	}
	l.resultFlags(r)
	return nil
}

// resultFlags sets ZF and SF from r.
func (l *lifter) resultFlags(r sleigh.VarnodeData) {
	zero := l.b.Const(0, r.Size())
	l.b.Op(sleigh.OpIntEqual, l.flag("zf"), r, zero)
	l.b.Op(sleigh.OpIntSLess, l.flag("sf"), r, zero)
}

// condition builds the boolean tested by a conditional jump. ok is false
// when op is not a conditional jump.
func (l *lifter) condition(op x86asm.Op) (cond sleigh.VarnodeData, ok bool, err error) {
	not := func(v sleigh.VarnodeData) sleigh.VarnodeData { return l.b.Value(sleigh.OpBoolNegate, 1, v) }
	cf, zf, sf, of := l.flag("cf"), l.flag("zf"), l.flag("sf"), l.flag("of")
	switch op {
	case x86asm.JE:
		return zf, true, nil
	case x86asm.JNE:
		return not(zf), true, nil
	case x86asm.JB:
		return cf, true, nil
	case x86asm.JAE:
		return not(cf), true, nil
	case x86asm.JBE:
		return l.b.Value(sleigh.OpBoolOr, 1, cf, zf), true, nil
	case x86asm.JA:
		return not(l.b.Value(sleigh.OpBoolOr, 1, cf, zf)), true, nil
	case x86asm.JS:
		return sf, true, nil
	case x86asm.JNS:
		return not(sf), true, nil
	case x86asm.JO:
		return of, true, nil
	case x86asm.JNO:
		return not(of), true, nil
	case x86asm.JL:
		return l.b.Value(sleigh.OpIntNotEqual, 1, sf, of), true, nil
	case x86asm.JGE:
		return l.b.Value(sleigh.OpIntEqual, 1, sf, of), true, nil
	case x86asm.JLE:
		return l.b.Value(sleigh.OpBoolOr, 1, zf, l.b.Value(sleigh.OpIntNotEqual, 1, sf, of)), true, nil
	case x86asm.JG:
		return l.b.Value(sleigh.OpBoolAnd, 1, not(zf), l.b.Value(sleigh.OpIntEqual, 1, sf, of)), true, nil
	case x86asm.JCXZ, x86asm.JECXZ, x86asm.JRCXZ:
		name := map[x86asm.Op]string{x86asm.JCXZ: "cx", x86asm.JECXZ: "ecx", x86asm.JRCXZ: "rcx"}[op]
		r, found := l.lang.Register(name)
		if !found {
			return cond, true, l.unimplemented()
		}
		return l.b.Value(sleigh.OpIntEqual, 1, r.Varnode, l.b.Const(0, r.Varnode.Size())), true, nil
	case x86asm.JP, x86asm.JNP:
		return cond, true, l.unimplemented()
	}
	return cond, false, nil
}

func (l *lifter) flag(name string) sleigh.VarnodeData {
	r, _ := l.lang.Register(name)
	return r.Varnode
}

// regName maps a decoder register to the name used by the language.
func regName(r x86asm.Reg) string {
	switch {
	case r >= x86asm.R8L && r <= x86asm.R15L:
		return fmt.Sprintf("r%dd", int(r-x86asm.R8L)+8)
	case r == x86asm.SPB:
		return "spl"
	case r == x86asm.BPB:
		return "bpl"
	case r == x86asm.SIB:
		return "sil"
	case r == x86asm.DIB:
		return "dil"
	}
	return strings.ToLower(r.String())
}

func (l *lifter) reg(r x86asm.Reg) (sleigh.VarnodeData, error) {
	reg, ok := l.lang.Register(regName(r))
	if !ok {
		return sleigh.VarnodeData{}, l.unimplemented()
	}
	return reg.Varnode, nil
}

func (l *lifter) stack() (sleigh.VarnodeData, error) {
	switch l.inst.Mode {
	case 64:
		return l.reg(x86asm.RSP)
	case 32:
		return l.reg(x86asm.ESP)
	}
	return l.reg(x86asm.SP)
}

// size is the operand width in bytes of a register or memory argument.
func (l *lifter) size(arg x86asm.Arg) (uint32, error) {
	switch a := arg.(type) {
	case x86asm.Reg:
		vn, err := l.reg(a)
		return vn.Size(), err
	case x86asm.Mem:
		if l.inst.MemBytes > 0 {
			return uint32(l.inst.MemBytes), nil
		}
		return uint32(l.inst.DataSize / 8), nil
	case x86asm.Imm:
		return uint32(l.inst.DataSize / 8), nil
	}
	return 0, l.unimplemented()
}

// read returns a varnode holding the value of arg, loading from memory when
// needed. Immediates are truncated to size bytes.
func (l *lifter) read(arg x86asm.Arg, size uint32) (sleigh.VarnodeData, error) {
	switch a := arg.(type) {
	case x86asm.Reg:
		return l.reg(a)
	case x86asm.Imm:
		return l.b.Const(uint64(a), size), nil
	case x86asm.Mem:
		ea, err := l.effectiveAddress(a)
		if err != nil {
			return sleigh.VarnodeData{}, err
		}
		ram := l.lang.DefaultCodeSpace()
		return l.b.Value(sleigh.OpLoad, size, l.b.SpaceID(ram), ea), nil
	}
	return sleigh.VarnodeData{}, l.unimplemented()
}

// write stores v into a register or memory argument. A 32-bit register
// write in 64-bit mode clears the upper half of the full register.
func (l *lifter) write(arg x86asm.Arg, v sleigh.VarnodeData) error {
	switch a := arg.(type) {
	case x86asm.Reg:
		if l.inst.Mode == 64 && a >= x86asm.EAX && a <= x86asm.R15L {
			full, err := l.reg(a - x86asm.EAX + x86asm.RAX)
			if err != nil {
				return err
			}
			l.b.Op(sleigh.OpIntZExt, full, v)
			return nil
		}
		dst, err := l.reg(a)
		if err != nil {
			return err
		}
		l.b.Op(sleigh.OpCopy, dst, v)
		return nil
	case x86asm.Mem:
		ea, err := l.effectiveAddress(a)
		if err != nil {
			return err
		}
		l.b.Effect(sleigh.OpStore, l.b.SpaceID(l.lang.DefaultCodeSpace()), ea, v)
		return nil
	}
	return l.unimplemented()
}

// effectiveAddress computes segment:[base + scale*index + disp].
func (l *lifter) effectiveAddress(m x86asm.Mem) (sleigh.VarnodeData, error) {
	asz := uint32(l.inst.AddrSize / 8)
	if m.Base == x86asm.RIP || m.Base == x86asm.EIP {
		return l.b.Const(l.next+uint64(m.Disp), asz), nil
	}
	var acc sleigh.VarnodeData
	have := false
	add := func(v sleigh.VarnodeData) {
		if !have {
			acc, have = v, true
			return
		}
		acc = l.b.Value(sleigh.OpIntAdd, asz, acc, v)
	}
	if m.Base != 0 {
		base, err := l.reg(m.Base)
		if err != nil {
			return acc, err
		}
		add(l.resize(base, asz))
	}
	if m.Scale != 0 && m.Index != 0 {
		idx, err := l.reg(m.Index)
		if err != nil {
			return acc, err
		}
		idx = l.resize(idx, asz)
		if m.Scale > 1 {
			idx = l.b.Value(sleigh.OpIntMult, asz, idx, l.b.Const(uint64(m.Scale), asz))
		}
		add(idx)
	}
	if m.Disp != 0 || !have {
		add(l.b.Const(uint64(m.Disp), asz))
	}
	switch m.Segment {
	case x86asm.FS, x86asm.GS:
		seg, ok := l.lang.Register(strings.ToLower(m.Segment.String()) + "_offset")
		if !ok {
			return acc, l.unimplemented()
		}
		acc = l.b.Value(sleigh.OpIntAdd, asz, acc, l.resize(seg.Varnode, asz))
	}
	return acc, nil
}

// resize truncates or zero extends v to size bytes.
func (l *lifter) resize(v sleigh.VarnodeData, size uint32) sleigh.VarnodeData {
	switch {
	case v.Size() == size:
		return v
	case v.Space().IsConstant():
		return l.b.Const(v.Offset(), size)
	case v.Size() > size:
		return l.b.Value(sleigh.OpSubPiece, size, v, l.b.Const(0, 4))
	}
	return l.b.Value(sleigh.OpIntZExt, size, v)
}

// pushSize is the width of a pushed operand. In 64-bit mode immediates and
// memory operands are pushed as 8 bytes unless an operand-size prefix
// selects 16 bits; immediates are sign extended by the decoder.
func (l *lifter) pushSize(arg x86asm.Arg) uint32 {
	if r, ok := arg.(x86asm.Reg); ok {
		if vn, err := l.reg(r); err == nil {
			return vn.Size()
		}
	}
	if l.inst.Mode == 64 && l.inst.DataSize != 16 {
		return l.ptrSize()
	}
	return uint32(l.inst.DataSize / 8)
}

func (l *lifter) push(v sleigh.VarnodeData) error {
	sp, err := l.stack()
	if err != nil {
		return err
	}
	l.b.Op(sleigh.OpIntSub, sp, sp, l.b.Const(uint64(v.Size()), sp.Size()))
	l.b.Effect(sleigh.OpStore, l.b.SpaceID(l.lang.DefaultCodeSpace()), sp, v)
	return nil
}

func (l *lifter) pop(size uint32) (sleigh.VarnodeData, error) {
	sp, err := l.stack()
	if err != nil {
		return sleigh.VarnodeData{}, err
	}
	v := l.b.Value(sleigh.OpLoad, size, l.b.SpaceID(l.lang.DefaultCodeSpace()), sp)
	l.b.Op(sleigh.OpIntAdd, sp, sp, l.b.Const(uint64(size), sp.Size()))
	return v, nil
}
