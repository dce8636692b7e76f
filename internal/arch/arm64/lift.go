package arm64

import (
	"strconv"
	"strings"

	"golang.org/x/arch/arm64/arm64asm"

	"pcode/internal/sleigh"
)

type lifter struct {
	b    *sleigh.Builder
	lang *sleigh.Language
	addr sleigh.Address
	inst arm64asm.Inst
}

func (l *lifter) unimplemented() error {
	return sleigh.Unimplemented(l.addr, strings.ToLower(l.inst.Op.String()))
}

func (l *lifter) pc() uint64 { return l.addr.Offset() }

func (l *lifter) lift() error {
	args := l.inst.Args
	switch l.inst.Op {
	case arm64asm.NOP:
		return nil

	case arm64asm.MOV:
		dst, err := l.dest(args[0])
		if err != nil {
			return err
		}
		v, err := l.read(args[1], dst.Size())
		if err != nil {
			return err
		}
		return l.write(args[0], v)

	case arm64asm.ADD, arm64asm.SUB, arm64asm.AND, arm64asm.ORR, arm64asm.EOR:
		opc := map[arm64asm.Op]sleigh.Opcode{
			arm64asm.ADD: sleigh.OpIntAdd,
			arm64asm.SUB: sleigh.OpIntSub,
			arm64asm.AND: sleigh.OpIntAnd,
			arm64asm.ORR: sleigh.OpIntOr,
			arm64asm.EOR: sleigh.OpIntXor,
		}[l.inst.Op]
		dst, err := l.dest(args[0])
		if err != nil {
			return err
		}
		a, err := l.read(args[1], dst.Size())
		if err != nil {
			return err
		}
		c, err := l.read(args[2], dst.Size())
		if err != nil {
			return err
		}
		return l.write(args[0], l.b.Value(opc, dst.Size(), a, c))

	case arm64asm.ADR, arm64asm.ADRP:
		rel, ok := args[1].(arm64asm.PCRel)
		if !ok {
			return l.unimplemented()
		}
		base := l.pc()
		if l.inst.Op == arm64asm.ADRP {
			base &^= 0xfff
		}
		return l.write(args[0], l.b.Const(base+uint64(rel), 8))

	case arm64asm.B, arm64asm.BL:
		rel, ok := args[0].(arm64asm.PCRel)
		if !ok {
			// conditional branches are not translated
			return l.unimplemented()
		}
		target := l.b.CodeRef(l.pc() + uint64(rel))
		if l.inst.Op == arm64asm.BL {
			l.link()
			l.b.Effect(sleigh.OpCall, target)
		} else {
			l.b.Effect(sleigh.OpBranch, target)
		}
		return nil

	case arm64asm.BR, arm64asm.BLR, arm64asm.RET:
		target, err := l.read(args[0], 8)
		if err != nil {
			return err
		}
		switch l.inst.Op {
		case arm64asm.BR:
			l.b.Effect(sleigh.OpBranchInd, target)
		case arm64asm.BLR:
			t := l.b.Value(sleigh.OpCopy, 8, target)
			l.link()
			l.b.Effect(sleigh.OpCallInd, t)
		default:
			l.b.Effect(sleigh.OpReturn, target)
		}
		return nil

	case arm64asm.CBZ, arm64asm.CBNZ:
		r, ok := args[0].(arm64asm.Reg)
		if !ok {
			return l.unimplemented()
		}
		v, err := l.read(r, 8)
		if err != nil {
			return err
		}
		rel, ok := args[1].(arm64asm.PCRel)
		if !ok {
			return l.unimplemented()
		}
		cmp := sleigh.OpIntEqual
		if l.inst.Op == arm64asm.CBNZ {
			cmp = sleigh.OpIntNotEqual
		}
		cond := l.b.Value(cmp, 1, v, l.b.Const(0, v.Size()))
		l.b.Effect(sleigh.OpCBranch, l.b.CodeRef(l.pc()+uint64(rel)), cond)
		return nil
	}
	return l.unimplemented()
}

// link writes the return address to x30.
func (l *lifter) link() {
	lr, _ := l.lang.Register("x30")
	l.b.Op(sleigh.OpCopy, lr.Varnode, l.b.Const(l.pc()+4, 8))
}

// regName returns the language name of a register argument. The zero
// register is reported as "xzr" or "wzr".
func regName(arg arm64asm.Arg) (string, bool) {
	switch a := arg.(type) {
	case arm64asm.Reg:
		return strings.ToLower(a.String()), true
	case arm64asm.RegSP:
		return strings.ToLower(a.String()), true
	}
	return "", false
}

func (l *lifter) register(name string) (sleigh.VarnodeData, error) {
	r, ok := l.lang.Register(name)
	if !ok {
		return sleigh.VarnodeData{}, l.unimplemented()
	}
	return r.Varnode, nil
}

// dest resolves the varnode written by a destination register.
func (l *lifter) dest(arg arm64asm.Arg) (sleigh.VarnodeData, error) {
	name, ok := regName(arg)
	if !ok {
		return sleigh.VarnodeData{}, l.unimplemented()
	}
	return l.register(name)
}

// read returns the value of a register, shifted register or immediate
// operand as a varnode of size bytes.
func (l *lifter) read(arg arm64asm.Arg, size uint32) (sleigh.VarnodeData, error) {
	switch a := arg.(type) {
	case arm64asm.Reg, arm64asm.RegSP:
		name, _ := regName(a)
		if name == "xzr" || name == "wzr" {
			return l.b.Const(0, size), nil
		}
		v, err := l.register(name)
		if err != nil {
			return v, err
		}
		return l.extend(v, size), nil
	case arm64asm.Imm:
		return l.b.Const(uint64(a.Imm), size), nil
	case arm64asm.Imm64:
		return l.b.Const(a.Imm, size), nil
	case arm64asm.ImmShift:
		v, ok := parseImmediate(a.String())
		if !ok {
			return sleigh.VarnodeData{}, l.unimplemented()
		}
		return l.b.Const(v, size), nil
	case arm64asm.RegExtshiftAmount:
		name, shift, ok := parseShiftedRegister(a.String())
		if !ok {
			return sleigh.VarnodeData{}, l.unimplemented()
		}
		if name == "xzr" || name == "wzr" {
			return l.b.Const(0, size), nil
		}
		v, err := l.register(name)
		if err != nil {
			return v, err
		}
		v = l.extend(v, size)
		if shift > 0 {
			v = l.b.Value(sleigh.OpIntLeft, size, v, l.b.Const(uint64(shift), 4))
		}
		return v, nil
	}
	return sleigh.VarnodeData{}, l.unimplemented()
}

func (l *lifter) extend(v sleigh.VarnodeData, size uint32) sleigh.VarnodeData {
	switch {
	case v.Size() == size:
		return v
	case v.Size() > size:
		return l.b.Value(sleigh.OpSubPiece, size, v, l.b.Const(0, 4))
	}
	return l.b.Value(sleigh.OpIntZExt, size, v)
}

// write stores v into a destination register. Writes to a W register clear
// the upper half of its X register; writes to the zero register vanish.
func (l *lifter) write(arg arm64asm.Arg, v sleigh.VarnodeData) error {
	name, ok := regName(arg)
	if !ok {
		return l.unimplemented()
	}
	switch {
	case name == "xzr" || name == "wzr":
		return nil
	case name == "wsp":
		name = "sp"
	case strings.HasPrefix(name, "w"):
		name = "x" + name[1:]
	}
	dst, err := l.register(name)
	if err != nil {
		return err
	}
	if v.Size() < dst.Size() {
		l.b.Op(sleigh.OpIntZExt, dst, v)
		return nil
	}
	l.b.Op(sleigh.OpCopy, dst, v)
	return nil
}

// parseImmediate reads "#0x10", "#16" or "#0x1, LSL #12".
func parseImmediate(s string) (uint64, bool) {
	imm, rest, _ := strings.Cut(s, ",")
	v, ok := parseHash(imm)
	if !ok {
		return 0, false
	}
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return v, true
	}
	sh, ok := strings.CutPrefix(rest, "LSL ")
	if !ok {
		return 0, false
	}
	n, ok := parseHash(sh)
	if !ok {
		return 0, false
	}
	return v << n, true
}

// parseShiftedRegister reads "X2" or "X2, LSL #3".
func parseShiftedRegister(s string) (name string, shift uint64, ok bool) {
	reg, rest, found := strings.Cut(s, ",")
	name = strings.ToLower(strings.TrimSpace(reg))
	if !found {
		return name, 0, true
	}
	sh, ok := strings.CutPrefix(strings.TrimSpace(rest), "LSL ")
	if !ok {
		return "", 0, false
	}
	shift, ok = parseHash(sh)
	return name, shift, ok
}

func parseHash(s string) (uint64, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "#") {
		return 0, false
	}
	v, err := strconv.ParseUint(s[1:], 0, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
