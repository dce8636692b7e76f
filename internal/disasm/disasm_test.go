package disasm

import (
	"testing"

	"pcode/internal/sleigh"
)

var ram = sleigh.NewAddrSpace("ram", sleigh.SpaceProcessor, 1, 8, 1, false)

func at(off uint64) sleigh.Address { return sleigh.NewAddress(ram, off) }

func TestStream(t *testing.T) {
	var s Stream
	s.Instruction(Inst{Addr: at(0x1000), Len: 1, Mnem: "push", Body: "rbp"})
	s.Instruction(Inst{Addr: at(0x1001), Len: 3, Mnem: "mov", Body: "rbp, rsp"})
	s.Instruction(Inst{Addr: at(0x1004), Len: 1, Mnem: "ret"})

	if got := s.Bytes(); got != 5 {
		t.Errorf("Bytes = %d, want 5", got)
	}
	if !s.Contiguous() {
		t.Error("stream should be contiguous")
	}
	want := "0x1000: push rbp\n0x1001: mov rbp, rsp\n0x1004: ret\n"
	if s.String() != want {
		t.Errorf("String =\n%s\nwant\n%s", s.String(), want)
	}

	s = append(s, Inst{Addr: at(0x1010), Len: 1, Mnem: "nop"})
	if s.Contiguous() {
		t.Error("gap not detected")
	}
}

func TestOps(t *testing.T) {
	reg := sleigh.NewAddrSpace("register", sleigh.SpaceProcessor, 2, 4, 1, false)
	out := sleigh.NewVarnode(reg, 0, 8)
	var ops Ops
	ops.Operation(Op{Addr: at(0), Opcode: sleigh.OpCopy, Output: &out, Inputs: []sleigh.VarnodeData{sleigh.NewVarnode(reg, 8, 8)}})
	ops.Operation(Op{Addr: at(0), Opcode: sleigh.OpReturn, Inputs: []sleigh.VarnodeData{out}})
	ops.Operation(Op{Addr: at(1), Opcode: sleigh.OpBranch, Inputs: []sleigh.VarnodeData{sleigh.NewVarnode(ram, 0, 8)}})

	if got := ops[0].String(); got != "(register,0x0,8) = COPY (register,0x8,8)" {
		t.Errorf("String = %q", got)
	}
	groups := ops.ByAddress()
	if len(groups) != 2 || len(groups[0]) != 2 || len(groups[1]) != 1 {
		t.Fatalf("groups = %v", groups)
	}
}
