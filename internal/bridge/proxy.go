package bridge

import (
	"pcode/internal/disasm"
	"pcode/internal/sleigh"
)

// AssemblySink receives decoded instructions as text.
type AssemblySink interface {
	Instruction(inst disasm.Inst)
}

// PcodeSink receives pcode operations.
type PcodeSink interface {
	Operation(op disasm.Op)
}

type AssemblySinkFunc func(inst disasm.Inst)

func (f AssemblySinkFunc) Instruction(inst disasm.Inst) { f(inst) }

type PcodeSinkFunc func(op disasm.Op)

func (f PcodeSinkFunc) Operation(op disasm.Op) { f(op) }

// assemblyProxy adapts an engine assembly callback to an AssemblySink.
type assemblyProxy struct {
	sink AssemblySink
}

func (p assemblyProxy) Dump(addr sleigh.Address, length int, mnem, body string) {
	p.sink.Instruction(disasm.Inst{Addr: addr, Len: length, Mnem: mnem, Body: body})
}

// pcodeProxy adapts an engine pcode callback to a PcodeSink. The engine's
// operand array is scratch space, so the used prefix is copied out.
type pcodeProxy struct {
	sink PcodeSink
}

func (p pcodeProxy) Dump(addr sleigh.Address, _ int, opc sleigh.Opcode, outvar *sleigh.VarnodeData, vars *sleigh.Operands, isize int) {
	op := disasm.Op{Addr: addr, Opcode: opc}
	if outvar != nil {
		out := *outvar
		op.Output = &out
	}
	if isize > 0 {
		op.Inputs = make([]sleigh.VarnodeData, isize)
		copy(op.Inputs, vars[:isize])
	}
	p.sink.Operation(op)
}
