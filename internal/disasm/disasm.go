// Package disasm defines the records produced by a decode scan: instructions
// as text and pcode operations.
package disasm

import (
	"fmt"
	"strings"

	"pcode/internal/sleigh"
)

// Inst is one decoded instruction.
type Inst struct {
	Addr    sleigh.Address // address of the first byte
	Len     int            // encoded length in bytes
	Mnem    string         // mnemonic as printed by the engine
	Body    string         // operand text, may be empty
	Overrun bool           // decoded bytes past the end of the supplied buffer
}

// Text is the full assembly line without the address.
func (i Inst) Text() string {
	if i.Body == "" {
		return i.Mnem
	}
	return i.Mnem + " " + i.Body
}

// End is the address just after the instruction.
func (i Inst) End() sleigh.Address { return i.Addr.Add(uint64(i.Len)) }

func (i Inst) String() string {
	return fmt.Sprintf("%#x: %s", i.Addr.Offset(), i.Text())
}

// Stream is a linear sequence of instructions. A *Stream collects
// instructions emitted by a scan.
type Stream []Inst

func (s *Stream) Instruction(i Inst) { *s = append(*s, i) }

// Bytes is the number of bytes covered by the stream.
func (s Stream) Bytes() uint64 {
	var n uint64
	for _, i := range s {
		n += uint64(i.Len)
	}
	return n
}

// Contiguous reports whether each instruction starts where the previous one
// ends.
func (s Stream) Contiguous() bool {
	for k := 1; k < len(s); k++ {
		if s[k].Addr.Compare(s[k-1].End()) != 0 {
			return false
		}
	}
	return true
}

func (s Stream) String() string {
	var b strings.Builder
	for _, i := range s {
		b.WriteString(i.String())
		b.WriteByte('\n')
	}
	return b.String()
}

// Op is one pcode operation.
type Op struct {
	Addr   sleigh.Address // address of the instruction that produced it
	Opcode sleigh.Opcode
	Output *sleigh.VarnodeData // nil when the operation has no result
	Inputs []sleigh.VarnodeData
}

func (o Op) String() string {
	var b strings.Builder
	if o.Output != nil {
		b.WriteString(o.Output.String())
		b.WriteString(" = ")
	}
	b.WriteString(o.Opcode.String())
	for k, in := range o.Inputs {
		if k == 0 {
			b.WriteByte(' ')
		} else {
			b.WriteString(", ")
		}
		b.WriteString(in.String())
	}
	return b.String()
}

// Ops collects operations emitted by a scan.
type Ops []Op

func (o *Ops) Operation(op Op) { *o = append(*o, op) }

// ByAddress groups operations by the instruction address that produced them,
// keeping emission order within and across groups.
func (o Ops) ByAddress() [][]Op {
	var groups [][]Op
	for k, op := range o {
		if k == 0 || op.Addr.Compare(o[k-1].Addr) != 0 {
			groups = append(groups, nil)
		}
		groups[len(groups)-1] = append(groups[len(groups)-1], op)
	}
	return groups
}
