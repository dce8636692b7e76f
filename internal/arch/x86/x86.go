// Package x86 is the decode engine for 16, 32 and 64-bit x86 built on
// golang.org/x/arch/x86/x86asm. Importing it registers the "x86" processor.
package x86

import (
	"fmt"
	"strings"

	"golang.org/x/arch/x86/x86asm"

	"pcode/internal/sleigh"
)

func init() {
	sleigh.RegisterProcessor("x86", New)
}

// Engine decodes x86 instructions from a load image.
type Engine struct {
	*sleigh.Base
	buf []byte
	b   *sleigh.Builder
}

// New creates an x86 engine. The language must declare a unique space and
// the stack, flag and instruction pointer registers.
func New(lang *sleigh.Language, img sleigh.LoadImage, ctx *sleigh.ContextDatabase) (sleigh.Engine, error) {
	if lang.UniqueSpace() == nil {
		return nil, fmt.Errorf("x86: language %s has no unique space", lang.ID())
	}
	for _, name := range []string{"cf", "zf", "sf", "of"} {
		if _, ok := lang.Register(name); !ok {
			return nil, fmt.Errorf("x86: language %s lacks register %s", lang.ID(), name)
		}
	}
	return &Engine{
		Base: sleigh.NewBase(lang, img, ctx),
		buf:  make([]byte, lang.MaxInstructionLength()),
		b:    sleigh.NewBuilder(lang),
	}, nil
}

func (e *Engine) MaxInstructionLength() int { return len(e.buf) }

// mode returns the decoder mode in effect at addr.
func (e *Engine) mode(addr sleigh.Address) int {
	if ctx := e.Context(); ctx != nil {
		if v, err := ctx.GetVariable("addrsize", addr); err == nil {
			switch v {
			case 0:
				return 16
			case 1:
				return 32
			case 2:
				return 64
			}
		}
	}
	if e.Language().Size() == 64 {
		return 64
	}
	return 32
}

func (e *Engine) decode(addr sleigh.Address) (x86asm.Inst, error) {
	if err := e.LoadWindow(e.buf, addr); err != nil {
		return x86asm.Inst{}, err
	}
	inst, err := x86asm.Decode(e.buf, e.mode(addr))
	if err != nil {
		return x86asm.Inst{}, sleigh.BadData(addr, err)
	}
	return inst, nil
}

func (e *Engine) PrintAssembly(emit sleigh.AssemblyEmit, addr sleigh.Address) (int, error) {
	inst, err := e.decode(addr)
	if err != nil {
		return 0, err
	}
	mnem, body := splitText(e.format(inst, addr.Offset()))
	emit.Dump(addr, inst.Len, mnem, body)
	return inst.Len, nil
}

func (e *Engine) format(inst x86asm.Inst, pc uint64) string {
	syntax, _ := e.Language().Property("syntax")
	switch syntax {
	case "gnu", "att":
		return x86asm.GNUSyntax(inst, pc, nil)
	default:
		return x86asm.IntelSyntax(inst, pc, nil)
	}
}

// splitText separates the mnemonic, including any prefixes, from the
// operand list.
func splitText(text string) (mnem, body string) {
	fields := strings.Fields(text)
	i := 0
	for i < len(fields)-1 && isPrefix(fields[i]) {
		i++
	}
	if i >= len(fields) {
		return text, ""
	}
	return strings.Join(fields[:i+1], " "), strings.Join(fields[i+1:], " ")
}

func isPrefix(s string) bool {
	switch s {
	case "lock", "rep", "repe", "repz", "repne", "repnz", "data16", "data32", "addr16", "addr32", "bnd", "xacquire", "xrelease":
		return true
	}
	return false
}

func (e *Engine) OneInstruction(emit sleigh.PcodeEmit, addr sleigh.Address) (int, error) {
	inst, err := e.decode(addr)
	if err != nil {
		return 0, err
	}
	e.b.Reset()
	l := &lifter{b: e.b, lang: e.Language(), addr: addr, inst: inst, next: addr.Offset() + uint64(inst.Len)}
	if err := l.lift(); err != nil {
		return 0, err
	}
	e.b.Emit(emit, addr, inst.Len)
	return inst.Len, nil
}
