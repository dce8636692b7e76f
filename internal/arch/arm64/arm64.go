// Package arm64 is the decode engine for AArch64 built on
// golang.org/x/arch/arm64/arm64asm. Importing it registers the "aarch64"
// processor.
package arm64

import (
	"fmt"
	"strings"

	"golang.org/x/arch/arm64/arm64asm"

	"pcode/internal/sleigh"
)

func init() {
	sleigh.RegisterProcessor("aarch64", New)
}

// Engine decodes fixed width AArch64 instructions.
type Engine struct {
	*sleigh.Base
	buf [4]byte
	b   *sleigh.Builder
}

func New(lang *sleigh.Language, img sleigh.LoadImage, ctx *sleigh.ContextDatabase) (sleigh.Engine, error) {
	if lang.UniqueSpace() == nil {
		return nil, fmt.Errorf("aarch64: language %s has no unique space", lang.ID())
	}
	if _, ok := lang.Register("x30"); !ok {
		return nil, fmt.Errorf("aarch64: language %s lacks general registers", lang.ID())
	}
	return &Engine{Base: sleigh.NewBase(lang, img, ctx), b: sleigh.NewBuilder(lang)}, nil
}

func (e *Engine) MaxInstructionLength() int { return len(e.buf) }

func (e *Engine) decode(addr sleigh.Address) (arm64asm.Inst, error) {
	if err := e.LoadWindow(e.buf[:], addr); err != nil {
		return arm64asm.Inst{}, err
	}
	inst, err := arm64asm.Decode(e.buf[:])
	if err != nil {
		return arm64asm.Inst{}, sleigh.BadData(addr, err)
	}
	return inst, nil
}

func (e *Engine) PrintAssembly(emit sleigh.AssemblyEmit, addr sleigh.Address) (int, error) {
	inst, err := e.decode(addr)
	if err != nil {
		return 0, err
	}
	text := strings.TrimSpace(arm64asm.GNUSyntax(inst))
	mnem, body, _ := strings.Cut(text, " ")
	emit.Dump(addr, len(e.buf), mnem, strings.TrimSpace(body))
	return len(e.buf), nil
}

func (e *Engine) OneInstruction(emit sleigh.PcodeEmit, addr sleigh.Address) (int, error) {
	inst, err := e.decode(addr)
	if err != nil {
		return 0, err
	}
	e.b.Reset()
	l := &lifter{b: e.b, lang: e.Language(), addr: addr, inst: inst}
	if err := l.lift(); err != nil {
		return 0, err
	}
	e.b.Emit(emit, addr, len(e.buf))
	return len(e.buf), nil
}
