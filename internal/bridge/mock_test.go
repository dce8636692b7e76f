package bridge

import (
	"errors"
	"fmt"
	"strings"

	"pcode/internal/sleigh"
)

// The toy processor decodes a tiny byte code:
//
//	00       nop
//	01 ii    mov r0, #ii
//	02       ret
//	fd       engine fault (not a decode failure)
//	fe       unimplemented
//	ff       bad data
const toyLanguage = `<language id="toy:LE:32:default" processor="toy" endian="little" size="32" maxlength="2">
  <description>toy</description>
  <properties><property key="syntax" value="lower"/></properties>
  <spaces default="ram">
    <space name="const" type="constant" size="8"/>
    <space name="ram" type="processor" size="4"/>
    <space name="register" type="processor" size="4"/>
  </spaces>
  <registers space="register">
    <register name="r0" offset="0x0" size="4"/>
    <register name="r1" offset="0x4" size="4"/>
    <register name="fp" offset="0x4" size="4"/>
    <register name="lr" offset="0x8" size="4"/>
    <register name="r0l" offset="0x0" size="2"/>
  </registers>
  <context><variable name="mode" default="0"/></context>
</language>`

var errToyFault = errors.New("toy fault")

func init() {
	sleigh.RegisterProcessor("toy", func(lang *sleigh.Language, img sleigh.LoadImage, ctx *sleigh.ContextDatabase) (sleigh.Engine, error) {
		return &toyEngine{Base: sleigh.NewBase(lang, img, ctx)}, nil
	})
}

type toyEngine struct {
	*sleigh.Base
	scratch sleigh.Operands
}

func (e *toyEngine) MaxInstructionLength() int { return e.Language().MaxInstructionLength() }

func (e *toyEngine) decode(addr sleigh.Address) (mnem, body string, imm byte, n int, err error) {
	buf := make([]byte, e.MaxInstructionLength())
	if err := e.LoadWindow(buf, addr); err != nil {
		return "", "", 0, 0, err
	}
	switch buf[0] {
	case 0x00:
		mnem, n = "nop", 1
	case 0x01:
		mnem, body, imm, n = "mov", fmt.Sprintf("r0, #%#x", buf[1]), buf[1], 2
	case 0x02:
		mnem, n = "ret", 1
	case 0xfd:
		return "", "", 0, 0, errToyFault
	case 0xfe:
		return "", "", 0, 0, sleigh.Unimplemented(addr, "halt")
	default:
		return "", "", 0, 0, sleigh.BadData(addr, nil)
	}
	if v, _ := e.Language().Property("syntax"); v == "upper" {
		mnem = strings.ToUpper(mnem)
	}
	return mnem, body, imm, n, nil
}

func (e *toyEngine) PrintAssembly(emit sleigh.AssemblyEmit, addr sleigh.Address) (int, error) {
	mnem, body, _, n, err := e.decode(addr)
	if err != nil {
		return 0, err
	}
	emit.Dump(addr, n, mnem, body)
	return n, nil
}

func (e *toyEngine) OneInstruction(emit sleigh.PcodeEmit, addr sleigh.Address) (int, error) {
	mnem, _, imm, n, err := e.decode(addr)
	if err != nil {
		return 0, err
	}
	lang := e.Language()
	r0, _ := lang.Register("r0")
	lr, _ := lang.Register("lr")
	switch strings.ToLower(mnem) {
	case "mov":
		e.scratch[0] = sleigh.NewVarnode(lang.ConstantSpace(), uint64(imm), 4)
		emit.Dump(addr, n, sleigh.OpCopy, &r0.Varnode, &e.scratch, 1)
	case "ret":
		e.scratch[0] = lr.Varnode
		emit.Dump(addr, n, sleigh.OpReturn, nil, &e.scratch, 1)
	}
	return n, nil
}
