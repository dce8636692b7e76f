package sleigh

import (
	"fmt"
	"sort"
	"sync"
)

// LoadImage supplies instruction bytes to an engine.
type LoadImage interface {
	// LoadFill fills dst with the bytes starting at addr.
	LoadFill(dst []byte, addr Address) error
	// AdjustVMA shifts the image's notion of its load address.
	AdjustVMA(adjust int64)
}

// MaxOperands bounds the number of inputs a single pcode operation carries.
const MaxOperands = 8

// Operands is the fixed-size scratch array an engine fills for each emitted
// operation. Engines reuse it between calls.
type Operands [MaxOperands]VarnodeData

// AssemblyEmit receives one call per instruction decoded as text.
type AssemblyEmit interface {
	Dump(addr Address, length int, mnem, body string)
}

// PcodeEmit receives one call per pcode operation. Only vars[:isize] is
// meaningful and none of the pointers may be retained past the call.
type PcodeEmit interface {
	Dump(addr Address, length int, opc Opcode, outvar *VarnodeData, vars *Operands, isize int)
}

// Engine decodes instructions for one language. An engine is bound to a load
// image and a context database and is not safe for concurrent use.
type Engine interface {
	// Reset rebinds the engine to a new image and context.
	Reset(img LoadImage, ctx *ContextDatabase)
	DefaultCodeSpace() *AddrSpace
	// MaxInstructionLength is the size of the byte window requested from
	// the image for each instruction.
	MaxInstructionLength() int
	// PrintAssembly decodes the instruction at addr, emits its text and
	// returns its length in bytes.
	PrintAssembly(emit AssemblyEmit, addr Address) (int, error)
	// OneInstruction decodes the instruction at addr, emits its pcode and
	// returns its length in bytes. Nothing is emitted when it fails.
	OneInstruction(emit PcodeEmit, addr Address) (int, error)
	// GetAllRegisters adds every named register to out. A varnode already
	// present keeps its name.
	GetAllRegisters(out map[VarnodeData]string)
}

// Processor creates an engine for a language.
type Processor func(lang *Language, img LoadImage, ctx *ContextDatabase) (Engine, error)

var (
	processorsMu sync.RWMutex
	processors   = make(map[string]Processor)
)

// RegisterProcessor makes a processor available under name. It panics if
// name is registered twice.
func RegisterProcessor(name string, p Processor) {
	processorsMu.Lock()
	defer processorsMu.Unlock()
	if p == nil {
		panic("sleigh: RegisterProcessor with nil processor")
	}
	if _, dup := processors[name]; dup {
		panic("sleigh: RegisterProcessor called twice for " + name)
	}
	processors[name] = p
}

// Processors lists the registered processor names.
func Processors() []string {
	processorsMu.RLock()
	defer processorsMu.RUnlock()
	names := make([]string, 0, len(processors))
	for name := range processors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewEngine creates the engine named by the language's processor attribute.
func NewEngine(lang *Language, img LoadImage, ctx *ContextDatabase) (Engine, error) {
	processorsMu.RLock()
	p, ok := processors[lang.Processor()]
	processorsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (language %s)", ErrUnknownProcessor, lang.Processor(), lang.ID())
	}
	return p(lang, img, ctx)
}

// Base holds the state every engine shares. Engines embed it.
type Base struct {
	lang *Language
	img  LoadImage
	ctx  *ContextDatabase
}

func NewBase(lang *Language, img LoadImage, ctx *ContextDatabase) *Base {
	return &Base{lang: lang, img: img, ctx: ctx}
}

func (b *Base) Language() *Language          { return b.lang }
func (b *Base) LoadImage() LoadImage         { return b.img }
func (b *Base) Context() *ContextDatabase    { return b.ctx }
func (b *Base) DefaultCodeSpace() *AddrSpace { return b.lang.DefaultCodeSpace() }

func (b *Base) Reset(img LoadImage, ctx *ContextDatabase) {
	b.img = img
	b.ctx = ctx
}

func (b *Base) GetAllRegisters(out map[VarnodeData]string) {
	b.lang.AllRegisters(out)
}

// LoadWindow fills buf with the decode window at addr. The window may run
// past the end of the image, in which case the image zero fills it.
func (b *Base) LoadWindow(buf []byte, addr Address) error {
	if b.img == nil {
		return fmt.Errorf("no load image bound: %w", ErrAddressRange)
	}
	return b.img.LoadFill(buf, addr)
}
