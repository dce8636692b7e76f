// Package bridge drives a decode engine over a caller supplied byte buffer.
// It owns the scan loops and their truncation policy and converts the
// engine's callbacks into disasm records.
package bridge

import (
	"fmt"

	"pcode/internal/disasm"
	"pcode/internal/sleigh"
)

// Decompiler binds a language, an engine, a bounded image and a context
// database. It is not safe for concurrent use; separate Decompilers are
// independent.
type Decompiler struct {
	lang   *sleigh.Language
	img    *BoundedImage
	ctx    *sleigh.ContextDatabase
	engine sleigh.Engine
}

type options struct {
	props map[string]string
}

// Option configures a Decompiler.
type Option func(*options)

// WithProperty overrides a language property, e.g. "syntax".
func WithProperty(key, value string) Option {
	return func(o *options) {
		if o.props == nil {
			o.props = make(map[string]string)
		}
		o.props[key] = value
	}
}

// Open loads the language document at path.
func Open(path string, opts ...Option) (*Decompiler, error) {
	store, err := sleigh.LoadDocumentFile(path)
	if err != nil {
		return nil, err
	}
	return New(store, opts...)
}

// OpenString loads an inline language document.
func OpenString(doc string, opts ...Option) (*Decompiler, error) {
	store, err := sleigh.LoadDocumentString(doc)
	if err != nil {
		return nil, err
	}
	return New(store, opts...)
}

// New binds the language registered in store and creates its engine over an
// empty image.
func New(store *sleigh.DocumentStorage, opts ...Option) (*Decompiler, error) {
	lang, err := sleigh.NewLanguage(store)
	if err != nil {
		return nil, err
	}
	return NewFromLanguage(lang, opts...)
}

// NewFromLanguage creates a Decompiler for an already bound language.
func NewFromLanguage(lang *sleigh.Language, opts ...Option) (*Decompiler, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	lang = lang.WithProperties(o.props)

	img := NewBoundedImage(0, nil)
	ctx := lang.NewContext()
	engine, err := sleigh.NewEngine(lang, img, ctx)
	if err != nil {
		return nil, fmt.Errorf("create engine: %w", err)
	}
	return &Decompiler{lang: lang, img: img, ctx: ctx, engine: engine}, nil
}

func (d *Decompiler) Language() *sleigh.Language       { return d.lang }
func (d *Decompiler) Context() *sleigh.ContextDatabase { return d.ctx }

// Address returns off in the default code space.
func (d *Decompiler) Address(off uint64) sleigh.Address {
	return sleigh.NewAddress(d.engine.DefaultCodeSpace(), off)
}

// Reset points the Decompiler at a new buffer. Address-ranged context
// values are dropped; the language is not reloaded. A buffer that does not
// fit in the default code space is rejected and the Decompiler is left as
// it was.
func (d *Decompiler) Reset(base uint64, data []byte) error {
	if err := d.fits(base, uint64(len(data))); err != nil {
		return err
	}
	d.img.SetBytes(base, data)
	d.ctx.Reset()
	d.engine.Reset(d.img, d.ctx)
	return nil
}

// fits checks that [off, off+n) lies inside the default code space.
func (d *Decompiler) fits(off, n uint64) error {
	sp := d.engine.DefaultCodeSpace()
	hi := sp.Highest()
	if off > hi || (n > 0 && n-1 > hi-off) {
		return fmt.Errorf("%w: %#x+%d outside %s space (highest %#x)", sleigh.ErrAddressRange, off, n, sp.Name(), hi)
	}
	return nil
}

// DisassembleTo decodes instructions starting at addr and sends them to
// sink until limit bytes are consumed (0 means no limit), the buffer is
// exhausted or an instruction fails to decode. It returns the number of
// bytes consumed.
func (d *Decompiler) DisassembleTo(sink AssemblySink, addr, limit uint64) (uint64, error) {
	emit := assemblyProxy{sink: sink}
	return d.scan(addr, limit, func(at sleigh.Address) (int, error) {
		return d.engine.PrintAssembly(emit, at)
	})
}

// Disassemble collects the instructions DisassembleTo would emit.
func (d *Decompiler) Disassemble(addr, limit uint64) (disasm.Stream, uint64, error) {
	var s disasm.Stream
	n, err := d.DisassembleTo(&s, addr, limit)
	return s, n, err
}

// TranslateTo runs the same scan as DisassembleTo but emits pcode.
func (d *Decompiler) TranslateTo(sink PcodeSink, addr, limit uint64) (uint64, error) {
	emit := pcodeProxy{sink: sink}
	return d.scan(addr, limit, func(at sleigh.Address) (int, error) {
		return d.engine.OneInstruction(emit, at)
	})
}

// Translate collects the operations TranslateTo would emit.
func (d *Decompiler) Translate(addr, limit uint64) (disasm.Ops, uint64, error) {
	var ops disasm.Ops
	n, err := d.TranslateTo(&ops, addr, limit)
	return ops, n, err
}

func (d *Decompiler) scan(addr, limit uint64, step func(sleigh.Address) (int, error)) (uint64, error) {
	if d.img.Len() == 0 && addr == d.img.Base() {
		return 0, nil
	}
	if err := d.fits(addr, 1); err != nil {
		return 0, err
	}
	if err := d.img.check(d.Address(addr)); err != nil {
		return 0, err
	}
	var off uint64
	for limit == 0 || off < limit {
		at := d.Address(addr + off)
		if off > 0 && !d.img.Contains(at.Offset()) {
			break
		}
		n, err := step(at)
		if err != nil {
			if sleigh.IsDecodeFailure(err) {
				break
			}
			return off, err
		}
		if n <= 0 {
			return off, fmt.Errorf("engine reported length %d at %s", n, at)
		}
		off += uint64(n)
	}
	return off, nil
}

// DisassembleOnce resets the Decompiler to data placed at addr and decodes
// up to maxInsts instructions (0 means all). A failure on the first
// instruction is returned; a later failure ends the listing early.
// Instructions whose bytes run past the end of data are marked Overrun.
func (d *Decompiler) DisassembleOnce(data []byte, addr uint64, maxInsts int) (disasm.Stream, error) {
	if maxInsts < 0 {
		return nil, fmt.Errorf("negative instruction count %d", maxInsts)
	}
	if err := d.Reset(addr, data); err != nil {
		return nil, err
	}
	end := addr + uint64(len(data))
	var s disasm.Stream
	emit := assemblyProxy{sink: AssemblySinkFunc(func(inst disasm.Inst) {
		inst.Overrun = inst.Addr.Offset()+uint64(inst.Len) > end
		s = append(s, inst)
	})}

	var off uint64
	for maxInsts == 0 || len(s) < maxInsts {
		if off >= uint64(len(data)) {
			break
		}
		at := d.Address(addr + off)
		n, err := d.engine.PrintAssembly(emit, at)
		if err == nil && n <= 0 {
			err = fmt.Errorf("engine reported length %d at %s", n, at)
		}
		if err != nil {
			if off == 0 {
				return nil, fmt.Errorf("disassemble %s: %w", at, err)
			}
			break
		}
		off += uint64(n)
	}
	return s, nil
}
