// Package elfx maps ELF binaries and hands out code regions, by section or
// by function, ready to be decoded.
package elfx

import (
	"bytes"
	"debug/elf"
	"errors"
	"fmt"
	"os"
	"sort"
	"syscall"
)

// ErrUnsupportedMachine reports an ELF machine without a built-in language.
var ErrUnsupportedMachine = errors.New("unsupported machine")

// Image is a mapped ELF file.
type Image struct {
	Path    string
	Machine elf.Machine
	Lang    string   // built-in language for Machine, "" when there is none
	Code    Region   // .text, or the first executable segment
	Symbols []Symbol // function symbols sorted by address

	file *elf.File
	data []byte
	segs []segment
}

// Region is a contiguous run of bytes at a virtual address.
type Region struct {
	Name string
	Addr uint64
	Data []byte
}

// End is the address just past the region.
func (r Region) End() uint64 { return r.Addr + uint64(len(r.Data)) }

type Symbol struct {
	Name string
	Addr uint64
	Size uint64
}

// segment is the file-backed part of a PT_LOAD.
type segment struct {
	addr, off, size uint64
	exec            bool
}

var machineLangs = map[elf.Machine]string{
	elf.EM_X86_64:  "x86-64",
	elf.EM_386:     "x86",
	elf.EM_AARCH64: "aarch64",
}

// Open maps path read-only and indexes its loadable segments, code and
// function symbols.
func Open(path string) (*Image, error) {
	data, err := mapFile(path)
	if err != nil {
		return nil, err
	}
	f, err := elf.NewFile(bytes.NewReader(data))
	if err != nil {
		syscall.Munmap(data)
		return nil, fmt.Errorf("open elf: %w", err)
	}

	im := &Image{Path: path, Machine: f.Machine, Lang: machineLangs[f.Machine], file: f, data: data}
	for _, p := range f.Progs {
		if p.Type == elf.PT_LOAD && p.Filesz > 0 {
			im.segs = append(im.segs, segment{addr: p.Vaddr, off: p.Off, size: p.Filesz, exec: p.Flags&elf.PF_X != 0})
		}
	}
	if r, err := im.Section(".text"); err == nil {
		im.Code = r
	} else {
		// no section headers
		for _, s := range im.segs {
			if s.exec && s.off+s.size <= uint64(len(data)) {
				im.Code = Region{Name: "LOAD(exec)", Addr: s.addr, Data: data[s.off : s.off+s.size]}
				break
			}
		}
	}
	im.loadSymbols()
	return im, nil
}

func mapFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if fi.Size() == 0 {
		return nil, fmt.Errorf("open elf: %s is empty", path)
	}
	data, err := syscall.Mmap(int(f.Fd()), 0, int(fi.Size()), syscall.PROT_READ, syscall.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap file: %w", err)
	}
	return data, nil
}

// Close unmaps the file. Regions handed out before become invalid.
func (im *Image) Close() error {
	if im.data == nil {
		return nil
	}
	err := syscall.Munmap(im.data)
	im.data, im.segs, im.Code = nil, nil, Region{}
	return err
}

// Language names the built-in language for the ELF machine.
func (im *Image) Language() (string, error) {
	if im.Lang == "" {
		return "", fmt.Errorf("%w %s", ErrUnsupportedMachine, im.Machine)
	}
	return im.Lang, nil
}

// Section returns the contents of a section that occupies file space.
func (im *Image) Section(name string) (Region, error) {
	s := im.file.Section(name)
	if s == nil || s.Type == elf.SHT_NOBITS {
		return Region{}, fmt.Errorf("no section %q", name)
	}
	if s.Offset+s.Size > uint64(len(im.data)) {
		return Region{}, fmt.Errorf("section %q runs past the end of the file", name)
	}
	return Region{Name: name, Addr: s.Addr, Data: im.data[s.Offset : s.Offset+s.Size]}, nil
}

// Bytes returns the file bytes at [addr, addr+size) when a single loadable
// segment backs the whole range.
func (im *Image) Bytes(addr, size uint64) ([]byte, bool) {
	for _, s := range im.segs {
		if addr < s.addr || addr-s.addr >= s.size {
			continue
		}
		if size > s.size-(addr-s.addr) {
			return nil, false
		}
		off := s.off + addr - s.addr
		if off+size > uint64(len(im.data)) {
			return nil, false
		}
		return im.data[off : off+size], true
	}
	return nil, false
}

// Function returns the code of a function symbol. A symbol without a size
// extends to the end of the code region containing it.
func (im *Image) Function(name string) (Region, error) {
	sym, ok := im.FindFunctionByName(name)
	if !ok {
		return Region{}, fmt.Errorf("no function %q", name)
	}
	size := sym.Size
	if size == 0 && sym.Addr >= im.Code.Addr && sym.Addr < im.Code.End() {
		size = im.Code.End() - sym.Addr
	}
	data, ok := im.Bytes(sym.Addr, size)
	if !ok {
		return Region{}, fmt.Errorf("function %q at %#x is not backed by the file", name, sym.Addr)
	}
	return Region{Name: name, Addr: sym.Addr, Data: data}, nil
}

// loadSymbols collects defined function symbols from .symtab and .dynsym,
// one per address.
func (im *Image) loadSymbols() {
	seen := make(map[uint64]bool)
	add := func(syms []elf.Symbol) {
		for _, sym := range syms {
			if sym.Value == 0 || elf.ST_TYPE(sym.Info) != elf.STT_FUNC || sym.Section == elf.SHN_UNDEF {
				continue
			}
			if seen[sym.Value] {
				continue
			}
			seen[sym.Value] = true
			im.Symbols = append(im.Symbols, Symbol{Name: sym.Name, Addr: sym.Value, Size: sym.Size})
		}
	}
	if syms, err := im.file.Symbols(); err == nil {
		add(syms)
	}
	if syms, err := im.file.DynamicSymbols(); err == nil {
		add(syms)
	}
	sort.Slice(im.Symbols, func(i, j int) bool { return im.Symbols[i].Addr < im.Symbols[j].Addr })
}

// FindFunctionByName searches the symbol tables for a defined function.
func (im *Image) FindFunctionByName(name string) (Symbol, bool) {
	for _, sym := range im.Symbols {
		if sym.Name == name {
			return sym, true
		}
	}
	return Symbol{}, false
}
