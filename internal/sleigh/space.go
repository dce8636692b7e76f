// Package sleigh defines the handles and contracts shared between the decode
// bridge and the processor engines behind it: address spaces, addresses,
// varnodes, pcode opcodes, context state, language documents and the engine
// interface itself.
package sleigh

import (
	"fmt"
	"strings"
)

// SpaceType classifies an address space. The bridge passes it through as an
// opaque code and never interprets it.
type SpaceType uint32

const (
	SpaceConstant SpaceType = iota
	SpaceProcessor
	SpaceBase
	SpaceInternal
	SpaceFspec
	SpaceIop
	SpaceJoin
)

var spaceTypeNames = [...]string{
	SpaceConstant:  "constant",
	SpaceProcessor: "processor",
	SpaceBase:      "spacebase",
	SpaceInternal:  "internal",
	SpaceFspec:     "fspec",
	SpaceIop:       "iop",
	SpaceJoin:      "join",
}

func (t SpaceType) String() string {
	if int(t) < len(spaceTypeNames) {
		return spaceTypeNames[t]
	}
	return fmt.Sprintf("SpaceType(%d)", uint32(t))
}

// ParseSpaceType maps the name used in language documents to its code.
func ParseSpaceType(s string) (SpaceType, error) {
	for i, name := range spaceTypeNames {
		if strings.EqualFold(s, name) {
			return SpaceType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown space type %q", s)
}

// AddrSpace describes one address space of a language.
type AddrSpace struct {
	name      string
	typ       SpaceType
	index     int
	addrSize  uint32
	wordSize  uint32
	bigEndian bool
	highest   uint64
}

// NewAddrSpace creates a space. addrSize is in bytes; a wordSize of zero is
// treated as one.
func NewAddrSpace(name string, typ SpaceType, index int, addrSize, wordSize uint32, bigEndian bool) *AddrSpace {
	if wordSize == 0 {
		wordSize = 1
	}
	s := &AddrSpace{
		name:      name,
		typ:       typ,
		index:     index,
		addrSize:  addrSize,
		wordSize:  wordSize,
		bigEndian: bigEndian,
	}
	s.highest = computeHighest(addrSize, wordSize)
	return s
}

func computeHighest(addrSize, wordSize uint32) uint64 {
	if addrSize >= 8 || addrSize == 0 {
		return ^uint64(0)
	}
	max := uint64(1)<<(8*addrSize) - 1
	if wordSize > 1 {
		// byte addressed highest offset of a word addressed space
		if max > ^uint64(0)/uint64(wordSize) {
			return ^uint64(0)
		}
		return (max+1)*uint64(wordSize) - 1
	}
	return max
}

func (s *AddrSpace) Name() string      { return s.name }
func (s *AddrSpace) Type() SpaceType   { return s.typ }
func (s *AddrSpace) Index() int        { return s.index }
func (s *AddrSpace) AddrSize() uint32  { return s.addrSize }
func (s *AddrSpace) WordSize() uint32  { return s.wordSize }
func (s *AddrSpace) IsBigEndian() bool { return s.bigEndian }
func (s *AddrSpace) Highest() uint64   { return s.highest }
func (s *AddrSpace) IsConstant() bool  { return s.typ == SpaceConstant }
func (s *AddrSpace) String() string    { return s.name }

// WrapOffset folds off into the range [0, Highest].
func (s *AddrSpace) WrapOffset(off uint64) uint64 {
	if off <= s.highest || s.highest == ^uint64(0) {
		return off
	}
	return off % (s.highest + 1)
}
