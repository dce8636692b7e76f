package sleigh

import "fmt"

// Address is an offset within an address space. The zero value is the
// invalid address.
type Address struct {
	space  *AddrSpace
	offset uint64
}

// NewAddress returns the address of off in space, wrapped to the space's range.
func NewAddress(space *AddrSpace, off uint64) Address {
	if space != nil {
		off = space.WrapOffset(off)
	}
	return Address{space: space, offset: off}
}

func (a Address) Space() *AddrSpace { return a.space }
func (a Address) Offset() uint64    { return a.offset }
func (a Address) IsInvalid() bool   { return a.space == nil }

// SpaceType returns the opaque classification code of the address's space.
// The invalid address reports SpaceConstant.
func (a Address) SpaceType() SpaceType {
	if a.space == nil {
		return SpaceConstant
	}
	return a.space.Type()
}

func (a Address) IsConstant() bool {
	return a.space != nil && a.space.IsConstant()
}

// AddrSize is the size in bytes of an address in this space.
func (a Address) AddrSize() int {
	if a.space == nil {
		return 0
	}
	return int(a.space.AddrSize())
}

func (a Address) IsBigEndian() bool {
	return a.space != nil && a.space.IsBigEndian()
}

// Add returns the address n bytes further into the same space.
func (a Address) Add(n uint64) Address {
	return NewAddress(a.space, a.offset+n)
}

// Contains reports whether the range [op2, op2+sz2) lies inside [a, a+sz).
func (a Address) Contains(sz int, op2 Address, sz2 int) bool {
	if a.space != op2.space || sz <= 0 || sz2 <= 0 {
		return false
	}
	if op2.offset < a.offset {
		return false
	}
	end1 := a.offset + uint64(sz-1)
	end2 := op2.offset + uint64(sz2-1)
	return end2 <= end1
}

// Overlap returns the position of a+skip within the range [op, op+size), or
// -1 if it falls outside. Constant addresses never overlap.
func (a Address) Overlap(skip int, op Address, size int) int {
	if a.space != op.space || a.space == nil || a.space.IsConstant() {
		return -1
	}
	dist := a.space.WrapOffset(a.offset + uint64(skip) - op.offset)
	if dist >= uint64(size) {
		return -1
	}
	return int(dist)
}

// Compare orders addresses by space index and then offset. The invalid
// address sorts first.
func (a Address) Compare(b Address) int {
	ai, bi := spaceIndex(a.space), spaceIndex(b.space)
	switch {
	case ai < bi:
		return -1
	case ai > bi:
		return 1
	case a.offset < b.offset:
		return -1
	case a.offset > b.offset:
		return 1
	}
	return 0
}

func (a Address) String() string {
	if a.space == nil {
		return "invalid_addr"
	}
	return fmt.Sprintf("%s:0x%x", a.space.Name(), a.offset)
}

func spaceIndex(s *AddrSpace) int {
	if s == nil {
		return -1
	}
	return s.Index()
}
