package sleigh

import "fmt"

// VarnodeData is a (space, offset, size) triple naming where an operand lives.
// It is comparable and is used directly as a map key.
type VarnodeData struct {
	space  *AddrSpace
	offset uint64
	size   uint32
}

func NewVarnode(space *AddrSpace, off uint64, size uint32) VarnodeData {
	if space != nil {
		off = space.WrapOffset(off)
	}
	return VarnodeData{space: space, offset: off, size: size}
}

func (v VarnodeData) Space() *AddrSpace { return v.space }
func (v VarnodeData) Offset() uint64    { return v.offset }
func (v VarnodeData) Size() uint32      { return v.size }

// Address returns the starting address of the varnode.
func (v VarnodeData) Address() Address {
	return Address{space: v.space, offset: v.offset}
}

// SpaceType returns the opaque code of the varnode's space.
func (v VarnodeData) SpaceType() SpaceType {
	return v.Address().SpaceType()
}

// Less orders varnodes by space, then offset, then size with larger
// varnodes first so that a containing register sorts before its pieces.
func (v VarnodeData) Less(o VarnodeData) bool {
	if v.space != o.space {
		return spaceIndex(v.space) < spaceIndex(o.space)
	}
	if v.offset != o.offset {
		return v.offset < o.offset
	}
	return v.size > o.size
}

// Contains reports whether o lies entirely within v.
func (v VarnodeData) Contains(o VarnodeData) bool {
	return v.Address().Contains(int(v.size), o.Address(), int(o.size))
}

func (v VarnodeData) String() string {
	name := "invalid"
	if v.space != nil {
		name = v.space.Name()
	}
	return fmt.Sprintf("(%s,0x%x,%d)", name, v.offset, v.size)
}
