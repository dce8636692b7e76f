package bridge

import (
	"fmt"

	"pcode/internal/sleigh"
)

// BoundedImage serves instruction bytes from a caller-owned buffer placed at
// a base offset. The buffer is borrowed and never copied, so it must stay
// unchanged while a decode call that uses it runs.
type BoundedImage struct {
	base uint64
	data []byte
}

func NewBoundedImage(base uint64, data []byte) *BoundedImage {
	return &BoundedImage{base: base, data: data}
}

// SetBytes replaces the image contents.
func (m *BoundedImage) SetBytes(base uint64, data []byte) {
	m.base = base
	m.data = data
}

func (m *BoundedImage) Base() uint64 { return m.base }
func (m *BoundedImage) Len() int     { return len(m.data) }

// Contains reports whether off addresses a byte of the buffer.
func (m *BoundedImage) Contains(off uint64) bool {
	return off >= m.base && off-m.base < uint64(len(m.data))
}

// check returns the range error for a read starting at off, or nil.
func (m *BoundedImage) check(addr sleigh.Address) error {
	off := addr.Offset()
	switch {
	case off < m.base:
		return fmt.Errorf("%w: %s (base %#x)", sleigh.ErrAddressBeforeRange, addr, m.base)
	case off-m.base >= uint64(len(m.data)):
		return fmt.Errorf("%w: %s (end %#x)", sleigh.ErrAddressAfterRange, addr, m.base+uint64(len(m.data)))
	}
	return nil
}

// LoadFill copies the bytes at addr into dst. The start of the read must lie
// inside the buffer; positions of dst that fall past its end are zero.
func (m *BoundedImage) LoadFill(dst []byte, addr sleigh.Address) error {
	if err := m.check(addr); err != nil {
		return err
	}
	off := addr.Offset()
	for i := range dst {
		g := off + uint64(i)
		if m.Contains(g) {
			dst[i] = m.data[g-m.base]
		} else {
			dst[i] = 0
		}
	}
	return nil
}

// AdjustVMA is a no-op; the base is fixed by SetBytes.
func (m *BoundedImage) AdjustVMA(int64) {}
