package bridge

import (
	"sort"

	"pcode/internal/sleigh"
)

// RegisterPair is a register name and the varnode it names.
type RegisterPair struct {
	name string
	vn   sleigh.VarnodeData
}

func (r RegisterPair) Name() string                { return r.name }
func (r RegisterPair) Varnode() sleigh.VarnodeData { return r.vn }

// Registers lists the engine's named registers ordered by varnode. Names
// that alias the same varnode are reported once, under the first name the
// language declares.
func (d *Decompiler) Registers() []RegisterPair {
	table := make(map[sleigh.VarnodeData]string)
	d.engine.GetAllRegisters(table)
	regs := make([]RegisterPair, 0, len(table))
	for vn, name := range table {
		regs = append(regs, RegisterPair{name: name, vn: vn})
	}
	sort.Slice(regs, func(i, j int) bool { return regs[i].vn.Less(regs[j].vn) })
	return regs
}
