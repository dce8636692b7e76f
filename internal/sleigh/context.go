package sleigh

import (
	"fmt"
	"sort"
)

// ContextDatabase holds the named context variables an engine consults while
// decoding. Each variable has a default and may be overridden from an address
// onwards.
type ContextDatabase struct {
	vars map[string]*contextVar
}

type contextVar struct {
	def    uint32
	splits []contextSplit // sorted by address
}

type contextSplit struct {
	addr Address
	val  uint32
}

func NewContextDatabase() *ContextDatabase {
	return &ContextDatabase{vars: make(map[string]*contextVar)}
}

// RegisterVariable declares a variable with its default value. Declaring an
// existing variable replaces its default and keeps its overrides.
func (c *ContextDatabase) RegisterVariable(name string, def uint32) {
	if v, ok := c.vars[name]; ok {
		v.def = def
		return
	}
	c.vars[name] = &contextVar{def: def}
}

func (c *ContextDatabase) lookup(name string) (*contextVar, error) {
	v, ok := c.vars[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownContextVariable, name)
	}
	return v, nil
}

func (c *ContextDatabase) SetVariableDefault(name string, val uint32) error {
	v, err := c.lookup(name)
	if err != nil {
		return err
	}
	v.def = val
	return nil
}

func (c *ContextDatabase) GetDefaultValue(name string) (uint32, error) {
	v, err := c.lookup(name)
	if err != nil {
		return 0, err
	}
	return v.def, nil
}

// SetVariable sets name to val from addr up to the next address at which the
// variable was set in the same space.
func (c *ContextDatabase) SetVariable(name string, addr Address, val uint32) error {
	v, err := c.lookup(name)
	if err != nil {
		return err
	}
	i := sort.Search(len(v.splits), func(i int) bool {
		return v.splits[i].addr.Compare(addr) >= 0
	})
	if i < len(v.splits) && v.splits[i].addr.Compare(addr) == 0 {
		v.splits[i].val = val
		return nil
	}
	v.splits = append(v.splits, contextSplit{})
	copy(v.splits[i+1:], v.splits[i:])
	v.splits[i] = contextSplit{addr: addr, val: val}
	return nil
}

// GetVariable returns the value of name in effect at addr.
func (c *ContextDatabase) GetVariable(name string, addr Address) (uint32, error) {
	v, err := c.lookup(name)
	if err != nil {
		return 0, err
	}
	i := sort.Search(len(v.splits), func(i int) bool {
		return v.splits[i].addr.Compare(addr) > 0
	})
	if i > 0 && v.splits[i-1].addr.Space() == addr.Space() {
		return v.splits[i-1].val, nil
	}
	return v.def, nil
}

// Variables lists the declared variable names in sorted order.
func (c *ContextDatabase) Variables() []string {
	names := make([]string, 0, len(c.vars))
	for name := range c.vars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Reset drops every address-ranged value. Defaults are kept.
func (c *ContextDatabase) Reset() {
	for _, v := range c.vars {
		v.splits = nil
	}
}
