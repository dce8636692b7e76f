package sleigh

import (
	"fmt"
	"maps"
	"sort"
	"strconv"
	"strings"
)

// Register is a named varnode declared by a language.
type Register struct {
	Name    string
	Varnode VarnodeData
}

// ContextVariable is a context variable declared by a language.
type ContextVariable struct {
	Name    string
	Default uint32
}

// Language is the processor description bound from a <language> document.
// It is immutable once built; WithProperties returns a modified copy.
type Language struct {
	id        string
	processor string
	bigEndian bool
	size      int
	variant   string
	desc      string
	maxLen    int

	spaces     []*AddrSpace
	spaceByKey map[string]*AddrSpace
	defCode    *AddrSpace
	constSpace *AddrSpace
	unique     *AddrSpace

	regs      []Register
	regByName map[string]Register

	props   map[string]string
	ctxVars []ContextVariable
}

// NewLanguage binds the <language> element registered in store.
func NewLanguage(store *DocumentStorage) (*Language, error) {
	el := store.GetTag("language")
	if el == nil {
		return nil, fmt.Errorf("%w: no <language> element", ErrParse)
	}
	l, err := bindLanguage(el)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return l, nil
}

func bindLanguage(el *Element) (*Language, error) {
	l := &Language{
		id:         el.AttrOr("id", ""),
		processor:  el.AttrOr("processor", ""),
		variant:    el.AttrOr("variant", "default"),
		spaceByKey: make(map[string]*AddrSpace),
		regByName:  make(map[string]Register),
		props:      make(map[string]string),
	}
	if l.processor == "" {
		return nil, fmt.Errorf("language %q: missing processor", l.id)
	}
	if l.id == "" {
		l.id = l.processor
	}
	switch endian := el.AttrOr("endian", "little"); endian {
	case "little":
	case "big":
		l.bigEndian = true
	default:
		return nil, fmt.Errorf("language %s: bad endian %q", l.id, endian)
	}
	var err error
	if l.size, err = parseInt(el.AttrOr("size", "32"), "size"); err != nil {
		return nil, err
	}
	if l.maxLen, err = parseInt(el.AttrOr("maxlength", "16"), "maxlength"); err != nil {
		return nil, err
	}
	if l.maxLen <= 0 {
		return nil, fmt.Errorf("language %s: maxlength must be positive", l.id)
	}
	if d := el.Child("description"); d != nil {
		l.desc = strings.TrimSpace(d.Content)
	}
	if p := el.Child("properties"); p != nil {
		for _, prop := range p.ChildrenNamed("property") {
			key, ok := prop.Attr("key")
			if !ok {
				return nil, fmt.Errorf("language %s: property without key", l.id)
			}
			l.props[key] = prop.AttrOr("value", "")
		}
	}
	if err := l.bindSpaces(el.Child("spaces")); err != nil {
		return nil, err
	}
	if err := l.bindRegisters(el.ChildrenNamed("registers")); err != nil {
		return nil, err
	}
	if c := el.Child("context"); c != nil {
		for _, v := range c.ChildrenNamed("variable") {
			name, ok := v.Attr("name")
			if !ok {
				return nil, fmt.Errorf("language %s: context variable without name", l.id)
			}
			def, err := parseUintN(v.AttrOr("default", "0"), "default", 32)
			if err != nil {
				return nil, err
			}
			l.ctxVars = append(l.ctxVars, ContextVariable{Name: name, Default: uint32(def)})
		}
	}
	return l, nil
}

func (l *Language) bindSpaces(el *Element) error {
	if el == nil {
		return fmt.Errorf("language %s: no <spaces>", l.id)
	}
	for _, s := range el.ChildrenNamed("space") {
		name, ok := s.Attr("name")
		if !ok {
			return fmt.Errorf("language %s: space without name", l.id)
		}
		if _, dup := l.spaceByKey[name]; dup {
			return fmt.Errorf("language %s: space %q declared twice", l.id, name)
		}
		typ, err := ParseSpaceType(s.AttrOr("type", "processor"))
		if err != nil {
			return fmt.Errorf("space %s: %w", name, err)
		}
		size, err := parseUint(s.AttrOr("size", "8"), "size")
		if err != nil {
			return fmt.Errorf("space %s: %w", name, err)
		}
		word, err := parseUint(s.AttrOr("wordsize", "1"), "wordsize")
		if err != nil {
			return fmt.Errorf("space %s: %w", name, err)
		}
		sp := NewAddrSpace(name, typ, len(l.spaces), uint32(size), uint32(word), l.bigEndian)
		l.spaces = append(l.spaces, sp)
		l.spaceByKey[name] = sp
		switch typ {
		case SpaceConstant:
			l.constSpace = sp
		case SpaceInternal:
			if l.unique == nil {
				l.unique = sp
			}
		}
	}
	def, ok := el.Attr("default")
	if !ok {
		return fmt.Errorf("language %s: no default code space", l.id)
	}
	if l.defCode = l.spaceByKey[def]; l.defCode == nil {
		return fmt.Errorf("language %s: unknown default space %q", l.id, def)
	}
	if l.constSpace == nil {
		l.constSpace = NewAddrSpace("const", SpaceConstant, len(l.spaces), 8, 1, l.bigEndian)
		l.spaces = append(l.spaces, l.constSpace)
		l.spaceByKey["const"] = l.constSpace
	}
	return nil
}

func (l *Language) bindRegisters(groups []*Element) error {
	for _, g := range groups {
		group := g.AttrOr("space", "register")
		for _, r := range g.ChildrenNamed("register") {
			name, ok := r.Attr("name")
			if !ok {
				return fmt.Errorf("language %s: register without name", l.id)
			}
			if _, dup := l.regByName[name]; dup {
				return fmt.Errorf("language %s: register %q declared twice", l.id, name)
			}
			spaceName := r.AttrOr("space", group)
			sp := l.spaceByKey[spaceName]
			if sp == nil {
				return fmt.Errorf("register %s: unknown space %q", name, spaceName)
			}
			off, err := parseUint(r.AttrOr("offset", ""), "offset")
			if err != nil {
				return fmt.Errorf("register %s: %w", name, err)
			}
			size, err := parseUint(r.AttrOr("size", ""), "size")
			if err != nil {
				return fmt.Errorf("register %s: %w", name, err)
			}
			if size == 0 {
				return fmt.Errorf("register %s: zero size", name)
			}
			reg := Register{Name: name, Varnode: NewVarnode(sp, off, uint32(size))}
			l.regs = append(l.regs, reg)
			l.regByName[name] = reg
		}
	}
	return nil
}

func parseUint(s, what string) (uint64, error) {
	return parseUintN(s, what, 64)
}

func parseUintN(s, what string, bits int) (uint64, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 0, bits)
	if err != nil {
		return 0, fmt.Errorf("bad %s %q", what, s)
	}
	return v, nil
}

func parseInt(s, what string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("bad %s %q", what, s)
	}
	return v, nil
}

func (l *Language) ID() string                   { return l.id }
func (l *Language) Processor() string            { return l.processor }
func (l *Language) IsBigEndian() bool            { return l.bigEndian }
func (l *Language) Size() int                    { return l.size }
func (l *Language) Variant() string              { return l.variant }
func (l *Language) Description() string          { return l.desc }
func (l *Language) MaxInstructionLength() int    { return l.maxLen }
func (l *Language) DefaultCodeSpace() *AddrSpace { return l.defCode }
func (l *Language) ConstantSpace() *AddrSpace    { return l.constSpace }
func (l *Language) UniqueSpace() *AddrSpace      { return l.unique }

// Spaces returns the declared spaces in index order.
func (l *Language) Spaces() []*AddrSpace {
	return append([]*AddrSpace(nil), l.spaces...)
}

// Space looks up a space by name.
func (l *Language) Space(name string) *AddrSpace {
	return l.spaceByKey[name]
}

// Register looks up a register by name.
func (l *Language) Register(name string) (Register, bool) {
	r, ok := l.regByName[name]
	return r, ok
}

// Registers returns the registers in declaration order, aliases included.
func (l *Language) Registers() []Register {
	return append([]Register(nil), l.regs...)
}

// AllRegisters adds each register to out unless its varnode is already
// named, so the first declared name of an alias wins.
func (l *Language) AllRegisters(out map[VarnodeData]string) {
	for _, r := range l.regs {
		if _, ok := out[r.Varnode]; !ok {
			out[r.Varnode] = r.Name
		}
	}
}

// Property returns a language property such as the assembly syntax.
func (l *Language) Property(key string) (string, bool) {
	v, ok := l.props[key]
	return v, ok
}

// Properties returns the property keys in sorted order.
func (l *Language) Properties() []string {
	keys := make([]string, 0, len(l.props))
	for k := range l.props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// WithProperties returns a copy of l with props merged over its own.
func (l *Language) WithProperties(props map[string]string) *Language {
	if len(props) == 0 {
		return l
	}
	c := *l
	c.props = maps.Clone(l.props)
	maps.Copy(c.props, props)
	return &c
}

func (l *Language) ContextVariables() []ContextVariable {
	return append([]ContextVariable(nil), l.ctxVars...)
}

// NewContext returns a context database holding the language's variables at
// their defaults.
func (l *Language) NewContext() *ContextDatabase {
	ctx := NewContextDatabase()
	for _, v := range l.ctxVars {
		ctx.RegisterVariable(v.Name, v.Default)
	}
	return ctx
}
