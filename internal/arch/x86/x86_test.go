package x86

import (
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"pcode/internal/bridge"
	"pcode/internal/langs"
	"pcode/internal/sleigh"
)

func open(t *testing.T, name string, opts ...bridge.Option) *bridge.Decompiler {
	t.Helper()
	store, err := langs.Load(name)
	if err != nil {
		t.Fatal(err)
	}
	d, err := bridge.New(store, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func code(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(strings.ReplaceAll(s, " ", ""))
	if err != nil {
		t.Fatal(err)
	}
	return b
}

type asm struct {
	Mnem string
	Body string
	Len  int
}

func TestDisassemble(t *testing.T) {
	tests := []struct {
		lang string
		code string
		want []asm
	}{
		{"x86-64", "55 48 89 e5 c3", []asm{{"push", "rbp", 1}, {"mov", "rbp, rsp", 3}, {"ret", "", 1}}},
		{"x86-64", "31 c0 90", []asm{{"xor", "eax, eax", 2}, {"nop", "", 1}}},
		{"x86", "55 89 e5 c3", []asm{{"push", "ebp", 1}, {"mov", "ebp, esp", 2}, {"ret", "", 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.lang+" "+tt.code, func(t *testing.T) {
			d := open(t, tt.lang)
			s, err := d.DisassembleOnce(code(t, tt.code), 0x401000, 0)
			if err != nil {
				t.Fatal(err)
			}
			var got []asm
			for _, i := range s {
				got = append(got, asm{strings.ToLower(i.Mnem), i.Body, i.Len})
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
			if !s.Contiguous() {
				t.Error("not contiguous")
			}
		})
	}
}

func TestZeroBytes(t *testing.T) {
	d := open(t, "x86-64")
	s, err := d.DisassembleOnce(make([]byte, 10), 0x1000, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(s) != 1 || s[0].Mnem != "add" || s[0].Len != 2 {
		t.Fatalf("got %v", s)
	}
	if s[0].Addr.Offset() != 0x1000 {
		t.Errorf("address %v", s[0].Addr)
	}
}

func TestBadData(t *testing.T) {
	d := open(t, "x86-64")
	// push es does not exist in 64-bit mode
	if _, err := d.DisassembleOnce([]byte{0x06}, 0x1000, 0); !errors.Is(err, sleigh.ErrBadData) {
		t.Fatalf("err = %v, want bad data", err)
	}
	d.Reset(0x1000, []byte{0x90, 0x06, 0x90})
	s, n, err := d.Disassemble(0x1000, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(s) != 1 || n != 1 {
		t.Errorf("got %d instructions, %d bytes", len(s), n)
	}
}

func TestGNUSyntax(t *testing.T) {
	d := open(t, "x86-64", bridge.WithProperty("syntax", "gnu"))
	s, err := d.DisassembleOnce([]byte{0x48, 0x89, 0xe5}, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(s[0].Body, "%rsp") || !strings.Contains(s[0].Body, "%rbp") {
		t.Errorf("not AT&T operands: %q", s[0].Text())
	}
}

func TestModeFromContext(t *testing.T) {
	d := open(t, "x86-64")
	d.Reset(0x1000, []byte{0x48, 0xc3})
	if err := d.Context().SetVariable("addrsize", d.Address(0x1000), 1); err != nil {
		t.Fatal(err)
	}
	s, _, err := d.Disassemble(0x1000, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(s) != 2 || s[0].Text() != "dec eax" {
		t.Errorf("32-bit decode = %v", s)
	}
}

func translate(t *testing.T, lang, hexcode string, addr uint64) []string {
	t.Helper()
	d := open(t, lang)
	b := code(t, hexcode)
	d.Reset(addr, b)
	ops, n, err := d.Translate(addr, 0)
	if err != nil {
		t.Fatal(err)
	}
	if n != uint64(len(b)) {
		t.Fatalf("consumed %d of %d bytes", n, len(b))
	}
	var out []string
	for _, op := range ops {
		out = append(out, op.String())
	}
	return out
}

func TestTranslate(t *testing.T) {
	tests := []struct {
		name string
		code string
		want []string
	}{
		{
			name: "push",
			code: "55",
			want: []string{
				"(unique,0x100,8) = COPY (register,0x28,8)",
				"(register,0x20,8) = INT_SUB (register,0x20,8), (const,0x8,8)",
				"STORE (const,0x1,8), (register,0x20,8), (unique,0x100,8)",
			},
		},
		{
			name: "mov",
			code: "48 89 e5",
			want: []string{"(register,0x28,8) = COPY (register,0x20,8)"},
		},
		{
			name: "ret",
			code: "c3",
			want: []string{
				"(unique,0x100,8) = LOAD (const,0x1,8), (register,0x20,8)",
				"(register,0x20,8) = INT_ADD (register,0x20,8), (const,0x8,8)",
				"RETURN (unique,0x100,8)",
			},
		},
		{
			name: "xor clears the full register",
			code: "31 c0",
			want: []string{
				"(register,0x200,1) = COPY (const,0x0,1)",
				"(register,0x20b,1) = COPY (const,0x0,1)",
				"(unique,0x100,4) = INT_XOR (register,0x0,4), (register,0x0,4)",
				"(register,0x0,8) = INT_ZEXT (unique,0x100,4)",
				"(register,0x206,1) = INT_EQUAL (unique,0x100,4), (const,0x0,4)",
				"(register,0x207,1) = INT_SLESS (unique,0x100,4), (const,0x0,4)",
			},
		},
		{
			name: "call",
			code: "e8 00 00 00 00",
			want: []string{
				"(register,0x20,8) = INT_SUB (register,0x20,8), (const,0x8,8)",
				"STORE (const,0x1,8), (register,0x20,8), (const,0x1005,8)",
				"CALL (ram,0x1005,8)",
			},
		},
		{
			name: "je",
			code: "74 02",
			want: []string{"CBRANCH (ram,0x1004,8), (register,0x206,1)"},
		},
		{
			name: "push imm8 is a quadword",
			code: "6a 01",
			want: []string{
				"(register,0x20,8) = INT_SUB (register,0x20,8), (const,0x8,8)",
				"STORE (const,0x1,8), (register,0x20,8), (const,0x1,8)",
			},
		},
		{
			name: "push imm32 sign extends",
			code: "68 ff ff ff ff",
			want: []string{
				"(register,0x20,8) = INT_SUB (register,0x20,8), (const,0x8,8)",
				"STORE (const,0x1,8), (register,0x20,8), (const,0xffffffffffffffff,8)",
			},
		},
		{
			name: "push memory",
			code: "ff 30",
			want: []string{
				"(unique,0x100,8) = LOAD (const,0x1,8), (register,0x0,8)",
				"(unique,0x110,8) = COPY (unique,0x100,8)",
				"(register,0x20,8) = INT_SUB (register,0x20,8), (const,0x8,8)",
				"STORE (const,0x1,8), (register,0x20,8), (unique,0x110,8)",
			},
		},
		{
			name: "push imm16 with operand size prefix",
			code: "66 6a 01",
			want: []string{
				"(register,0x20,8) = INT_SUB (register,0x20,8), (const,0x2,8)",
				"STORE (const,0x1,8), (register,0x20,8), (const,0x1,2)",
			},
		},
		{
			name: "nop emits nothing",
			code: "90",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := translate(t, "x86-64", tt.code, 0x1000)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
		})
	}
}

func TestTranslateUnimplemented(t *testing.T) {
	d := open(t, "x86-64")
	d.Reset(0x1000, []byte{0x55, 0xf4, 0xc3})
	ops, n, err := d.Translate(0x1000, 0)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 || len(ops) != 3 {
		t.Errorf("consumed %d bytes, %d ops", n, len(ops))
	}
}

func TestRegisters(t *testing.T) {
	d := open(t, "x86-64")
	regs := d.Registers()
	seen := make(map[sleigh.VarnodeData]string)
	for _, r := range regs {
		if prev, dup := seen[r.Varnode()]; dup {
			t.Errorf("%s and %s share %v", prev, r.Name(), r.Varnode())
		}
		seen[r.Varnode()] = r.Name()
	}
	if regs[0].Name() != "rax" {
		t.Errorf("first register %s", regs[0].Name())
	}
}
