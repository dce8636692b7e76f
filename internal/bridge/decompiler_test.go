package bridge

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"pcode/internal/disasm"
	"pcode/internal/sleigh"
)

func newToy(t *testing.T, opts ...Option) *Decompiler {
	t.Helper()
	d, err := OpenString(toyLanguage, opts...)
	if err != nil {
		t.Fatalf("OpenString: %v", err)
	}
	return d
}

type line struct {
	Addr uint64
	Len  int
	Text string
}

func lines(s disasm.Stream) []line {
	var out []line
	for _, i := range s {
		out = append(out, line{i.Addr.Offset(), i.Len, i.Text()})
	}
	return out
}

func TestDisassemble(t *testing.T) {
	tests := []struct {
		name     string
		code     []byte
		limit    uint64
		want     []line
		consumed uint64
	}{
		{
			name:     "whole buffer",
			code:     []byte{0x00, 0x01, 0x05, 0x02},
			want:     []line{{0x1000, 1, "nop"}, {0x1001, 2, "mov r0, #0x5"}, {0x1003, 1, "ret"}},
			consumed: 4,
		},
		{
			name:     "limit stops the scan",
			code:     []byte{0x00, 0x00, 0x00, 0x00},
			limit:    2,
			want:     []line{{0x1000, 1, "nop"}, {0x1001, 1, "nop"}},
			consumed: 2,
		},
		{
			name:     "last instruction may cross the limit",
			code:     []byte{0x01, 0x07, 0x00},
			limit:    1,
			want:     []line{{0x1000, 2, "mov r0, #0x7"}},
			consumed: 2,
		},
		{
			name:     "bad data truncates",
			code:     []byte{0x00, 0x01, 0x05, 0xff, 0x00},
			want:     []line{{0x1000, 1, "nop"}, {0x1001, 2, "mov r0, #0x5"}},
			consumed: 3,
		},
		{
			name:     "unimplemented truncates",
			code:     []byte{0x00, 0xfe, 0x00},
			want:     []line{{0x1000, 1, "nop"}},
			consumed: 1,
		},
		{
			name:     "failure on the first instruction is an empty scan",
			code:     []byte{0xff, 0x00},
			consumed: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newToy(t)
			d.Reset(0x1000, tt.code)
			s, n, err := d.Disassemble(0x1000, tt.limit)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, lines(s)); diff != "" {
				t.Errorf("instructions (-want +got):\n%s", diff)
			}
			if n != tt.consumed {
				t.Errorf("consumed = %d, want %d", n, tt.consumed)
			}
		})
	}
}

func TestDisassembleConsumedMatchesLengths(t *testing.T) {
	d := newToy(t)
	code := []byte{0x01, 0x01, 0x00, 0x01, 0x02, 0x00, 0x02}
	d.Reset(0x400, code)
	s, n, err := d.Disassemble(0x400, 0)
	if err != nil {
		t.Fatal(err)
	}
	if s.Bytes() != n || n != uint64(len(code)) {
		t.Errorf("sum of lengths %d, consumed %d, buffer %d", s.Bytes(), n, len(code))
	}
	if !s.Contiguous() {
		t.Errorf("not contiguous:\n%s", s)
	}
}

func TestDisassembleIdempotent(t *testing.T) {
	d := newToy(t)
	d.Reset(0x1000, []byte{0x00, 0x01, 0x09, 0x02})
	s1, n1, err1 := d.Disassemble(0x1000, 0)
	s2, n2, err2 := d.Disassemble(0x1000, 0)
	if err1 != nil || err2 != nil {
		t.Fatal(err1, err2)
	}
	if n1 != n2 {
		t.Errorf("consumed %d then %d", n1, n2)
	}
	if diff := cmp.Diff(lines(s1), lines(s2)); diff != "" {
		t.Errorf("second run differs (-first +second):\n%s", diff)
	}
}

func TestEmptyImage(t *testing.T) {
	d := newToy(t)
	d.Reset(0x1000, nil)

	s, n, err := d.Disassemble(0x1000, 0)
	if err != nil || len(s) != 0 || n != 0 {
		t.Errorf("Disassemble = %v, %d, %v", s, n, err)
	}
	ops, n, err := d.Translate(0x1000, 16)
	if err != nil || len(ops) != 0 || n != 0 {
		t.Errorf("Translate = %v, %d, %v", ops, n, err)
	}
	if _, _, err := d.Disassemble(0x1001, 0); !errors.Is(err, sleigh.ErrAddressRange) {
		t.Errorf("start past empty image err = %v", err)
	}
	if _, _, err := d.Disassemble(0xfff, 0); !errors.Is(err, sleigh.ErrAddressBeforeRange) {
		t.Errorf("start before empty image err = %v", err)
	}
}

func TestStartOutOfRange(t *testing.T) {
	d := newToy(t)
	d.Reset(0x1000, []byte{0x00, 0x00})
	tests := []struct {
		addr uint64
		want error
	}{
		{0x0, sleigh.ErrAddressBeforeRange},
		{0xfff, sleigh.ErrAddressBeforeRange},
		{0x1002, sleigh.ErrAddressAfterRange},
		{0x9000, sleigh.ErrAddressAfterRange},
	}
	for _, tt := range tests {
		if _, _, err := d.Disassemble(tt.addr, 0); !errors.Is(err, tt.want) {
			t.Errorf("Disassemble(%#x) err = %v, want %v", tt.addr, err, tt.want)
		}
		if _, _, err := d.Translate(tt.addr, 0); !errors.Is(err, tt.want) {
			t.Errorf("Translate(%#x) err = %v, want %v", tt.addr, err, tt.want)
		}
	}
}

func TestEngineFaultPropagates(t *testing.T) {
	d := newToy(t)
	d.Reset(0, []byte{0x00, 0xfd, 0x00})
	s, n, err := d.Disassemble(0, 0)
	if !errors.Is(err, errToyFault) {
		t.Fatalf("err = %v, want toy fault", err)
	}
	if n != 1 || len(s) != 1 {
		t.Errorf("partial result = %v, %d", s, n)
	}
}

func TestTranslate(t *testing.T) {
	d := newToy(t)
	d.Reset(0x2000, []byte{0x01, 0x2a, 0x00, 0x02})
	ops, n, err := d.Translate(0x2000, 0)
	if err != nil {
		t.Fatal(err)
	}
	if n != 4 {
		t.Errorf("consumed = %d", n)
	}
	var got []string
	for _, op := range ops {
		got = append(got, op.Addr.String()+" "+op.String())
	}
	want := []string{
		"ram:0x2000 (register,0x0,4) = COPY (const,0x2a,4)",
		"ram:0x2003 RETURN (register,0x8,4)",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ops (-want +got):\n%s", diff)
	}
}

func TestTranslateSinkMayRetain(t *testing.T) {
	d := newToy(t)
	d.Reset(0, []byte{0x01, 0x01, 0x01, 0x02})
	var kept []disasm.Op
	_, err := d.TranslateTo(PcodeSinkFunc(func(op disasm.Op) { kept = append(kept, op) }), 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(kept) != 2 {
		t.Fatalf("ops = %v", kept)
	}
	// the engine reuses its operand array; earlier records must not change
	if kept[0].Inputs[0].Offset() != 1 || kept[1].Inputs[0].Offset() != 2 {
		t.Errorf("inputs aliased engine scratch: %v", kept)
	}
	if len(kept[0].Inputs) != 1 || kept[0].Output == nil {
		t.Errorf("first op = %v", kept[0])
	}
}

func TestDisassembleOnce(t *testing.T) {
	tests := []struct {
		name     string
		code     []byte
		maxInsts int
		want     []line
		overrun  []bool
		err      error
	}{
		{
			name:    "whole buffer",
			code:    []byte{0x00, 0x02},
			want:    []line{{0x1000, 1, "nop"}, {0x1001, 1, "ret"}},
			overrun: []bool{false, false},
		},
		{
			name:     "max instructions",
			code:     []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
			maxInsts: 1,
			want:     []line{{0x1000, 1, "nop"}},
			overrun:  []bool{false},
		},
		{
			name: "first instruction fails loudly",
			code: []byte{0xff, 0x00},
			err:  sleigh.ErrBadData,
		},
		{
			name: "first instruction unimplemented",
			code: []byte{0xfe},
			err:  sleigh.ErrUnimplemented,
		},
		{
			name:    "later failure truncates",
			code:    []byte{0x00, 0xff, 0x00},
			want:    []line{{0x1000, 1, "nop"}},
			overrun: []bool{false},
		},
		{
			name:    "later engine fault truncates",
			code:    []byte{0x02, 0xfd},
			want:    []line{{0x1000, 1, "ret"}},
			overrun: []bool{false},
		},
		{
			name:    "instruction past the buffer is marked",
			code:    []byte{0x00, 0x01},
			want:    []line{{0x1000, 1, "nop"}, {0x1001, 2, "mov r0, #0x0"}},
			overrun: []bool{false, true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newToy(t)
			s, err := d.DisassembleOnce(tt.code, 0x1000, tt.maxInsts)
			if tt.err != nil {
				if !errors.Is(err, tt.err) {
					t.Fatalf("err = %v, want %v", err, tt.err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, lines(s)); diff != "" {
				t.Errorf("instructions (-want +got):\n%s", diff)
			}
			var overrun []bool
			for _, i := range s {
				overrun = append(overrun, i.Overrun)
			}
			if diff := cmp.Diff(tt.overrun, overrun); diff != "" {
				t.Errorf("overrun (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDisassembleOnceNegativeCount(t *testing.T) {
	d := newToy(t)
	if _, err := d.DisassembleOnce([]byte{0x00}, 0x1000, -1); err == nil {
		t.Fatal("negative count accepted")
	}
}

func TestResetOutsideSpace(t *testing.T) {
	tests := []struct {
		name string
		base uint64
		size int
	}{
		{"base past the space", 0x100000000, 1},
		{"buffer crosses the top", 0xfffffffe, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newToy(t)
			if err := d.Reset(0x1000, []byte{0x02}); err != nil {
				t.Fatal(err)
			}
			err := d.Reset(tt.base, make([]byte, tt.size))
			if !errors.Is(err, sleigh.ErrAddressRange) || !strings.Contains(err.Error(), "outside ram space") {
				t.Fatalf("Reset err = %v", err)
			}
			// the previous buffer is still in place
			s, _, err := d.Disassemble(0x1000, 0)
			if err != nil || len(s) != 1 {
				t.Errorf("after rejected Reset: %v, %v", s, err)
			}
			if _, err := d.DisassembleOnce(make([]byte, tt.size), tt.base, 0); !errors.Is(err, sleigh.ErrAddressRange) {
				t.Errorf("DisassembleOnce err = %v", err)
			}
		})
	}
	d := newToy(t)
	if err := d.Reset(0xfffffffc, []byte{0x00, 0x00, 0x00, 0x02}); err != nil {
		t.Errorf("buffer ending at the top of the space: %v", err)
	}
	if _, _, err := d.Disassemble(0x100000000, 0); !errors.Is(err, sleigh.ErrAddressRange) {
		t.Errorf("scan outside the space: %v", err)
	}
}

func TestResetIndependence(t *testing.T) {
	d := newToy(t)
	first, err := d.DisassembleOnce([]byte{0x01, 0x11, 0x01, 0x22, 0x01, 0x33}, 0x1000, 0)
	if err != nil {
		t.Fatal(err)
	}
	second, err := d.DisassembleOnce([]byte{0x00, 0x02}, 0x1000, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != 3 || len(second) != 2 {
		t.Fatalf("lengths %d and %d", len(first), len(second))
	}
	for _, i := range second {
		if i.Mnem == "mov" {
			t.Errorf("instruction from the first buffer leaked: %v", i)
		}
	}
}

func TestResetClearsContext(t *testing.T) {
	d := newToy(t)
	d.Reset(0, []byte{0x00})
	if err := d.Context().SetVariable("mode", d.Address(0), 3); err != nil {
		t.Fatal(err)
	}
	if err := d.Context().SetVariableDefault("mode", 1); err != nil {
		t.Fatal(err)
	}
	d.Reset(0, []byte{0x00})
	if v, _ := d.Context().GetVariable("mode", d.Address(0)); v != 1 {
		t.Errorf("mode after reset = %d, want default 1", v)
	}
}

func TestWithProperty(t *testing.T) {
	d := newToy(t, WithProperty("syntax", "upper"))
	s, err := d.DisassembleOnce([]byte{0x00}, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if s[0].Mnem != "NOP" {
		t.Errorf("mnemonic = %q", s[0].Mnem)
	}
}

func TestRegisters(t *testing.T) {
	d := newToy(t)
	regs := d.Registers()

	var names []string
	seen := make(map[sleigh.VarnodeData]bool)
	for k, r := range regs {
		if seen[r.Varnode()] {
			t.Errorf("duplicate varnode %v", r.Varnode())
		}
		seen[r.Varnode()] = true
		if k > 0 && !regs[k-1].Varnode().Less(r.Varnode()) {
			t.Errorf("registers out of order at %d", k)
		}
		names = append(names, r.Name())
	}
	if diff := cmp.Diff([]string{"r0", "r0l", "r1", "lr"}, names); diff != "" {
		t.Errorf("names (-want +got):\n%s", diff)
	}
}

func TestOpenErrors(t *testing.T) {
	if _, err := OpenString(`<language processor="nope"><spaces default="ram"><space name="ram"/></spaces></language>`); !errors.Is(err, sleigh.ErrUnknownProcessor) {
		t.Errorf("unknown processor err = %v", err)
	}
	if _, err := OpenString(`<language`); !errors.Is(err, sleigh.ErrParse) {
		t.Errorf("malformed document err = %v", err)
	}
	if _, err := Open("/does/not/exist.xml"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestIndependentHandles(t *testing.T) {
	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for k := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := OpenString(toyLanguage)
			if err != nil {
				errs <- err
				return
			}
			code := make([]byte, k+1)
			s, err := d.DisassembleOnce(code, uint64(k)*0x100, 0)
			if err == nil && len(s) != k+1 {
				err = errors.New("wrong instruction count")
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Error(err)
		}
	}
}
