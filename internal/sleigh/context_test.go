package sleigh

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestContextDatabase(t *testing.T) {
	ram := NewAddrSpace("ram", SpaceProcessor, 1, 8, 1, false)
	at := func(off uint64) Address { return NewAddress(ram, off) }

	c := NewContextDatabase()
	c.RegisterVariable("mode", 2)
	c.RegisterVariable("thumb", 0)

	if err := c.SetVariable("mode", at(0x100), 1); err != nil {
		t.Fatal(err)
	}
	if err := c.SetVariable("mode", at(0x200), 0); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		off  uint64
		want uint32
	}{
		{0x0, 2},
		{0xff, 2},
		{0x100, 1},
		{0x1ff, 1},
		{0x200, 0},
		{0x10000, 0},
	}
	for _, tt := range tests {
		got, err := c.GetVariable("mode", at(tt.off))
		if err != nil {
			t.Fatal(err)
		}
		if got != tt.want {
			t.Errorf("mode at %#x = %d, want %d", tt.off, got, tt.want)
		}
	}

	if err := c.SetVariableDefault("mode", 1); err != nil {
		t.Fatal(err)
	}
	c.Reset()
	if got, _ := c.GetVariable("mode", at(0x200)); got != 1 {
		t.Errorf("after reset mode = %d, want default 1", got)
	}
	if got, _ := c.GetDefaultValue("mode"); got != 1 {
		t.Errorf("default = %d", got)
	}
	if diff := cmp.Diff([]string{"mode", "thumb"}, c.Variables()); diff != "" {
		t.Errorf("variables (-want +got):\n%s", diff)
	}
}

func TestContextDatabaseSpaces(t *testing.T) {
	ram := NewAddrSpace("ram", SpaceProcessor, 1, 8, 1, false)
	rom := NewAddrSpace("rom", SpaceProcessor, 2, 8, 1, false)
	c := NewContextDatabase()
	c.RegisterVariable("mode", 0)
	if err := c.SetVariable("mode", NewAddress(ram, 0x10), 7); err != nil {
		t.Fatal(err)
	}
	if got, _ := c.GetVariable("mode", NewAddress(rom, 0x20)); got != 0 {
		t.Errorf("value leaked into another space: %d", got)
	}
}

func TestContextDatabaseUnknown(t *testing.T) {
	c := NewContextDatabase()
	if _, err := c.GetDefaultValue("nope"); !errors.Is(err, ErrUnknownContextVariable) {
		t.Errorf("GetDefaultValue err = %v", err)
	}
	if err := c.SetVariable("nope", Address{}, 1); !errors.Is(err, ErrUnknownContextVariable) {
		t.Errorf("SetVariable err = %v", err)
	}
}
