package colorize

import (
	"strings"
	"testing"
)

func TestAssemblyDisabled(t *testing.T) {
	t.Setenv("PCODE_NO_COLOR", "1")
	in := "0x1000: push rbp\n"
	out, err := Assembly(in, "x86", "intel")
	if err != nil || out != in {
		t.Errorf("Assembly = %q, %v", out, err)
	}
}

func TestAssemblyColours(t *testing.T) {
	t.Setenv("PCODE_NO_COLOR", "")
	t.Setenv("NO_COLOR", "")
	for _, proc := range []string{"x86", "aarch64"} {
		out, err := Assembly("mov x0, x1\n", proc, "")
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(out, "\x1b[") {
			t.Errorf("%s: no escape sequences in %q", proc, out)
		}
	}
}

func TestStyleRegistered(t *testing.T) {
	if style().Name != "pcode-dark" || PcodeDark == nil {
		t.Errorf("style = %s", style().Name)
	}
}
