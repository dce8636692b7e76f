package styles

import (
	"strings"
	"testing"
)

func TestMarkdownRenderer(t *testing.T) {
	r, err := MarkdownRenderer(60)
	if err != nil {
		t.Fatal(err)
	}
	out, err := r.Render("# x86-64\n\n- processor: `x86`\n")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "x86-64") || !strings.Contains(out, "processor") {
		t.Errorf("rendered = %q", out)
	}
}
