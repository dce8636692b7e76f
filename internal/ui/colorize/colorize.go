// Package colorize highlights assembly listings for the terminal.
package colorize

import (
	"os"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// Enabled reports whether colour output is allowed. PCODE_NO_COLOR or
// NO_COLOR disable it.
func Enabled() bool {
	return os.Getenv("PCODE_NO_COLOR") == "" && os.Getenv("NO_COLOR") == ""
}

// lexerFor picks an assembly lexer for a processor and assembly syntax.
func lexerFor(processor, syntax string) chroma.Lexer {
	var candidates []string
	switch {
	case processor == "aarch64":
		candidates = []string{"armasm", "gas"}
	case syntax == "gnu" || syntax == "att":
		candidates = []string{"gas", "nasm"}
	default:
		candidates = []string{"nasm", "gas"}
	}
	for _, name := range candidates {
		if lexer := lexers.Get(name); lexer != nil {
			return lexer
		}
	}
	return nil
}

func style() *chroma.Style {
	for _, name := range []string{"pcode-dark", "dracula", "monokai"} {
		if s := styles.Get(name); s != nil {
			return s
		}
	}
	return styles.Fallback
}

func formatter() chroma.Formatter {
	for _, name := range []string{"terminal16m", "terminal256"} {
		if f := formatters.Get(name); f != nil {
			return f
		}
	}
	return formatters.Fallback
}

// Assembly highlights an assembly listing. The listing is returned unchanged
// when colour is disabled or no lexer fits.
func Assembly(code, processor, syntax string) (string, error) {
	if !Enabled() {
		return code, nil
	}
	lexer := lexerFor(processor, syntax)
	if lexer == nil {
		return code, nil
	}
	it, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code, err
	}
	var buf strings.Builder
	if err := formatter().Format(&buf, style(), it); err != nil {
		return code, err
	}
	return buf.String(), nil
}
