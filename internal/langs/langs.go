// Package langs bundles the language documents for the built-in engines.
package langs

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"pcode/internal/sleigh"
)

//go:embed data/*.xml
var files embed.FS

var builtin = map[string]string{
	"x86-64":  "data/x86-64.xml",
	"x86":     "data/x86.xml",
	"aarch64": "data/aarch64.xml",
}

var aliases = map[string]string{
	"amd64":  "x86-64",
	"x86_64": "x86-64",
	"386":    "x86",
	"i386":   "x86",
	"arm64":  "aarch64",
}

// Names lists the built-in language names.
func Names() []string {
	names := make([]string, 0, len(builtin))
	for name := range builtin {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Canonical maps an alias such as "amd64" to its built-in name. It returns
// "" when name is not built in.
func Canonical(name string) string {
	name = strings.ToLower(name)
	if a, ok := aliases[name]; ok {
		name = a
	}
	if _, ok := builtin[name]; !ok {
		return ""
	}
	return name
}

// Read returns the raw document of a built-in language.
func Read(name string) ([]byte, error) {
	c := Canonical(name)
	if c == "" {
		return nil, fmt.Errorf("unknown language %q (built in: %s)", name, strings.Join(Names(), ", "))
	}
	return files.ReadFile(builtin[c])
}

// Load parses a built-in language by name, or a language document at a
// file path.
func Load(nameOrPath string) (*sleigh.DocumentStorage, error) {
	if c := Canonical(nameOrPath); c != "" {
		data, err := files.ReadFile(builtin[c])
		if err != nil {
			return nil, err
		}
		return sleigh.LoadDocument(bytes.NewReader(data))
	}
	if _, err := os.Stat(nameOrPath); err != nil {
		return nil, fmt.Errorf("unknown language %q (built in: %s)", nameOrPath, strings.Join(Names(), ", "))
	}
	return sleigh.LoadDocumentFile(nameOrPath)
}

// Language loads and binds a language.
func Language(nameOrPath string) (*sleigh.Language, error) {
	store, err := Load(nameOrPath)
	if err != nil {
		return nil, err
	}
	return sleigh.NewLanguage(store)
}
