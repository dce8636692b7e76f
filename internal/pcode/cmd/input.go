package cmd

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"pcode/internal/bridge"
	"pcode/internal/elfx"
	"pcode/internal/langs"
	"pcode/internal/symbols"
)

// decodeOptions are the flags shared by disasm and pcode.
type decodeOptions struct {
	Lang    string
	Syntax  string
	Hex     string
	Section string
	Symbol  string
	Base    uint64
	Limit   uint64
	Count   int
	Scan    bool
	Color   bool
	Props   map[string]string
}

func addDecodeFlags(cmd *cobra.Command, o *decodeOptions) {
	f := cmd.Flags()
	f.StringVar(&o.Hex, "hex", "", "decode hex encoded bytes instead of a file")
	f.Uint64Var(&o.Base, "base", 0, "load address of raw input")
	f.IntVarP(&o.Count, "count", "n", 0, "maximum instructions (0 for all)")
	f.Uint64Var(&o.Limit, "limit", 0, "maximum bytes to scan (0 for all)")
	f.BoolVar(&o.Scan, "scan", false, "scan until the first undecodable instruction")
	f.StringVar(&o.Section, "section", "", "ELF section to decode")
	f.StringVar(&o.Symbol, "symbol", "", "ELF function to decode")
}

// resolve fills the options the flags left unset from the configuration.
func (o *decodeOptions) resolve(cmd *cobra.Command) {
	o.Lang = language(cmd)
	o.Syntax = assemblySyntax(cmd)
	o.Color = useColor()
	o.Props = cfg.Properties
	f := cmd.Flags()
	if !f.Changed("base") {
		o.Base = cfg.Base
	}
	if !f.Changed("count") {
		o.Count = cfg.Count
	}
	if !f.Changed("limit") {
		o.Limit = cfg.Limit
	}
}

// input is a buffer to decode and where it came from.
type input struct {
	name string
	lang string
	base uint64
	data []byte
	syms *symbols.Table
	img  *elfx.Image
}

func (in *input) Close() error {
	if in.img == nil {
		return nil
	}
	return in.img.Close()
}

var elfMagic = []byte("\x7fELF")

func loadInput(path string, o decodeOptions) (*input, error) {
	if o.Hex != "" {
		if path != "" {
			return nil, errors.New("--hex and a file are mutually exclusive")
		}
		data, err := parseHex(o.Hex)
		if err != nil {
			return nil, err
		}
		return &input{name: "hex", lang: o.Lang, base: o.Base, data: data, syms: symbols.NewTable(nil)}, nil
	}
	if path == "" {
		return nil, errors.New("no input: pass a file or --hex")
	}
	isELF, err := hasMagic(path)
	if err != nil {
		return nil, err
	}
	if isELF {
		return loadELF(path, o)
	}
	if o.Section != "" || o.Symbol != "" {
		return nil, fmt.Errorf("%s: --section and --symbol need an ELF file", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return &input{name: path, lang: o.Lang, base: o.Base, data: data, syms: symbols.NewTable(nil)}, nil
}

func hasMagic(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()
	head := make([]byte, len(elfMagic))
	if _, err := io.ReadFull(f, head); err != nil {
		return false, nil
	}
	return bytes.Equal(head, elfMagic), nil
}

func loadELF(path string, o decodeOptions) (*input, error) {
	im, err := elfx.Open(path)
	if err != nil {
		return nil, err
	}
	in := &input{name: path, lang: o.Lang, img: im, syms: symbols.NewTable(im.Symbols)}
	if in.lang == "" {
		if in.lang, err = im.Language(); err != nil {
			im.Close()
			return nil, err
		}
	}

	r := im.Code
	switch {
	case o.Symbol != "":
		r, err = im.Function(o.Symbol)
	case o.Section != "":
		r, err = im.Section(o.Section)
	}
	if err == nil && len(r.Data) == 0 {
		err = errors.New("no code bytes")
	}
	if err != nil {
		im.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	in.base, in.data = r.Addr, r.Data
	slog.Debug("Loaded ELF input", "path", path, "lang", in.lang, "base", fmt.Sprintf("%#x", in.base), "size", len(in.data))
	return in, nil
}

// parseHex accepts hex with optional whitespace, commas and 0x prefixes.
func parseHex(s string) ([]byte, error) {
	s = strings.NewReplacer("0x", "", "0X", "", ",", " ", "\\x", "").Replace(s)
	s = strings.Join(strings.Fields(s), "")
	data, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("parse --hex: %w", err)
	}
	return data, nil
}

func newDecompiler(lang string, o decodeOptions) (*bridge.Decompiler, error) {
	if lang == "" {
		return nil, errors.New("no language: pass --lang")
	}
	l, err := langs.Language(lang)
	if err != nil {
		return nil, err
	}
	var opts []bridge.Option
	for k, v := range o.Props {
		opts = append(opts, bridge.WithProperty(k, v))
	}
	if o.Syntax != "" {
		opts = append(opts, bridge.WithProperty("syntax", o.Syntax))
	}
	return bridge.NewFromLanguage(l, opts...)
}
