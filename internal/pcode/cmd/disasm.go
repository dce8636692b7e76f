package cmd

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"pcode/internal/disasm"
	"pcode/internal/ui/colorize"
)

var disasmOpts decodeOptions

var disasmCmd = &cobra.Command{
	Use:   "disasm [file]",
	Short: "Print the assembly listing of a buffer",
	Example: `  pcode disasm --lang x86-64 --hex "55 48 89 e5 c3"
  pcode disasm ./a.out --symbol main`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		disasmOpts.resolve(cmd)
		in, err := loadInput(firstArg(args), disasmOpts)
		if err != nil {
			return err
		}
		defer in.Close()
		return runDisasm(cmd.OutOrStdout(), in, disasmOpts)
	},
}

func init() {
	addDecodeFlags(disasmCmd, &disasmOpts)
	rootCmd.AddCommand(disasmCmd)
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

// disassemble runs either the bounded scan or the one-shot listing.
func disassemble(in *input, o decodeOptions) (disasm.Stream, string, string, error) {
	d, err := newDecompiler(in.lang, o)
	if err != nil {
		return nil, "", "", err
	}
	lang := d.Language()
	syn, _ := lang.Property("syntax")

	if !o.Scan {
		data := in.data
		if o.Limit != 0 && uint64(len(data)) > o.Limit {
			data = data[:o.Limit]
		}
		s, err := d.DisassembleOnce(data, in.base, o.Count)
		return s, lang.Processor(), syn, err
	}
	if err := d.Reset(in.base, in.data); err != nil {
		return nil, "", "", err
	}
	s, _, err := d.Disassemble(in.base, o.Limit)
	if err != nil {
		return nil, "", "", err
	}
	if o.Count > 0 && len(s) > o.Count {
		s = s[:o.Count]
	}
	return s, lang.Processor(), syn, nil
}

func runDisasm(w io.Writer, in *input, o decodeOptions) error {
	s, processor, syn, err := disassemble(in, o)
	if err != nil {
		return err
	}
	listing := formatListing(in, s)
	if o.Color {
		if colored, err := colorize.Assembly(listing, processor, syn); err == nil {
			listing = colored
		}
	}
	_, err = io.WriteString(w, listing)
	return err
}

// formatListing prints one line per instruction with its bytes, preceded by
// a label wherever a function starts. A listing that begins inside a
// function is labelled with the offset into it.
func formatListing(in *input, s disasm.Stream) string {
	var b strings.Builder
	for k, inst := range s {
		addr := inst.Addr.Offset()
		if name, ok := in.syms.At(addr); ok {
			if b.Len() > 0 {
				b.WriteByte('\n')
			}
			fmt.Fprintf(&b, "%s:\n", name)
		} else if name, base, ok := in.syms.Lookup(addr); ok && k == 0 {
			fmt.Fprintf(&b, "%s+%#x:\n", name, addr-base)
		}
		fmt.Fprintf(&b, "%#x:  %-24s %s", addr, instBytes(in, inst), inst.Text())
		if inst.Overrun {
			b.WriteString("  ; truncated")
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func instBytes(in *input, inst disasm.Inst) string {
	start := inst.Addr.Offset() - in.base
	end := start + uint64(inst.Len)
	if start > uint64(len(in.data)) {
		return ""
	}
	if end > uint64(len(in.data)) {
		end = uint64(len(in.data))
	}
	raw := hex.EncodeToString(in.data[start:end])
	var b strings.Builder
	for i := 0; i < len(raw); i += 2 {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(raw[i : i+2])
	}
	return b.String()
}
