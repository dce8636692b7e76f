package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"pcode/internal/disasm"
	"pcode/internal/pcode/styles"
)

var pcodeOpts decodeOptions

var pcodeCmd = &cobra.Command{
	Use:     "pcode [file]",
	Short:   "Lift a buffer to pcode operations",
	Example: `  pcode pcode --lang x86-64 --hex "55 c3"`,
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pcodeOpts.resolve(cmd)
		in, err := loadInput(firstArg(args), pcodeOpts)
		if err != nil {
			return err
		}
		defer in.Close()
		return runPcode(cmd.OutOrStdout(), in, pcodeOpts)
	},
}

func init() {
	addDecodeFlags(pcodeCmd, &pcodeOpts)
	rootCmd.AddCommand(pcodeCmd)
}

// runPcode prints each instruction followed by its operations. --count
// bounds the number of instructions shown.
func runPcode(w io.Writer, in *input, o decodeOptions) error {
	d, err := newDecompiler(in.lang, o)
	if err != nil {
		return err
	}
	if err := d.Reset(in.base, in.data); err != nil {
		return err
	}
	insts, _, err := d.Disassemble(in.base, o.Limit)
	if err != nil {
		return err
	}
	ops, lifted, err := d.Translate(in.base, o.Limit)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, formatOps(in, insts, ops, lifted, o))
	return err
}

// formatOps prints the instructions inside the lifted prefix, each followed
// by its operations. Instructions that lift to nothing keep their header. A
// note marks where lifting stopped short of the decoded listing.
func formatOps(in *input, insts disasm.Stream, ops disasm.Ops, lifted uint64, o decodeOptions) string {
	byAddr := make(map[uint64][]disasm.Op)
	for _, group := range ops.ByAddress() {
		byAddr[group[0].Addr.Offset()] = group
	}
	var b strings.Builder
	for n, inst := range insts {
		addr := inst.Addr.Offset()
		if o.Count > 0 && n >= o.Count {
			return b.String()
		}
		if addr-in.base >= lifted {
			break
		}
		if name, ok := in.syms.At(addr); ok {
			fmt.Fprintf(&b, "%s:\n", name)
		}
		head := fmt.Sprintf("%#x: %s", addr, inst.Text())
		if o.Color {
			head = styles.Address.Render(head)
		}
		b.WriteString(head)
		b.WriteByte('\n')
		for _, op := range byAddr[addr] {
			b.WriteString("    ")
			b.WriteString(formatOp(op, o.Color))
			b.WriteByte('\n')
		}
	}
	if lifted < insts.Bytes() {
		note := fmt.Sprintf("; not lifted from %#x", in.base+lifted)
		if o.Color {
			note = styles.Warning.Render(note)
		}
		b.WriteString(note)
		b.WriteByte('\n')
	}
	return b.String()
}

func formatOp(op disasm.Op, color bool) string {
	if !color {
		return op.String()
	}
	var b strings.Builder
	if op.Output != nil {
		b.WriteString(styles.Varnode.Render(op.Output.String()))
		b.WriteString(" = ")
	}
	b.WriteString(styles.Opcode.Render(op.Opcode.String()))
	for k, in := range op.Inputs {
		if k == 0 {
			b.WriteByte(' ')
		} else {
			b.WriteString(", ")
		}
		b.WriteString(styles.Varnode.Render(in.String()))
	}
	return b.String()
}
