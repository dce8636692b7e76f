package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"pcode/internal/pcode/styles"
)

var regsCmd = &cobra.Command{
	Use:     "regs",
	Short:   "List the registers of a language",
	Example: `  pcode regs --lang aarch64`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		o := decodeOptions{Lang: language(cmd), Syntax: assemblySyntax(cmd), Props: cfg.Properties}
		return runRegs(cmd.OutOrStdout(), o, useColor())
	},
}

func init() {
	rootCmd.AddCommand(regsCmd)
}

// runRegs prints one row per storage location, ordered by varnode.
func runRegs(w io.Writer, o decodeOptions, color bool) error {
	d, err := newDecompiler(o.Lang, o)
	if err != nil {
		return err
	}
	regs := d.Registers()
	width := 0
	for _, r := range regs {
		width = max(width, len(r.Name()))
	}
	for _, r := range regs {
		name, vn := r.Name(), r.Varnode().String()
		if color {
			name = styles.Register.Width(width + 2).Render(name)
			vn = styles.Varnode.Render(vn)
			_, err = fmt.Fprintf(w, "%s%s\n", name, vn)
		} else {
			_, err = fmt.Fprintf(w, "%-*s  %s\n", width, name, vn)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
