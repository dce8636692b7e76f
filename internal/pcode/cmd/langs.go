package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"pcode/internal/langs"
	"pcode/internal/pcode/styles"
	"pcode/internal/sleigh"
)

var langsCmd = &cobra.Command{
	Use:   "langs",
	Short: "List the built-in languages",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLangs(cmd.OutOrStdout())
	},
}

var describeCmd = &cobra.Command{
	Use:     "describe <language>",
	Short:   "Describe a language's spaces, properties and context",
	Example: `  pcode langs describe x86-64`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDescribe(cmd.OutOrStdout(), args[0], useColor())
	},
}

func init() {
	langsCmd.AddCommand(describeCmd)
	rootCmd.AddCommand(langsCmd)
}

func runLangs(w io.Writer) error {
	for _, name := range langs.Names() {
		l, err := langs.Language(name)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if _, err := fmt.Fprintf(w, "%-8s %-22s %s\n", name, l.ID(), strings.Join(strings.Fields(l.Description()), " ")); err != nil {
			return err
		}
	}
	return nil
}

func runDescribe(w io.Writer, name string, color bool) error {
	l, err := langs.Language(name)
	if err != nil {
		return err
	}
	md := describe(l)
	if color {
		r, err := styles.MarkdownRenderer(100)
		if err != nil {
			return err
		}
		if md, err = r.Render(md); err != nil {
			return err
		}
	}
	_, err = io.WriteString(w, md)
	return err
}

// describe renders a language as markdown.
func describe(l *sleigh.Language) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", l.ID())
	if d := l.Description(); d != "" {
		fmt.Fprintf(&b, "%s\n\n", d)
	}
	endian := "little"
	if l.IsBigEndian() {
		endian = "big"
	}
	fmt.Fprintf(&b, "- processor: `%s`\n- endian: %s\n- size: %d\n- max instruction length: %d\n- registers: %d\n\n",
		l.Processor(), endian, l.Size(), l.MaxInstructionLength(), len(l.Registers()))

	b.WriteString("## Spaces\n\n| name | type | address size | word size |\n|---|---|---|---|\n")
	for _, sp := range l.Spaces() {
		name := sp.Name()
		if sp == l.DefaultCodeSpace() {
			name += " (default)"
		}
		fmt.Fprintf(&b, "| %s | %s | %d | %d |\n", name, sp.Type(), sp.AddrSize(), sp.WordSize())
	}

	if props := l.Properties(); len(props) > 0 {
		b.WriteString("\n## Properties\n\n")
		for _, key := range props {
			v, _ := l.Property(key)
			fmt.Fprintf(&b, "- `%s` = `%s`\n", key, v)
		}
	}
	if vars := l.ContextVariables(); len(vars) > 0 {
		b.WriteString("\n## Context\n\n")
		for _, v := range vars {
			fmt.Fprintf(&b, "- `%s` (default %d)\n", v.Name, v.Default)
		}
	}
	return b.String()
}
