package cmd

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	// processor engines
	_ "pcode/internal/arch/arm64"
	_ "pcode/internal/arch/x86"

	"pcode/internal/config"
	"pcode/internal/pcode/log"
	"pcode/internal/ui/colorize"
)

var (
	cfgPath string
	debug   bool
	noColor bool
	langArg string
	syntax  string

	cfg = config.Default()
)

var rootCmd = &cobra.Command{
	Use:   "pcode",
	Short: "Disassemble machine code and lift it to pcode",
	Long: `pcode decodes raw bytes or ELF code sections with a built-in processor
language and prints either the assembly listing or the pcode operations each
instruction performs.`,
	SilenceUsage:      true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		cfg = c
		log.Setup(cfg.LogLevel, debug)
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgPath, "config", "", "configuration file")
	pf.BoolVarP(&debug, "debug", "d", false, "enable debug logging")
	pf.BoolVar(&noColor, "no-color", false, "disable coloured output")
	pf.StringVarP(&langArg, "lang", "l", "", "language name or language document path")
	pf.StringVar(&syntax, "syntax", "", "assembly syntax (intel or gnu)")
}

// language returns the --lang flag or the configured default.
func language(cmd *cobra.Command) string {
	if cmd.Flags().Changed("lang") {
		return langArg
	}
	return cfg.Language
}

func assemblySyntax(cmd *cobra.Command) string {
	if cmd.Flags().Changed("syntax") {
		return syntax
	}
	return cfg.Syntax
}

// useColor reports whether output to stdout should be styled.
func useColor() bool {
	return !noColor && !cfg.NoColor && colorize.Enabled() && term.IsTerminal(os.Stdout.Fd())
}

func Execute() {
	// fang renders help and errors for terminals only
	if !term.IsTerminal(os.Stdout.Fd()) {
		if err := rootCmd.Execute(); err != nil {
			os.Exit(1)
		}
		return
	}
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		os.Exit(1)
	}
}
