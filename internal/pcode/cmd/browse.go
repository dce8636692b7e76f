package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/v2/viewport"
	tea "github.com/charmbracelet/bubbletea/v2"
	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"pcode/internal/pcode/styles"
	"pcode/internal/ui/colorize"
)

var browseOpts decodeOptions

var browseCmd = &cobra.Command{
	Use:   "browse [file]",
	Short: "Page through the listing and pcode of a buffer",
	Long: `browse shows the assembly listing and the lifted pcode of a buffer in a
scrollable terminal view. Tab switches between the two panes. When stdout is
not a terminal both are printed one after the other.`,
	Example: `  pcode browse ./a.out --symbol main`,
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		browseOpts.resolve(cmd)
		in, err := loadInput(firstArg(args), browseOpts)
		if err != nil {
			return err
		}
		defer in.Close()
		listing, ops, err := browseContent(in, browseOpts)
		if err != nil {
			return err
		}
		if !term.IsTerminal(os.Stdout.Fd()) {
			_, err := io.WriteString(cmd.OutOrStdout(), listing+"\n"+ops)
			return err
		}
		title := in.name
		if title == "" {
			title = in.lang
		}
		program := tea.NewProgram(
			newBrowseModel(title, listing, ops),
			tea.WithAltScreen(),
			tea.WithContext(cmd.Context()),
		)
		if _, err := program.Run(); err != nil {
			slog.Error("browse", "error", err)
			return fmt.Errorf("browse: %w", err)
		}
		return nil
	},
}

func init() {
	addDecodeFlags(browseCmd, &browseOpts)
	rootCmd.AddCommand(browseCmd)
}

// browseContent renders the two panes of the browser.
func browseContent(in *input, o decodeOptions) (string, string, error) {
	s, processor, syn, err := disassemble(in, o)
	if err != nil {
		return "", "", err
	}
	listing := formatListing(in, s)
	if o.Color {
		if colored, err := colorize.Assembly(listing, processor, syn); err == nil {
			listing = colored
		}
	}
	var ops strings.Builder
	if err := runPcode(&ops, in, o); err != nil {
		return "", "", err
	}
	return listing, ops.String(), nil
}

const (
	paneListing = iota
	panePcode
)

type browseModel struct {
	title    string
	panes    [2]string
	pane     int
	width    int
	viewport viewport.Model
}

func newBrowseModel(title, listing, ops string) browseModel {
	vp := viewport.New()
	vp.SetWidth(80)
	vp.SetHeight(22)
	m := browseModel{
		title:    title,
		panes:    [2]string{listing, ops},
		width:    80,
		viewport: vp,
	}
	m.viewport.SetContent(strings.TrimSuffix(listing, "\n"))
	return m
}

func (m browseModel) Init() tea.Cmd {
	return nil
}

func (m browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.viewport.SetWidth(msg.Width)
		m.viewport.SetHeight(msg.Height - 2)
		return m, nil
	case tea.KeyMsg:
		if next, cmd, ok := m.handleKey(msg.String()); ok {
			return next, cmd
		}
	}
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// handleKey applies the browser's own bindings. Keys it does not bind are
// left to the viewport.
func (m browseModel) handleKey(key string) (browseModel, tea.Cmd, bool) {
	switch key {
	case "q", "ctrl+c":
		return m, tea.Quit, true
	case "tab":
		return m.show(1 - m.pane), nil, true
	case "l":
		return m.show(paneListing), nil, true
	case "p":
		return m.show(panePcode), nil, true
	}
	return m, nil, false
}

func (m browseModel) show(pane int) browseModel {
	m.pane = pane
	m.viewport.SetContent(strings.TrimSuffix(m.panes[pane], "\n"))
	m.viewport.GotoTop()
	return m
}

func (m browseModel) View() string {
	name := "listing"
	if m.pane == panePcode {
		name = "pcode"
	}
	header := styles.Opcode.Render(fmt.Sprintf(" %s · %s ", m.title, name))
	menu := styles.Menu.Width(m.width).Render(" L: listing • P: pcode • Tab: switch • Q: quit ")
	return header + "\n" + m.viewport.View() + "\n" + menu
}
