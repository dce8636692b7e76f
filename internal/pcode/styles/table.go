// Package styles holds the terminal styles of the pcode CLI.
package styles

import (
	"github.com/charmbracelet/lipgloss/v2"
)

var (
	Register = lipgloss.NewStyle().Foreground(lipgloss.Color("170"))
	Varnode  = lipgloss.NewStyle().Foreground(lipgloss.Color("#7C9C9D"))
	Opcode   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD700")).Bold(true)
	Address  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	Warning  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87"))

	Menu = lipgloss.NewStyle().
		Background(lipgloss.Color("235")).
		Foreground(lipgloss.Color("252")).
		Padding(0, 1)
)
