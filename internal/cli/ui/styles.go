package ui

import "github.com/charmbracelet/lipgloss"

// Styles defines the lipgloss styles used for tabular CLI output.
var Styles = struct {
	Header lipgloss.Style
	Cell   lipgloss.Style
	Index  lipgloss.Style
	Border lipgloss.Style
}{
	Header: lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true).Padding(0, 1),
	Cell:   lipgloss.NewStyle().Padding(0, 1),
	Index:  lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Padding(0, 1).Align(lipgloss.Right),
	Border: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
}
