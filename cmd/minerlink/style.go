package main

import "github.com/charmbracelet/lipgloss"

var (
	Primary = lipgloss.Color("#7C3AED")
	Green   = lipgloss.Color("#10B981")
	Red     = lipgloss.Color("#EF4444")
	Yellow  = lipgloss.Color("#F59E0B")
	Dim     = lipgloss.Color("#6B7280")
	White   = lipgloss.Color("#F9FAFB")

	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(Primary).
		MarginBottom(1)

	Bold      = lipgloss.NewStyle().Bold(true).Foreground(White)
	Healthy   = lipgloss.NewStyle().Foreground(Green).Bold(true)
	Unhealthy = lipgloss.NewStyle().Foreground(Red).Bold(true)
	Warning   = lipgloss.NewStyle().Foreground(Yellow)
	DimText   = lipgloss.NewStyle().Foreground(Dim)
	ErrorText = lipgloss.NewStyle().Foreground(Red).Bold(true)

	DotHealthy   = Healthy.Render("●")
	DotUnhealthy = Unhealthy.Render("●")

	TableHeader = lipgloss.NewStyle().
		Bold(true).
		Foreground(Primary).
		PaddingRight(2)

	Key = lipgloss.NewStyle().Foreground(Dim).Width(14)
	Val = lipgloss.NewStyle().Foreground(White)
)

func statusDot(running bool) string {
	if running {
		return DotHealthy
	}
	return DotUnhealthy
}

func kv(k, v string) string {
	return Key.Render(k) + Val.Render(v)
}
