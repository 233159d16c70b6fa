package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/mrz1836/paytoken/internal/domain"
)

// styles holds the lipgloss styles for text output.
type styles struct {
	header  lipgloss.Style
	label   lipgloss.Style
	value   lipgloss.Style
	success lipgloss.Style
	pending lipgloss.Style
	failed  lipgloss.Style
	dim     lipgloss.Style
}

func newStyles() *styles {
	return &styles{
		header: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00D7FF")),
		label: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00D7FF")),
		value: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")),
		success: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00FF87")),
		pending: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFD700")),
		failed: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5F5F")),
		dim: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666")),
	}
}

// status renders a claim status in its color.
func (s *styles) status(st domain.ClaimStatus) string {
	switch st {
	case domain.ClaimSuccess:
		return s.success.Render(st.String())
	case domain.ClaimFailed:
		return s.failed.Render(st.String())
	default:
		return s.pending.Render(st.String())
	}
}

// field writes one "label: value" line.
func (s *styles) field(w io.Writer, label string, value any) {
	_, _ = fmt.Fprintf(w, "%s %s\n", s.label.Render(label+":"), s.value.Render(fmt.Sprint(value)))
}

// encodeJSONIndented writes v as two-space indented JSON.
func encodeJSONIndented(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// formatMillis renders a unix-millisecond timestamp, or "-" for zero.
func formatMillis(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return time.UnixMilli(ms).Local().Format(time.DateTime)
}

// orDash returns s, or "-" when s is empty.
func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
