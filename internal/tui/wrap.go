package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// wrapToWidth soft-wraps prose to width. Result table rows are clipped with an
// ellipsis instead, so a row never spills its cells onto the next line.
func wrapToWidth(text string, width int) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	if width <= 0 {
		return text
	}

	var out []string
	for _, line := range strings.Split(text, "\n") {
		switch {
		case line == "":
			out = append(out, "")
		case isTableRow(line):
			out = append(out, clipLine(line, width))
		default:
			out = append(out, softWrap(line, width)...)
		}
	}
	return strings.Join(out, "\n")
}

// wrapWithPrefix wraps content beside prefix with a hanging indent.
func wrapWithPrefix(prefix, content string, width int) string {
	prefixWidth := lipgloss.Width(prefix)
	if width <= 0 || prefixWidth >= width {
		return wrapToWidth(prefix+content, width)
	}

	lines := strings.Split(wrapToWidth(content, width-prefixWidth), "\n")
	indent := strings.Repeat(" ", prefixWidth)
	for i := range lines {
		if i == 0 {
			lines[i] = prefix + lines[i]
		} else {
			lines[i] = indent + lines[i]
		}
	}
	return strings.Join(lines, "\n")
}

func isTableRow(line string) bool {
	trimmed := strings.TrimSpace(line)
	return strings.HasPrefix(trimmed, "|") && strings.HasSuffix(trimmed, "|")
}

func softWrap(line string, width int) []string {
	wrapped := lipgloss.NewStyle().Width(width).Render(line)
	parts := strings.Split(wrapped, "\n")
	for i, p := range parts {
		parts[i] = strings.TrimRight(p, " ")
	}
	return parts
}

func clipLine(line string, width int) string {
	if lipgloss.Width(line) <= width {
		return line
	}
	if width == 1 {
		return "…"
	}
	return lipgloss.NewStyle().MaxWidth(width-1).Render(line) + "…"
}
