package output

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/term"

	"github.com/tanq16/splitdl/internal/utils"
)

// FormatSpeed formats an average transfer rate
func FormatSpeed(bytes int64, elapsed float64) string {
	if elapsed <= 0 || bytes <= 0 {
		return "0 B/s"
	}
	return utils.FormatBytes(uint64(float64(bytes)/elapsed)) + "/s"
}

// PrintProgressBar renders a bar for current of total. An unknown total
// (0) renders an empty bar without a percentage.
func PrintProgressBar(current, total int64, width int) string {
	if width <= 0 {
		width = 30
	}
	if current < 0 {
		current = 0
	}
	if total <= 0 {
		bar := StyleSymbols["bullet"] + strings.Repeat(StyleSymbols["dot"], width) + StyleSymbols["bullet"]
		return debugStyle.Render(fmt.Sprintf("%s ?%% %s ", bar, StyleSymbols["bullet"]))
	}
	current = min(current, total)
	percent := float64(current) / float64(total)
	filled := max(0, min(int(percent*float64(width)), width))
	bar := StyleSymbols["bullet"]
	bar += strings.Repeat(StyleSymbols["hline"], filled)
	if filled < width {
		bar += strings.Repeat(" ", width-filled)
	}
	bar += StyleSymbols["bullet"]
	return debugStyle.Render(fmt.Sprintf("%s %.1f%% %s ", bar, percent*100, StyleSymbols["bullet"]))
}

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func getTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return 80 // Default fallback width
	}
	return width
}

func getTerminalHeight() int {
	_, height, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || height <= 0 {
		return 24 // Default fallback height
	}
	return height
}

func wrapText(text string, indent int) []string {
	maxWidth := getTerminalWidth() - indent - 2
	if maxWidth <= 10 {
		maxWidth = 80
	}
	if utf8.RuneCountInString(text) <= maxWidth {
		return []string{text}
	}
	var lines []string
	var current strings.Builder
	width := 0
	for _, r := range text {
		if width+1 > maxWidth {
			lines = append(lines, current.String())
			current.Reset()
			width = 0
		}
		current.WriteRune(r)
		width++
	}
	if current.Len() > 0 {
		lines = append(lines, current.String())
	}
	return lines
}
