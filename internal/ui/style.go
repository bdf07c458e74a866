package ui

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

// Sprint color functions for building styled strings.
var (
	Bold        = color.New(color.Bold).SprintFunc()
	Dim         = color.New(color.Faint).SprintFunc()
	Cyan        = color.New(color.FgCyan).SprintFunc()
	Green       = color.New(color.FgGreen).SprintFunc()
	Red         = color.New(color.FgRed).SprintFunc()
	Yellow      = color.New(color.FgYellow).SprintFunc()
	Magenta     = color.New(color.FgMagenta).SprintFunc()
	BoldCyan    = color.New(color.Bold, color.FgCyan).SprintFunc()
	BoldGreen   = color.New(color.Bold, color.FgGreen).SprintFunc()
	BoldRed     = color.New(color.Bold, color.FgRed).SprintFunc()
	BoldYellow  = color.New(color.Bold, color.FgYellow).SprintFunc()
	BoldMagenta = color.New(color.Bold, color.FgMagenta).SprintFunc()
	BoldWhite   = color.New(color.Bold, color.FgWhite).SprintFunc()
)

// DisableColor turns off styling globally, e.g. for --no-color or tests.
func DisableColor() {
	SetColorDisabled(true)
}

// SetColorDisabled switches styling off or back on.
func SetColorDisabled(disabled bool) {
	color.NoColor = disabled
}

// ColorDisabled reports whether styling is currently off.
func ColorDisabled() bool {
	return color.NoColor
}

// PrintBanner renders the taskflow banner.
func PrintBanner(w io.Writer) {
	frame := color.New(color.FgCyan)
	nodes := color.New(color.FgYellow)
	brand := color.New(color.Bold, color.FgMagenta)

	fmt.Fprintln(w)
	frame.Fprintln(w, "   +---------------------------+")
	nodes.Fprintln(w, "   |  [a]--->[b]--->[c]--->[d] |")
	brand.Fprintln(w, "   |   T A S K F L O W         |")
	frame.Fprintln(w, "   +---------------------------+")
	fmt.Fprintln(w)
}

// taskColors is a palette of distinct bold colors for differentiating tasks.
var taskColors = []func(a ...interface{}) string{
	BoldMagenta,
	BoldCyan,
	BoldYellow,
	BoldGreen,
	color.New(color.Bold, color.FgHiBlue).SprintFunc(),
	color.New(color.Bold, color.FgHiRed).SprintFunc(),
}

// taskColorIndex hashes a task ID to a palette index.
func taskColorIndex(taskID string) int {
	var h uint32
	for _, c := range taskID {
		h = h*31 + uint32(c)
	}
	return int(h % uint32(len(taskColors)))
}

// TaskPrefix returns a colored [task-id] prefix string.
// Each task ID gets a distinct color from the palette.
func TaskPrefix(taskID string) string {
	c := taskColors[taskColorIndex(taskID)]
	return Dim("[") + c(taskID) + Dim("]")
}

// ResultIcon returns a colored icon for a validation outcome.
func ResultIcon(valid bool, warnings int) string {
	switch {
	case !valid:
		return Red("✗")
	case warnings > 0:
		return Yellow("!")
	default:
		return Green("✓")
	}
}

// SlackLabel renders slack in days, highlighting critical and late tasks.
func SlackLabel(slack int) string {
	switch {
	case slack < 0:
		return BoldRed(fmt.Sprintf("%dd late", -slack))
	case slack == 0:
		return BoldYellow("⚡ critical")
	default:
		return Dim(fmt.Sprintf("%dd slack", slack))
	}
}
