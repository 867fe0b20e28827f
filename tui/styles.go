// Package tui provides the terminal monitor for polled tag values.
package tui

import (
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// Color scheme
var (
	ColorAccent    = tcell.ColorYellow
	ColorError     = tcell.ColorRed
	ColorConnected = tcell.ColorGreen
	ColorText      = tcell.ColorWhite
)

// Status indicator strings
const (
	StatusIndicatorConnected    = "[green]●[-]"
	StatusIndicatorDisconnected = "[gray]○[-]"
)

// Column headers of the tag table.
var tagColumns = []string{"Tag", "Type", "Status", "Value", "Last Poll"}

// maxValueWidth caps the value column; longer values are cut with an ellipsis.
const maxValueWidth = 48

// Help text
const HelpText = `
 Keyboard Shortcuts
 ──────────────────────────────────────

   Up/Down      Select tag
   Tab          Switch between tags and log
   c            Clear log
   ?            Show this help
   q / Esc      Quit
`

// UseASCIIBorders swaps tview's box-drawing borders for plain ASCII, for
// terminals without Unicode line characters. Call before NewApp.
func UseASCIIBorders() {
	b := &tview.Borders
	b.Horizontal, b.Vertical = '-', '|'
	b.TopLeft, b.TopRight, b.BottomLeft, b.BottomRight = '+', '+', '+', '+'
	b.LeftT, b.RightT, b.TopT, b.BottomT, b.Cross = '+', '+', '+', '+', '+'
	b.HorizontalFocus, b.VerticalFocus = '=', '|'
	b.TopLeftFocus, b.TopRightFocus, b.BottomLeftFocus, b.BottomRightFocus = '+', '+', '+', '+'
}
