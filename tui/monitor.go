package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"

	"taglink/status"
	"taglink/tagman"
)

// tagRow is one rendered line of the tag table.
type tagRow struct {
	Name     string
	Type     string
	Status   string
	Color    tcell.Color
	Value    string
	LastPoll string
}

func (r tagRow) cells() []string {
	return []string{r.Name, r.Type, r.Status, r.Value, r.LastPoll}
}

// buildRows renders the tags in the order given.
func buildRows(tags []*tagman.ManagedTag) []tagRow {
	rows := make([]tagRow, 0, len(tags))
	for _, mt := range tags {
		st := mt.GetStatus()
		row := tagRow{
			Name:     mt.Config.Name,
			Type:     mt.Config.Type.String(),
			Status:   statusText(st),
			Color:    statusColor(st),
			Value:    "-",
			LastPoll: formatPoll(mt.GetLastPoll()),
		}
		if v := mt.GetValue(); v != nil {
			row.Value = formatValue(v.Value)
		} else if err := mt.GetError(); err != nil {
			row.Value = truncate("<"+err.Error()+">", maxValueWidth)
		}
		rows = append(rows, row)
	}
	return rows
}

// statusText shortens an engine status name for display.
func statusText(st status.Status) string {
	name := st.String()
	name = strings.TrimPrefix(name, "PLCTAG_STATUS_")
	name = strings.TrimPrefix(name, "PLCTAG_")
	return name
}

func statusColor(st status.Status) tcell.Color {
	switch st.Class() {
	case status.ClassNone:
		return ColorConnected
	case status.ClassPending:
		return ColorAccent
	default:
		return ColorError
	}
}

// statusIndicator returns the colored dot for a service state.
func statusIndicator(running bool) string {
	if running {
		return StatusIndicatorConnected
	}
	return StatusIndicatorDisconnected
}

func formatValue(v interface{}) string {
	var s string
	switch x := v.(type) {
	case string:
		s = fmt.Sprintf("%q", x)
	case []interface{}:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = fmt.Sprintf("%v", e)
		}
		s = "[" + strings.Join(parts, " ") + "]"
	default:
		s = fmt.Sprintf("%v", x)
	}
	return truncate(s, maxValueWidth)
}

func formatPoll(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("15:04:05.000")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
