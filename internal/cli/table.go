package cli

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/forPelevin/linerank/internal/types"
)

// column describes one table column. Numeric columns are right aligned.
type column struct {
	title   string
	numeric bool
}

var (
	lineColumns = []column{
		{title: "#", numeric: true},
		{title: "Start", numeric: true},
		{title: "Heat", numeric: true},
		{title: "Rank", numeric: true},
		{title: "Line"},
	}
	segmentColumns = []column{
		{title: "#", numeric: true},
		{title: "Start", numeric: true},
		{title: "End", numeric: true},
		{title: "Line"},
	}
	episodeColumns = []column{
		{title: "Episode"},
		{title: "Video"},
		{title: "Views", numeric: true},
		{title: "Lines", numeric: true},
		{title: "Heatmap", numeric: true},
		{title: "Updated"},
	}
)

const maxContentWidth = 60

// renderTable draws rows under cols. Every row must have len(cols) cells.
func renderTable(cols []column, rows []table.Row) string {
	if len(cols) == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, 0, len(cols))
	configs := make([]table.ColumnConfig, 0, len(cols))
	for i, c := range cols {
		header = append(header, c.title)
		align := text.AlignLeft
		if c.numeric {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.AppendHeader(header)
	tw.AppendRows(rows)
	tw.SetColumnConfigs(configs)
	return tw.Render()
}

// scoredRows renders scored lines for lineColumns.
func scoredRows(lines []types.ScoredLine) []table.Row {
	rows := make([]table.Row, 0, len(lines))
	for _, l := range lines {
		rows = append(rows, table.Row{l.Index, formatClock(l.Start), l.HeatValue, l.MostReplayedScore, oneLine(l.Content)})
	}
	return rows
}

// formatClock renders whole seconds as M:SS, or H:MM:SS past the hour.
func formatClock(sec int) string {
	if sec < 0 {
		sec = 0
	}
	h, m, s := sec/3600, (sec%3600)/60, sec%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// oneLine flattens multi-line caption content for a table cell.
func oneLine(s string) string {
	s = strings.Join(strings.Fields(strings.ReplaceAll(s, "\n", " / ")), " ")
	if r := []rune(s); len(r) > maxContentWidth {
		return string(r[:maxContentWidth-1]) + "…"
	}
	return s
}
