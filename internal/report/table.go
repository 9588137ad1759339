package report

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

// RenderTable renders a summary as a two-column Step/Value table.
func RenderTable(s Summary) string {
	rows := [][]string{
		{"run_id", s.RunID},
		{"alert_id", s.AlertID},
		{"status", s.Status},
		{"duration_seconds", strconv.FormatFloat(s.DurationSeconds, 'f', 2, 64)},
	}
	if s.Error != "" {
		rows = append(rows, []string{"error", s.Error})
	}
	if s.Steps.Alert != nil {
		rows = append(rows, []string{"alert", renderJSON(s.Steps.Alert)})
	}
	if s.Steps.Event != nil {
		rows = append(rows, []string{"event", renderJSON(s.Steps.Event)})
	}
	if s.Steps.Conversion != nil {
		rows = append(rows, []string{"conversion", renderJSON(s.Steps.Conversion)})
	}
	if s.Steps.CatalogItem != nil {
		rows = append(rows, []string{"stac_item", renderJSON(s.Steps.CatalogItem)})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("Step", "Value").
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})

	return fmt.Sprintf("%s\n%s", titleStyle.Render("Run Summary"), t.String())
}

func renderJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
