package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/bryan-buckman/newsreel/internal/model"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

const maxCellWidth = 60

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
			WidthMax:    maxCellWidth,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderRunRecord(w io.Writer, rec model.RunRecord) {
	id := rec.ID
	if id == "" {
		id = "-"
	}
	fmt.Fprintf(w, "Run:      %s\n", id)
	fmt.Fprintf(w, "Started:  %s\n", relTime(rec.StartedAt))
	fmt.Fprintf(w, "Finished: %s\n", relTime(rec.FinishedAt))

	if len(rec.Items) == 0 {
		fmt.Fprintln(w, "No videos published.")
	} else {
		rows := make([][]string, 0, len(rec.Items))
		for _, item := range rec.Items {
			rows = append(rows, []string{
				string(item.Channel),
				item.ArticleLink,
				item.VideoWatchURL,
				formatOrders(item.EngagementOrderIDs),
			})
		}
		fmt.Fprintln(w, renderTable([]string{"Channel", "Article", "Video", "Orders"}, rows, nil))
	}

	if len(rec.Failures) > 0 {
		rows := make([][]string, 0, len(rec.Failures))
		for _, f := range rec.Failures {
			rows = append(rows, []string{string(f.Channel), f.ArticleLink, f.Stage, f.Error})
		}
		fmt.Fprintln(w, renderTable([]string{"Channel", "Article", "Stage", "Error"}, rows, nil))
	}
}

// relTime formats t as a local timestamp plus a relative age.
func relTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "never"
	}
	return fmt.Sprintf("%s (%s)", t.Local().Format("2006-01-02 15:04"), humanize.Time(*t))
}

// formatOrders lists order ids in submission order.
func formatOrders(orders map[model.OrderType]string) string {
	var parts []string
	for _, t := range []model.OrderType{model.OrderViews, model.OrderLikes, model.OrderPinLikes, model.OrderComments} {
		if id, ok := orders[t]; ok && id != "" {
			parts = append(parts, fmt.Sprintf("%s=%s", t, id))
		}
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, " ")
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
