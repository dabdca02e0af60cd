package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"scoreframe/internal/deps"
	"scoreframe/internal/journal"
)

func newTableWriter() table.Writer {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	return tw
}

// jobsTable renders the journal listing shown by `jobs`. Failed requests show
// their error code in the output column.
func jobsTable(entries []*journal.Entry) string {
	tw := newTableWriter()
	tw.AppendHeader(table.Row{"Request", "File", "Status", "Output", "Frames", "Updated"})
	for _, entry := range entries {
		detail := entry.OutputName
		if entry.Failed() {
			detail = entry.ErrorCode
		}
		frames := ""
		if entry.FrameCount > 0 {
			frames = strconv.Itoa(entry.FrameCount)
		}
		tw.AppendRow(table.Row{
			shortID(entry.RequestID),
			entry.Filename,
			entry.Status,
			detail,
			frames,
			entry.UpdatedAt.Local().Format(time.DateTime),
		})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 5, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}

// jobDetailTable renders one journal entry as field/value rows for `jobs show`.
func jobDetailTable(entry *journal.Entry) string {
	tw := newTableWriter()
	tw.AppendHeader(table.Row{"Field", "Value"})
	tw.AppendRow(table.Row{"Request", entry.RequestID})
	tw.AppendRow(table.Row{"File", entry.Filename})
	tw.AppendRow(table.Row{"Status", entry.Status})
	tw.AppendRow(table.Row{"Created", entry.CreatedAt.Local().Format(time.DateTime)})
	tw.AppendRow(table.Row{"Updated", entry.UpdatedAt.Local().Format(time.DateTime)})
	if entry.Failed() {
		tw.AppendRow(table.Row{"Error code", entry.ErrorCode})
		tw.AppendRow(table.Row{"Error", entry.ErrorMessage})
	} else if entry.OutputName != "" {
		tw.AppendRow(table.Row{"Output", entry.OutputName})
		tw.AppendRow(table.Row{"Frames", strconv.Itoa(entry.FrameCount)})
		tw.AppendRow(table.Row{"Duration", fmt.Sprintf("%.2fs", entry.DurationSeconds)})
	}
	return tw.Render()
}

// depsTable renders the external binary report shown by `status`.
func depsTable(statuses []deps.Status) string {
	tw := newTableWriter()
	tw.AppendHeader(table.Row{"Dependency", "Command", "Available", "Optional", "Detail"})
	for _, status := range statuses {
		tw.AppendRow(table.Row{
			status.Name,
			status.Command,
			yesNo(status.Available),
			yesNo(status.Optional),
			status.Detail,
		})
	}
	return tw.Render()
}
