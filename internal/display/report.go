package display

import (
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/backmassage/vidoptimizer/internal/term"
)

// ResultRow is one line of the batch report.
type ResultRow struct {
	File        string
	Output      string
	InputCodec  string
	OutputCodec string
	Status      string
	Elapsed     time.Duration
	InputBytes  int64
	OutputBytes int64
	Err         string
}

// PlanRow is one line of the dry-run plan.
type PlanRow struct {
	File      string
	Output    string
	Geometry  string
	Codec     string
	VideoKbps int64
	Band      string
	Encoder   string
	Command   string
	Notice    string
	Skip      bool
	Err       string
	Flag      string // "", "outlier" or "extreme"
}

// RenderResults renders the per-file stream mapping report.
func RenderResults(rows []ResultRow) string {
	if len(rows) == 0 {
		return ""
	}
	tw := newTable()
	tw.SetTitle("Stream Mapping Info")
	tw.AppendHeader(table.Row{"File", "Mapping", "Status", "Time", "Size", "Details"})

	for _, r := range rows {
		size := "-"
		if r.OutputBytes > 0 {
			size = fmt.Sprintf("%s -> %s", FormatBytes(r.InputBytes), FormatBytes(r.OutputBytes))
		} else if r.InputBytes > 0 {
			size = FormatBytes(r.InputBytes)
		}
		tw.AppendRow(table.Row{
			r.File,
			mappingLabel(r.InputCodec, r.OutputCodec),
			statusLabel(r.Status),
			FormatElapsed(r.Elapsed),
			size,
			truncate(r.Err, 60),
		})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
	})
	return tw.Render()
}

// RenderPlan renders the dry-run plan. Commands are listed only when
// verbose is set; they are long.
func RenderPlan(rows []PlanRow, verbose bool) string {
	if len(rows) == 0 {
		return ""
	}
	tw := newTable()
	tw.SetTitle("Encode Plan")
	header := table.Row{"File", "Geometry", "Source", "Bitrate", "Band", "Encoder", "Action"}
	if verbose {
		header = append(header, "Command")
	}
	tw.AppendHeader(header)

	for _, r := range rows {
		action := "encode"
		switch {
		case r.Err != "":
			action = term.Paint(term.Red, "probe failed")
		case r.Skip:
			action = term.Paint(term.Yellow, "skip (exists)")
		case r.Notice != "":
			action = "encode (" + r.Notice + ")"
		}
		row := table.Row{
			r.File,
			orDash(r.Geometry),
			orDash(r.Codec),
			FormatBitrateLabel(r.VideoKbps) + flagMark(r.Flag),
			orDash(r.Band),
			orDash(r.Encoder),
			action,
		}
		if verbose {
			row = append(row, r.Command)
		}
		tw.AppendRow(row)
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight},
	})
	return tw.Render()
}

func newTable() table.Writer {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.Style().Title.Align = text.AlignCenter
	return tw
}

func mappingLabel(in, out string) string {
	if in == "" && out == "" {
		return "unknown"
	}
	return orDash(in) + " -> " + orDash(out)
}

func statusLabel(s string) string {
	switch s {
	case "succeeded":
		return term.Paint(term.Green, s)
	case "failed":
		return term.Paint(term.Red, s)
	case "skipped":
		return term.Paint(term.Yellow, s)
	}
	return s
}

func flagMark(flag string) string {
	switch flag {
	case "extreme":
		return " " + term.Paint(term.Red, "[!]")
	case "outlier":
		return " " + term.Paint(term.Yellow, "[*]")
	}
	return ""
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-1]) + "…"
}
