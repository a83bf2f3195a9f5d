package main

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// column describes one table column. Numeric columns are right aligned.
type column struct {
	header  string
	numeric bool
}

func col(header string) column { return column{header: header} }
func num(header string) column { return column{header: header, numeric: true} }

// writeTable renders rows to out. Terminals get rounded borders; pipes and
// files get a borderless layout that is easier to grep.
func writeTable(out io.Writer, columns []column, rows [][]string) {
	if len(columns) == 0 {
		return
	}

	tw := table.NewWriter()
	if isTerminal(out) {
		tw.SetStyle(table.StyleRounded)
	} else {
		tw.SetStyle(table.StyleLight)
		tw.Style().Options = table.OptionsNoBordersAndSeparators
	}

	header := make(table.Row, len(columns))
	configs := make([]table.ColumnConfig, len(columns))
	for i, c := range columns {
		header[i] = c.header
		align := text.AlignLeft
		if c.numeric {
			align = text.AlignRight
		}
		configs[i] = table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft}
	}
	tw.AppendHeader(header)
	tw.SetColumnConfigs(configs)

	for _, row := range rows {
		r := make(table.Row, len(columns))
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			}
		}
		tw.AppendRow(r)
	}

	fmt.Fprintln(out, tw.Render())
}
