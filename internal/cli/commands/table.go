package commands

import (
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/payinsight/internal/cli/output"
)

// renderTable writes rows as a box table in text mode and a markdown table
// otherwise.
func renderTable(r *output.Renderer, header table.Row, rows []table.Row) {
	tw := table.NewWriter()
	tw.AppendHeader(header)
	tw.AppendRows(rows)

	if r.EffectiveMode() != output.ModeText {
		r.Println(tw.RenderMarkdown())
		r.Println("")
		return
	}
	tw.SetStyle(table.StyleLight)
	for _, line := range strings.Split(tw.Render(), "\n") {
		r.Println("  " + line)
	}
}
