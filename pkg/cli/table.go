package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"
)

// table writes aligned columns to output.
type table struct {
	w *tabwriter.Writer
}

func newTable(headers ...string) *table {
	t := &table{w: tabwriter.NewWriter(output, 0, 0, 2, ' ', 0)}
	fmt.Fprintln(t.w, strings.Join(headers, "\t"))
	return t
}

func (t *table) row(cells ...interface{}) {
	parts := make([]string, len(cells))
	for i, c := range cells {
		parts[i] = fmt.Sprint(c)
	}
	fmt.Fprintln(t.w, strings.Join(parts, "\t"))
}

func (t *table) flush() {
	t.w.Flush()
}

func printPage(p PageMeta) {
	fmt.Fprintf(output, "\npage %d of %d (%d total)\n", p.Page, p.Pages, p.Total)
}
