package search

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// WriteText renders a view as a plain-text table for terminals
func WriteText(w io.Writer, v View) error {
	if v.Error != "" {
		if _, err := fmt.Fprintf(w, "! %s\n", v.Error); err != nil {
			return err
		}
	}

	status := v.Pagination.Label
	if v.Pagination.PageCount > 0 {
		status = fmt.Sprintf("%s  (page %d/%d)", status, v.Page+1, v.Pagination.PageCount)
	}
	if v.Loading {
		status += "  loading..."
	}
	if _, err := fmt.Fprintf(w, "Keyword: %q  %s\n", v.Keyword, status); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(v.Columns, "\t"))
	for _, row := range v.Rows {
		cells := row.Cells()
		for i, c := range cells {
			cells[i] = strings.ReplaceAll(c, "\t", " ")
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}
