package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/obsidianstack/licenseaudit/internal/audit"
)

// RenderTable prints the top rows of sorted as a console table. top <= 0
// prints every row. A final row summarizes the licenses left out.
func RenderTable(w io.Writer, sorted []audit.LicenseCount, top int) error {
	var total uint64
	for _, c := range sorted {
		total += c.Count
	}

	shown := sorted
	if top > 0 && len(shown) > top {
		shown = shown[:top]
	}

	table := tablewriter.NewWriter(w)
	table.Header("License", "Packages", "Share")
	for _, c := range shown {
		if err := table.Append([]string{c.License, strconv.FormatUint(c.Count, 10), share(c.Count, total)}); err != nil {
			return fmt.Errorf("report: table row: %w", err)
		}
	}
	if rest := sorted[len(shown):]; len(rest) > 0 {
		var n uint64
		for _, c := range rest {
			n += c.Count
		}
		label := fmt.Sprintf("(%d more)", len(rest))
		if err := table.Append([]string{label, strconv.FormatUint(n, 10), share(n, total)}); err != nil {
			return fmt.Errorf("report: table row: %w", err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("report: render table: %w", err)
	}
	return nil
}

func share(n, total uint64) string {
	if total == 0 {
		return "0.0%"
	}
	return fmt.Sprintf("%.1f%%", float64(n)*100/float64(total))
}
