package artifacts

import (
	"fmt"
	"sort"
	"strings"
)

// Tables render as tab-delimited rows with a header line; the export step
// turns them into spreadsheet sheets.

func documentInventoryTable(data ProjectData) (string, error) {
	rows := [][]string{{"Filename", "Type", "Status", "Pages", "Size (bytes)"}}

	sorted := make([]int, len(data.Documents))
	for i := range sorted {
		sorted[i] = i
	}
	sort.Slice(sorted, func(a, b int) bool {
		return data.Documents[sorted[a]].Filename < data.Documents[sorted[b]].Filename
	})

	for _, i := range sorted {
		doc := data.Documents[i]
		rows = append(rows, []string{
			doc.Filename,
			doc.MimeType,
			string(doc.Status),
			fmt.Sprintf("%d", doc.PageCount),
			fmt.Sprintf("%d", doc.SizeBytes),
		})
	}
	return renderRows(rows), nil
}

func methodologyPlanTable(data ProjectData) (string, error) {
	rows := [][]string{{"Phase", "Methodology", "Focus"}}
	methodologies := data.Project.Methodologies
	if len(methodologies) == 0 {
		methodologies = []string{"Assessment", "Analysis", "Recommendations"}
	}
	for i, m := range methodologies {
		rows = append(rows, []string{
			fmt.Sprintf("Phase %d", i+1),
			m,
			fmt.Sprintf("Apply %s to the %s engagement", m, data.Project.Client),
		})
	}
	return renderRows(rows), nil
}

func citationSummaryTable(data ProjectData) (string, error) {
	rows := [][]string{{"Section", "Document", "Locator", "Confidence"}}

	sorted := make([]int, len(data.Citations))
	for i := range sorted {
		sorted[i] = i
	}
	sort.Slice(sorted, func(a, b int) bool {
		ca, cb := data.Citations[sorted[a]], data.Citations[sorted[b]]
		if ca.Section != cb.Section {
			return ca.Section < cb.Section
		}
		return ca.Locator < cb.Locator
	})

	for _, i := range sorted {
		c := data.Citations[i]
		rows = append(rows, []string{
			c.Section,
			c.DocumentID,
			c.Locator,
			fmt.Sprintf("%.2f", c.Confidence),
		})
	}
	return renderRows(rows), nil
}

func renderRows(rows [][]string) string {
	var sb strings.Builder
	for _, row := range rows {
		sb.WriteString(strings.Join(row, "\t"))
		sb.WriteString("\n")
	}
	return sb.String()
}
