// Package export writes a finished report to the export directory: a
// markdown file carrying the body, diagrams and citation appendix, plus an
// xlsx workbook with one sheet per data table.
package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/avpetrov/reportgen/internal/core/domain"
)

type Exporter struct {
	basePath string
}

func New(basePath string) (*Exporter, error) {
	if basePath == "" {
		basePath = "./data/exports"
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}
	return &Exporter{basePath: basePath}, nil
}

// Export renders the markdown file and the table workbook, named after the
// project id so a re-export overwrites the previous files in place. The
// returned path is the markdown file.
func (e *Exporter) Export(ctx context.Context, project *domain.Project, report *domain.Report, artifacts []domain.Artifact) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	markdownPath := filepath.Join(e.basePath, project.ID+".md")
	if err := os.WriteFile(markdownPath, []byte(renderMarkdown(report, artifacts)), 0o644); err != nil {
		return "", fmt.Errorf("write markdown export: %w", err)
	}

	tables := tablesOf(artifacts)
	if len(tables) > 0 {
		workbookPath := filepath.Join(e.basePath, project.ID+".xlsx")
		if err := writeWorkbook(workbookPath, tables); err != nil {
			return "", fmt.Errorf("write table workbook: %w", err)
		}
	}
	return markdownPath, nil
}

func renderMarkdown(report *domain.Report, artifacts []domain.Artifact) string {
	var sb strings.Builder
	sb.WriteString(report.Body)

	diagrams := make([]domain.Artifact, 0, len(artifacts))
	for _, a := range artifacts {
		if a.Family == domain.ArtifactDiagram {
			diagrams = append(diagrams, a)
		}
	}
	if len(diagrams) > 0 {
		sb.WriteString("\n## Diagrams\n")
		for _, d := range diagrams {
			sb.WriteString(fmt.Sprintf("\n### %s\n\n```mermaid\n%s\n```\n", d.Title, strings.TrimSpace(d.Body)))
		}
	}

	tables := tablesOf(artifacts)
	if len(tables) > 0 {
		sb.WriteString("\n## Data Tables\n")
		for _, t := range tables {
			sb.WriteString(fmt.Sprintf("\n### %s\n\n%s\n", t.Title, tsvToMarkdown(t.Body)))
		}
	}
	return sb.String()
}

func tablesOf(artifacts []domain.Artifact) []domain.Artifact {
	var tables []domain.Artifact
	for _, a := range artifacts {
		if a.Family == domain.ArtifactTable {
			tables = append(tables, a)
		}
	}
	return tables
}

// tsvToMarkdown renders TSV rows as a markdown table, first row as header.
func tsvToMarkdown(tsv string) string {
	lines := strings.Split(strings.TrimSpace(tsv), "\n")
	if len(lines) == 0 || lines[0] == "" {
		return ""
	}

	var sb strings.Builder
	for i, line := range lines {
		cells := strings.Split(line, "\t")
		sb.WriteString("| " + strings.Join(cells, " | ") + " |\n")
		if i == 0 {
			sb.WriteString("|" + strings.Repeat(" --- |", len(cells)) + "\n")
		}
	}
	return sb.String()
}

func writeWorkbook(path string, tables []domain.Artifact) error {
	workbook := excelize.NewFile()
	defer workbook.Close()

	for i, table := range tables {
		sheet := sheetName(table.Title, i)
		if i == 0 {
			if err := workbook.SetSheetName(workbook.GetSheetName(0), sheet); err != nil {
				return fmt.Errorf("rename sheet: %w", err)
			}
		} else {
			if _, err := workbook.NewSheet(sheet); err != nil {
				return fmt.Errorf("create sheet %s: %w", sheet, err)
			}
		}

		for rowIdx, line := range strings.Split(strings.TrimSpace(table.Body), "\n") {
			for colIdx, value := range strings.Split(line, "\t") {
				cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+1)
				if err != nil {
					return fmt.Errorf("cell coordinates: %w", err)
				}
				if err := workbook.SetCellValue(sheet, cell, value); err != nil {
					return fmt.Errorf("set cell %s: %w", cell, err)
				}
			}
		}
	}

	if err := workbook.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

// sheetName keeps titles inside the 31-char xlsx limit and unique per index.
func sheetName(title string, index int) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '_'
		default:
			return r
		}
	}, title)
	if name == "" {
		name = fmt.Sprintf("Table %d", index+1)
	}
	if len(name) > 31 {
		name = name[:31]
	}
	return name
}
