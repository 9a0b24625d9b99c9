package artifacts

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/avpetrov/reportgen/internal/core/domain"
)

// pipelineFlowDiagram renders the project's ingestion funnel as a mermaid
// flowchart with live document/chunk counts.
func pipelineFlowDiagram(data ProjectData) (string, error) {
	processed, failed := 0, 0
	for _, doc := range data.Documents {
		switch doc.Status {
		case domain.DocProcessed:
			processed++
		case domain.DocError:
			failed++
		}
	}

	var sb strings.Builder
	sb.WriteString("flowchart LR\n")
	sb.WriteString(fmt.Sprintf("    upload[\"Uploads (%d)\"] --> extract[\"Extracted (%d)\"]\n", len(data.Documents), processed))
	sb.WriteString(fmt.Sprintf("    extract --> chunks[\"Chunks (%d)\"]\n", data.ChunkCount))
	sb.WriteString("    chunks --> index[\"Semantic Index\"]\n")
	sb.WriteString("    index --> report[\"Report\"]\n")
	if failed > 0 {
		sb.WriteString(fmt.Sprintf("    upload --> failed[\"Failed (%d)\"]\n", failed))
	}
	return sb.String(), nil
}

// sourceOverviewDiagram groups documents by file type.
func sourceOverviewDiagram(data ProjectData) (string, error) {
	byType := map[string][]string{}
	for _, doc := range data.Documents {
		ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(doc.Filename)), ".")
		if ext == "" {
			ext = "other"
		}
		byType[ext] = append(byType[ext], doc.Filename)
	}

	types := make([]string, 0, len(byType))
	for t := range byType {
		types = append(types, t)
	}
	sort.Strings(types)

	var sb strings.Builder
	sb.WriteString("flowchart TD\n")
	sb.WriteString(fmt.Sprintf("    project[\"%s\"]\n", sanitizeLabel(data.Project.Title)))
	for _, t := range types {
		names := byType[t]
		sort.Strings(names)
		sb.WriteString(fmt.Sprintf("    project --> %s[\"%s (%d)\"]\n", t, strings.ToUpper(t), len(names)))
		for i, name := range names {
			sb.WriteString(fmt.Sprintf("    %s --> %s_%d[\"%s\"]\n", t, t, i, sanitizeLabel(name)))
		}
	}
	return sb.String(), nil
}

// timelineDiagram renders a phased gantt, one phase per methodology.
func timelineDiagram(data ProjectData) (string, error) {
	methodologies := data.Project.Methodologies
	if len(methodologies) == 0 {
		methodologies = []string{"Assessment", "Analysis", "Recommendations"}
	}

	var sb strings.Builder
	sb.WriteString("gantt\n")
	sb.WriteString(fmt.Sprintf("    title %s\n", sanitizeLabel(data.Project.Title)))
	sb.WriteString("    dateFormat X\n")
	sb.WriteString("    axisFormat week %s\n")
	for i, m := range methodologies {
		sb.WriteString(fmt.Sprintf("    section %s\n", sanitizeLabel(m)))
		sb.WriteString(fmt.Sprintf("    %s : p%d, %d, 2w\n", sanitizeLabel(m), i, i*2))
	}
	return sb.String(), nil
}

// sanitizeLabel strips characters that break mermaid node labels.
func sanitizeLabel(s string) string {
	s = strings.NewReplacer("\"", "'", "[", "(", "]", ")", "\n", " ").Replace(s)
	if s == "" {
		return "untitled"
	}
	return s
}
