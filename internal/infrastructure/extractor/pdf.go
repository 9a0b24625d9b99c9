package extractor

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/avpetrov/reportgen/internal/core/ports"
)

func extractPDF(raw []byte) (string, ports.ExtractMeta, error) {
	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", ports.ExtractMeta{}, fmt.Errorf("open pdf: %w", err)
	}

	meta := ports.ExtractMeta{Pages: reader.NumPage()}
	var sb strings.Builder
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			meta.Warnings = append(meta.Warnings, fmt.Sprintf("page %d is empty", pageNum))
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// A single unreadable page degrades to a warning; the rest of the
			// document still feeds the chunker.
			meta.Warnings = append(meta.Warnings, fmt.Sprintf("page %d unreadable: %v", pageNum, err))
			continue
		}
		sb.WriteString(fmt.Sprintf("[page %d]\n", pageNum))
		sb.WriteString(text)
		sb.WriteString("\n")
	}

	if sb.Len() == 0 && len(meta.Warnings) == meta.Pages && meta.Pages > 0 {
		return "", meta, fmt.Errorf("no readable pages out of %d", meta.Pages)
	}
	return sb.String(), meta, nil
}
