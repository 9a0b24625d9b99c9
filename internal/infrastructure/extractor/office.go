package extractor

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/avpetrov/reportgen/internal/core/ports"
)

// extractDocx pulls paragraph text out of the OOXML document part.
func extractDocx(raw []byte) (string, ports.ExtractMeta, error) {
	archive, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", ports.ExtractMeta{}, fmt.Errorf("open docx archive: %w", err)
	}

	var docPart *zip.File
	for _, f := range archive.File {
		if f.Name == "word/document.xml" {
			docPart = f
			break
		}
	}
	if docPart == nil {
		return "", ports.ExtractMeta{}, fmt.Errorf("docx archive has no word/document.xml")
	}

	part, err := docPart.Open()
	if err != nil {
		return "", ports.ExtractMeta{}, fmt.Errorf("open document part: %w", err)
	}
	defer part.Close()

	var sb strings.Builder
	decoder := xml.NewDecoder(part)
	inText := false
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", ports.ExtractMeta{}, fmt.Errorf("parse document xml: %w", err)
		}
		switch t := token.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteString("\n")
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
	return sb.String(), ports.ExtractMeta{}, nil
}

// extractXlsx flattens every sheet's rows into pipe-delimited lines.
func extractXlsx(raw []byte) (string, ports.ExtractMeta, error) {
	workbook, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		return "", ports.ExtractMeta{}, fmt.Errorf("open xlsx workbook: %w", err)
	}
	defer workbook.Close()

	var sb strings.Builder
	meta := ports.ExtractMeta{}
	for _, sheet := range workbook.GetSheetList() {
		rows, err := workbook.GetRows(sheet)
		if err != nil {
			meta.Warnings = append(meta.Warnings, fmt.Sprintf("sheet %s unreadable: %v", sheet, err))
			continue
		}
		sb.WriteString(fmt.Sprintf("[sheet %s]\n", sheet))
		for _, row := range rows {
			line := strings.TrimSpace(strings.Join(row, " | "))
			if line != "" {
				sb.WriteString(line)
				sb.WriteString("\n")
			}
		}
		meta.Pages++
	}
	return sb.String(), meta, nil
}
