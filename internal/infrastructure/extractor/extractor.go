// Package extractor converts uploaded source files into plain text by
// dispatching on the declared MIME type and file extension. Extraction of one
// file never aborts an ingest batch; the caller records per-document failures.
package extractor

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/avpetrov/reportgen/internal/core/domain"
	"github.com/avpetrov/reportgen/internal/core/ports"
)

type Extractor struct {
	storage ports.ObjectStorage
}

func New(storage ports.ObjectStorage) *Extractor {
	return &Extractor{storage: storage}
}

func (e *Extractor) Extract(ctx context.Context, doc *domain.Document) (string, ports.ExtractMeta, error) {
	reader, err := e.storage.Open(ctx, doc.StoragePath)
	if err != nil {
		return "", ports.ExtractMeta{}, fmt.Errorf("open source document: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return "", ports.ExtractMeta{}, fmt.Errorf("read source document: %w", err)
	}

	text, meta, err := e.dispatch(doc, raw)
	if err != nil {
		return "", meta, domain.WrapError(domain.ErrExtractionFailed, "extract "+doc.Filename, err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		// Downstream chunking relies on non-empty input.
		text = fmt.Sprintf("[no extractable text in %s]", doc.Filename)
		meta.Warnings = append(meta.Warnings, "extraction yielded no content")
	}
	return text, meta, nil
}

func (e *Extractor) dispatch(doc *domain.Document, raw []byte) (string, ports.ExtractMeta, error) {
	ext := strings.ToLower(filepath.Ext(doc.Filename))
	mime := normalizeMime(doc.MimeType)

	switch {
	case mime == "application/pdf" || ext == ".pdf":
		return extractPDF(raw)
	case strings.Contains(mime, "wordprocessingml") || ext == ".docx":
		return extractDocx(raw)
	case strings.Contains(mime, "spreadsheetml") || ext == ".xlsx":
		return extractXlsx(raw)
	case mime == "text/csv" || ext == ".csv":
		return extractCSV(raw)
	case mime == "application/json" || ext == ".json":
		return extractJSON(raw)
	case strings.HasPrefix(mime, "text/") || ext == ".txt" || ext == ".md":
		return extractPlainText(raw)
	default:
		return extractBestEffort(raw)
	}
}

func normalizeMime(mime string) string {
	mime = strings.ToLower(strings.TrimSpace(mime))
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	return mime
}

func extractPlainText(raw []byte) (string, ports.ExtractMeta, error) {
	if !utf8.Valid(raw) {
		return extractBestEffort(raw)
	}
	return string(raw), ports.ExtractMeta{}, nil
}

func extractCSV(raw []byte) (string, ports.ExtractMeta, error) {
	r := csv.NewReader(bytes.NewReader(raw))
	r.FieldsPerRecord = -1
	var sb strings.Builder
	rows := 0
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", ports.ExtractMeta{}, fmt.Errorf("parse csv: %w", err)
		}
		sb.WriteString(strings.Join(record, " | "))
		sb.WriteString("\n")
		rows++
	}
	return sb.String(), ports.ExtractMeta{}, nil
}

func extractJSON(raw []byte) (string, ports.ExtractMeta, error) {
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", ports.ExtractMeta{}, fmt.Errorf("parse json: %w", err)
	}
	var sb strings.Builder
	flattenJSON(&sb, "", value)
	return sb.String(), ports.ExtractMeta{}, nil
}

// flattenJSON renders nested values as "path: value" lines so structured
// exports stay retrievable as prose.
func flattenJSON(sb *strings.Builder, prefix string, value any) {
	switch v := value.(type) {
	case map[string]any:
		for key, child := range v {
			path := key
			if prefix != "" {
				path = prefix + "." + key
			}
			flattenJSON(sb, path, child)
		}
	case []any:
		for i, child := range v {
			flattenJSON(sb, fmt.Sprintf("%s[%d]", prefix, i), child)
		}
	default:
		sb.WriteString(prefix)
		sb.WriteString(": ")
		sb.WriteString(fmt.Sprintf("%v", v))
		sb.WriteString("\n")
	}
}

// extractBestEffort salvages readable runes from an unknown binary format.
func extractBestEffort(raw []byte) (string, ports.ExtractMeta, error) {
	cleaned := strings.Map(func(r rune) rune {
		if r == utf8.RuneError || (unicode.IsControl(r) && r != '\n' && r != '\t') {
			return -1
		}
		return r
	}, string(raw))

	meta := ports.ExtractMeta{Warnings: []string{"unknown format, best-effort decode"}}
	return cleaned, meta, nil
}
