// Package extract pulls plain text out of resume and job description inputs.
package extract

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// FromFile extracts UTF-8 text from the file at path. PDF files are parsed
// page by page; everything else is read as plain text.
func FromFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %q: %w", path, err)
	}

	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		text, err := FromPDF(data)
		if err != nil {
			return "", fmt.Errorf("extracting text from %q: %w", path, err)
		}
		return text, nil
	}

	return string(data), nil
}

// FromPDF extracts plain text from an in-memory PDF payload.
func FromPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("parsing pdf: %w", err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}

	text := strings.TrimSpace(buf.String())
	if text == "" {
		return "", fmt.Errorf("pdf contains no extractable text")
	}

	return text, nil
}
