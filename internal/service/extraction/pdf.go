package extraction

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

func extractPDF(data []byte, filename string) (result *Result, err error) {
	// the pdf reader panics on some malformed xref tables
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("failed to parse pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}

	totalPages := reader.NumPage()
	var parts []string
	for i := 1; i <= totalPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// Skip problematic pages instead of failing entirely
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			parts = append(parts, text)
		}
	}

	full := strings.Join(parts, "\n\n")
	if strings.TrimSpace(full) == "" {
		return nil, fmt.Errorf("%w: pdf contains no extractable text", ErrEmptyContent)
	}

	title := baseTitle(filename)
	result = newResult(full, title, "pdf")
	result.Metadata["page_count"] = totalPages
	if original := strings.TrimSpace(reader.Trailer().Key("Info").Key("Title").Text()); original != "" {
		result.Title = original
		result.Metadata["original_title"] = original
	}
	return result, nil
}
