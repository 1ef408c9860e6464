package extraction

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"

	"github.com/ifuryst/repurpose/internal/models"
	"github.com/ifuryst/repurpose/pkg/util"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrEmptyContent      = errors.New("no extractable text")
	ErrFetch             = errors.New("failed to fetch url")
)

// Result is the text pulled out of a document or web page
type Result struct {
	Text       string                 `json:"text"`
	Title      string                 `json:"title"`
	SourceType string                 `json:"source_type"`
	Metadata   map[string]interface{} `json:"metadata"`
}

type Extractor struct {
	client *http.Client
	logger *zap.Logger
}

func NewExtractor(fetchTimeout time.Duration, logger *zap.Logger) *Extractor {
	return &Extractor{
		client: &http.Client{Timeout: fetchTimeout},
		logger: logger,
	}
}

// Extract dispatches on the file extension of filename
func (e *Extractor) Extract(data []byte, filename string) (*Result, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")

	var (
		result *Result
		err    error
	)
	switch ext {
	case models.SourceTypePDF:
		result, err = extractPDF(data, filename)
	case models.SourceTypeDOCX:
		result, err = extractDOCX(data, filename)
	case models.SourceTypePPTX:
		result, err = extractPPTX(data, filename)
	case models.SourceTypeTXT:
		result, err = extractTXT(data, filename)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		e.logger.Error("Failed to extract content",
			zap.String("filename", filename),
			zap.Error(err))
		return nil, err
	}

	result.Metadata["file_size"] = len(data)
	e.logger.Debug("Extracted content",
		zap.String("filename", filename),
		zap.String("source_type", result.SourceType),
		zap.Int("characters", utf8.RuneCountInString(result.Text)))
	return result, nil
}

func extractTXT(data []byte, filename string) (*Result, error) {
	text := string(data)
	if !utf8.Valid(data) {
		decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode text file: %w", err)
		}
		text = string(decoded)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: text file is empty", ErrEmptyContent)
	}

	result := newResult(text, baseTitle(filename), models.SourceTypeTXT)
	result.Metadata["line_count"] = len(strings.Split(strings.TrimRight(text, "\r\n"), "\n"))
	return result, nil
}

func newResult(text, title, sourceType string) *Result {
	text = util.NormalizeText(text)
	return &Result{
		Text:       text,
		Title:      title,
		SourceType: sourceType,
		Metadata: map[string]interface{}{
			"word_count":      util.WordCount(text),
			"character_count": utf8.RuneCountInString(text),
		},
	}
}

// baseTitle is the file name without its extension
func baseTitle(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
