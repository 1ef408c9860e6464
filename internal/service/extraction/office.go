package extraction

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var slidePattern = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

func extractDOCX(data []byte, filename string) (*Result, error) {
	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open docx: %w", err)
	}

	body, err := readZipFile(archive, "word/document.xml")
	if err != nil {
		return nil, err
	}
	paragraphs, err := xmlParagraphs(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse docx: %w", err)
	}

	var kept []string
	for _, p := range paragraphs {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	full := strings.Join(kept, "\n\n")
	if strings.TrimSpace(full) == "" {
		return nil, fmt.Errorf("%w: docx is empty", ErrEmptyContent)
	}

	result := newResult(full, baseTitle(filename), "docx")
	result.Metadata["paragraph_count"] = len(kept)
	if core, err := readZipFile(archive, "docProps/core.xml"); err == nil {
		if title := coreTitle(core); title != "" {
			result.Title = title
			result.Metadata["original_title"] = title
		}
	}
	return result, nil
}

func extractPPTX(data []byte, filename string) (*Result, error) {
	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open pptx: %w", err)
	}

	type slide struct {
		number int
		file   *zip.File
	}
	var slides []slide
	for _, f := range archive.File {
		m := slidePattern.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		slides = append(slides, slide{number: n, file: f})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].number < slides[j].number })

	var parts []string
	for i, s := range slides {
		raw, err := readEntry(s.file)
		if err != nil {
			return nil, err
		}
		paragraphs, err := xmlParagraphs(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse slide %d: %w", s.number, err)
		}
		var lines []string
		for _, p := range paragraphs {
			if strings.TrimSpace(p) != "" {
				lines = append(lines, p)
			}
		}
		if len(lines) > 0 {
			parts = append(parts, fmt.Sprintf("--- Slide %d ---\n%s", i+1, strings.Join(lines, "\n")))
		}
	}

	full := strings.Join(parts, "\n\n")
	if strings.TrimSpace(full) == "" {
		return nil, fmt.Errorf("%w: pptx contains no extractable text", ErrEmptyContent)
	}

	result := newResult(full, baseTitle(filename), "pptx")
	result.Metadata["slide_count"] = len(slides)
	return result, nil
}

func readZipFile(archive *zip.Reader, name string) ([]byte, error) {
	for _, f := range archive.File {
		if f.Name == name {
			return readEntry(f)
		}
	}
	return nil, fmt.Errorf("%w: missing %s", ErrUnsupportedFormat, name)
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", f.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", f.Name, err)
	}
	return data, nil
}

// xmlParagraphs collects the text runs of every <p> element. Word and
// PowerPoint both keep text in <t> runs inside <p> paragraphs.
func xmlParagraphs(data []byte) ([]string, error) {
	decoder := xml.NewDecoder(bytes.NewReader(data))

	var (
		paragraphs []string
		current    strings.Builder
		inText     bool
		depth      int
	)
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				if depth == 0 {
					current.Reset()
				}
				depth++
			case "t":
				inText = true
			case "tab":
				current.WriteString("\t")
			case "br":
				current.WriteString("\n")
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "p":
				if depth > 0 {
					depth--
				}
				if depth == 0 {
					paragraphs = append(paragraphs, current.String())
				}
			case "t":
				inText = false
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		}
	}
	return paragraphs, nil
}

func coreTitle(data []byte) string {
	var core struct {
		Title string `xml:"title"`
	}
	if err := xml.Unmarshal(data, &core); err != nil {
		return ""
	}
	return strings.TrimSpace(core.Title)
}
