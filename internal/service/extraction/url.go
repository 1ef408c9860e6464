package extraction

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/ifuryst/repurpose/internal/models"
)

const maxPageBytes = 10 << 20

var skippedElements = map[string]bool{
	"script": true,
	"style":  true,
	"nav":    true,
	"footer": true,
	"header": true,
}

// ExtractURL downloads a web page and returns its main text
func (e *Extractor) ExtractURL(ctx context.Context, rawURL string) (*Result, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, fmt.Errorf("%w: invalid url %q", ErrFetch, rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %v", ErrFetch, err)
	}
	req.Header.Set("User-Agent", "repurpose-extractor/1.0")

	resp, err := e.client.Do(req)
	if err != nil {
		e.logger.Error("Failed to fetch url", zap.String("url", rawURL), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d", ErrFetch, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read body: %v", ErrFetch, err)
	}

	result, err := extractHTML(string(body))
	if err != nil {
		return nil, err
	}
	result.Metadata["url"] = rawURL

	e.logger.Debug("Extracted url content",
		zap.String("url", rawURL),
		zap.String("title", result.Title))
	return result, nil
}

func extractHTML(page string) (*Result, error) {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	title := "Untitled"
	if node := findElement(doc, func(n *html.Node) bool { return n.Data == "title" }); node != nil {
		if t := strings.TrimSpace(textLines(node, nil)); t != "" {
			title = t
		}
	}

	root := findElement(doc, func(n *html.Node) bool { return n.Data == "main" })
	if root == nil {
		root = findElement(doc, func(n *html.Node) bool { return n.Data == "article" })
	}
	if root == nil {
		root = findElement(doc, func(n *html.Node) bool { return n.Data == "div" && hasClass(n, "content") })
	}
	if root == nil {
		root = findElement(doc, func(n *html.Node) bool { return n.Data == "body" })
	}
	if root == nil {
		root = doc
	}

	var lines []string
	textLines(root, &lines)
	text := strings.Join(lines, "\n\n")
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: no text found on the page", ErrEmptyContent)
	}

	return newResult(text, title, models.SourceTypeURL), nil
}

// findElement returns the first element in document order matching match,
// ignoring anything inside skipped elements
func findElement(n *html.Node, match func(*html.Node) bool) *html.Node {
	if n.Type == html.ElementNode {
		if skippedElements[n.Data] {
			return nil
		}
		if match(n) {
			return n
		}
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if found := findElement(child, match); found != nil {
			return found
		}
	}
	return nil
}

// textLines appends every non-empty trimmed text line under n to out and
// returns the text joined by spaces
func textLines(n *html.Node, out *[]string) string {
	var all []string
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode && skippedElements[node.Data] {
			return
		}
		if node.Type == html.TextNode {
			for _, line := range strings.Split(node.Data, "\n") {
				if line = strings.TrimSpace(line); line != "" {
					all = append(all, line)
				}
			}
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)

	if out != nil {
		*out = append(*out, all...)
	}
	return strings.Join(all, " ")
}

func hasClass(n *html.Node, class string) bool {
	for _, attr := range n.Attr {
		if attr.Key != "class" {
			continue
		}
		for _, c := range strings.Fields(attr.Val) {
			if c == class {
				return true
			}
		}
	}
	return false
}
