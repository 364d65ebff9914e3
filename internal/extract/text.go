// Package extract turns fetched documents into the plain text handed to
// the citation extractor.
package extract

import (
	"strings"

	"golang.org/x/net/html"
)

// Document is the readable content of a source document
type Document struct {
	Title string
	Text  string
	Links []Link
}

// blockElements end a line so reference lists keep one entry per line
var blockElements = map[string]bool{
	"p": true, "div": true, "li": true, "br": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"blockquote": true, "section": true, "article": true, "dd": true, "dt": true,
	"pre": true, "table": true, "ol": true, "ul": true,
}

// ParseHTML extracts the title and visible text of an HTML document,
// skipping scripts, styles and navigation chrome
func ParseHTML(htmlContent string) (Document, error) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return Document{}, err
	}

	var title string
	var buf strings.Builder

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe", "nav", "svg", "template":
				return
			case "title":
				if title == "" && n.FirstChild != nil {
					title = strings.TrimSpace(n.FirstChild.Data)
				}
				return
			}
		}

		if n.Type == html.TextNode {
			if text := strings.Join(strings.Fields(n.Data), " "); text != "" {
				buf.WriteString(text)
				buf.WriteString(" ")
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}

		if n.Type == html.ElementNode && blockElements[n.Data] {
			buf.WriteString("\n")
		}
	}

	walk(doc)
	return Document{Title: title, Text: tidyLines(buf.String())}, nil
}

// PlainText normalizes a plain-text document
func PlainText(content string) Document {
	return Document{Text: tidyLines(content)}
}

// LooksLikeHTML guesses whether content is HTML from its content type or,
// failing that, its first bytes
func LooksLikeHTML(content, contentType string) bool {
	ct := strings.ToLower(contentType)
	if strings.Contains(ct, "html") {
		return true
	}
	if ct != "" && !strings.HasPrefix(ct, "application/octet-stream") {
		return false
	}

	head := strings.ToLower(strings.TrimSpace(content))
	if len(head) > 512 {
		head = head[:512]
	}
	return strings.HasPrefix(head, "<!doctype html") ||
		strings.HasPrefix(head, "<html") ||
		strings.Contains(head, "<body")
}

// tidyLines trims every line, collapses inner whitespace and drops runs of
// blank lines
func tidyLines(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
