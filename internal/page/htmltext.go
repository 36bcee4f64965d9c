package page

import (
	"strings"

	"golang.org/x/net/html"
)

// ExtractTextFromHTML renders an HTML document as plain text. It is the
// fallback used when the crawl service returns HTML without markdown.
// Script and style contents are skipped; block elements become line
// breaks. Returns the document title and the extracted text.
func ExtractTextFromHTML(htmlContent string) (title, text string) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		// Unparseable input yields no text rather than an error;
		// callers treat an empty page the same way either path.
		return "", ""
	}

	var b strings.Builder
	extractNode(doc, &b, &title)

	return title, normalizeWhitespace(b.String())
}

// CountWords reports the number of whitespace-separated tokens in s.
func CountWords(s string) int {
	return len(strings.Fields(s))
}

var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"section": true, "article": true, "header": true, "footer": true,
	"table": true, "ul": true, "ol": true, "blockquote": true,
}

func extractNode(n *html.Node, b *strings.Builder, title *string) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "script", "style", "noscript":
			return
		case "title":
			if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
				*title = strings.TrimSpace(n.FirstChild.Data)
			}
			return
		}
	}

	if n.Type == html.TextNode {
		if t := strings.TrimSpace(n.Data); t != "" {
			b.WriteString(t)
			b.WriteString(" ")
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		extractNode(c, b, title)
	}

	if n.Type == html.ElementNode && blockElements[n.Data] {
		b.WriteString("\n")
	}
}

// normalizeWhitespace collapses runs of spaces within lines and drops
// blank lines so word counts are stable across markup variations.
func normalizeWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
