// Package htmltext flattens the HTML bodies of posts into plain text for
// terminal display. Invoked by the presentation layer on entries in the
// render diff; the sync engine never touches content.
package htmltext

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var collapseRe = regexp.MustCompile(`[ \t]+`)

// Strip converts a post's HTML content to readable plain text: paragraphs
// become blank-line separated blocks, <br> becomes a newline, entities are
// decoded. Input that fails to parse is returned unchanged.
func Strip(html string) string {
	if html == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}

	doc.Find("br").Each(func(_ int, s *goquery.Selection) {
		s.ReplaceWithHtml("\n")
	})

	paragraphs := doc.Find("p")
	var blocks []string
	if paragraphs.Length() > 0 {
		paragraphs.Each(func(_ int, s *goquery.Selection) {
			if text := tidy(s.Text()); text != "" {
				blocks = append(blocks, text)
			}
		})
	}
	if len(blocks) == 0 {
		if text := tidy(doc.Text()); text != "" {
			blocks = append(blocks, text)
		}
	}
	return strings.Join(blocks, "\n\n")
}

// tidy collapses runs of spaces while preserving intentional newlines.
func tidy(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(collapseRe.ReplaceAllString(line, " "))
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
