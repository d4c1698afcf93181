package parser

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var whitespace = regexp.MustCompile(`\s+`)

// ExtractHTML reduces an HTML document (typically a Drive-exported Google
// Doc) to plain text. Boilerplate elements are dropped and whitespace
// collapsed. An empty result means the document has no extractable text.
func ExtractHTML(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}

	doc.Find("script, style, nav, footer, header, aside").Each(func(i int, s *goquery.Selection) {
		s.Remove()
	})

	text := doc.Find("body").Text()
	if text == "" {
		// Fragments without a body element still carry text nodes.
		text = doc.Text()
	}

	text = whitespace.ReplaceAllString(text, " ")

	return strings.TrimSpace(text), nil
}
