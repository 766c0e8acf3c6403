// Package richtext turns editor HTML into plain text for list views.
package richtext

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// Text returns the visible text of an HTML fragment with whitespace collapsed.
// Block elements are separated by a space so adjacent paragraphs do not run together.
func Text(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}
	doc.Find("script, style").Remove()
	doc.Find("p, div, br, li, h1, h2, h3, h4, h5, h6, blockquote").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml(" ")
	})
	return strings.Join(strings.Fields(doc.Text()), " "), nil
}

// Excerpt returns at most n runes of the text of html, cut on a word boundary where
// possible and suffixed with an ellipsis when truncated.
func Excerpt(html string, n int) string {
	text, err := Text(html)
	if err != nil {
		text = strings.Join(strings.Fields(html), " ")
	}
	if n <= 0 || utf8.RuneCountInString(text) <= n {
		return text
	}
	runes := []rune(text)[:n]
	cut := string(runes)
	if i := strings.LastIndexByte(cut, ' '); i > len(cut)/2 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,.;:") + "…"
}
