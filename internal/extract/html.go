package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// stripTags returns the visible text of an HTML fragment with entities decoded.
// Comments are dropped.
func stripTags(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return strings.TrimSpace(fragment)
	}

	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(fragment))
	for {
		switch z.Next() {
		case html.ErrorToken:
			// io.EOF or a malformed tail; either way keep what was read.
			return strings.TrimSpace(b.String())
		case html.TextToken:
			b.Write(z.Text())
		}
	}
}

// anchor returns the href and text of the first <a> in fragment.
// Attribute quoting does not matter.
func anchor(fragment string) (href, text string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return "", stripTags(fragment)
	}
	a := doc.Find("a").First()
	if a.Length() == 0 {
		return "", stripTags(fragment)
	}
	href, _ = a.Attr("href")
	return strings.TrimSpace(href), strings.TrimSpace(a.Text())
}

// parseDocument parses a full HTML page.
func parseDocument(page string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(page))
}

// labelValue finds the <dt> whose text contains label and returns the trimmed
// text of the first <dd> after it.
func labelValue(doc *goquery.Document, label string) string {
	dt := doc.Find("dt").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return strings.Contains(s.Text(), label)
	}).First()
	if dt.Length() == 0 {
		return ""
	}
	return strings.TrimSpace(dt.NextAllFiltered("dd").First().Text())
}

func textOf(s *goquery.Selection) string {
	return strings.TrimSpace(s.Text())
}

func attrOf(s *goquery.Selection, name string) string {
	v, _ := s.Attr(name)
	return strings.TrimSpace(v)
}

func cell(cols []string, i int) string {
	if i < len(cols) {
		return cols[i]
	}
	return ""
}
