package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/text/cases"
)

const crlf = "\r\n"

var (
	blankRunRe  = regexp.MustCompile(`(\r?\n){3,}`)
	spaceRunRe  = regexp.MustCompile(`[^\S\r\n]{2,}`)
	sourceSpace = strings.NewReplacer("\r", " ", "\n", " ", "\t", " ")
	fold        = cases.Fold()

	// Paragraphs that head a block get an extra line break after them.
	headingParagraphs = map[string]bool{
		fold.String("Recording information:"): true,
		fold.String("Title translation:"):     true,
	}
)

// notes renders the liner notes panel as CRLF-separated plain text.
// Each <p> becomes one paragraph; a panel without paragraphs is read as one.
func notes(doc *goquery.Document) string {
	panel := doc.Find("div#album_tabs_notes .ui-tabs-panel-content").First()
	if panel.Length() == 0 {
		return ""
	}

	blocks := panel.Find("p")
	if blocks.Length() == 0 {
		blocks = panel
	}

	var paragraphs []string
	blocks.Each(func(_ int, p *goquery.Selection) {
		text := paragraphText(p.Get(0))
		if text == "" {
			return
		}
		if headingParagraphs[fold.String(text)] {
			text += crlf
		}
		paragraphs = append(paragraphs, text)
	})

	out := strings.Join(paragraphs, crlf+crlf)
	out = blankRunRe.ReplaceAllString(out, crlf+crlf)
	out = spaceRunRe.ReplaceAllString(out, " ")
	return strings.TrimSpace(out)
}

// paragraphText flattens a node: <br> becomes CRLF, every other element
// contributes its text, and source line breaks count as plain spaces.
func paragraphText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			switch {
			case c.Type == html.TextNode:
				b.WriteString(sourceSpace.Replace(c.Data))
			case c.Type == html.ElementNode && c.Data == "br":
				b.WriteString(crlf)
			case c.Type == html.ElementNode:
				walk(c)
			}
		}
	}
	walk(n)

	lines := strings.Split(b.String(), crlf)
	for i, line := range lines {
		lines[i] = strings.Trim(line, " ")
	}
	return strings.TrimSpace(strings.Join(lines, crlf))
}
