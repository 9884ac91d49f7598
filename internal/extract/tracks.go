package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var discRe = regexp.MustCompile(`Disc\s+(\d+)`)

// tracks walks the track table in order. Disc header rows set the disc number
// for the rows that follow; lyric and summary rows are skipped.
func tracks(doc *goquery.Document) []Track {
	out := []Track{}
	disc := "1"

	doc.Find("table.table_lyrics tr").Each(func(_ int, row *goquery.Selection) {
		if row.HasClass("discRow") || row.Find(".discRow").Length() > 0 {
			if m := discRe.FindStringSubmatch(row.Text()); m != nil {
				disc = m[1]
			}
			return
		}

		cells := row.ChildrenFiltered("td")
		marked := row.HasClass("wrapWords") || row.Find(".wrapWords").Length() > 0
		if !marked || cells.Length() < 4 {
			return
		}

		title := cells.Eq(1)
		t := Track{
			Disc:   disc,
			Title:  textOf(title),
			Length: textOf(cells.Eq(2)),
		}
		if title.HasClass("bonus") {
			t.Bonus = "1"
		}
		if lyrics, err := goquery.OuterHtml(cells.Eq(3)); err == nil &&
			strings.Contains(strings.ToLower(lyrics), "<em>instrumental</em>") {
			t.Instrumental = "1"
		}
		out = append(out, t)
	})

	return out
}
