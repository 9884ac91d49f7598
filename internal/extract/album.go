package extract

import (
	"fmt"
	"regexp"
)

var ratingRe = regexp.MustCompile(`\(avg\.\s*([\d.]+)%\)`)

// ParseAlbum extracts a release page. albumURL is recorded as the canonical URL.
func ParseAlbum(page, albumURL string) (*Album, error) {
	doc, err := parseDocument(page)
	if err != nil {
		return nil, fmt.Errorf("parse album page: %w", err)
	}

	band := doc.Find("h2.band_name a").First()
	releaseDate := labelValue(doc, "Release date:")

	return &Album{
		AlbumURL:    albumURL,
		BandURL:     attrOf(band, "href"),
		CoverURL:    attrOf(doc.Find("div.album_img a").First(), "href"),
		Title:       textOf(doc.Find("h1.album_name").First()),
		Artist:      textOf(band),
		Type:        labelValue(doc, "Type:"),
		Year:        firstYear(releaseDate),
		Date:        FormatDate(releaseDate),
		ReleaseDate: releaseDate,
		Catalog:     labelValue(doc, "Catalog ID:"),
		Edition:     labelValue(doc, "Version desc.:"),
		Label:       labelValue(doc, "Label:"),
		Rating:      rating(labelValue(doc, "Reviews:")),
		Notes:       notes(doc),
		Tracks:      tracks(doc),
	}, nil
}

// rating pulls "NN.NN%" out of "N reviews (avg. NN.NN%)".
func rating(reviews string) string {
	if m := ratingRe.FindStringSubmatch(reviews); m != nil {
		return m[1] + "%"
	}
	return ""
}
