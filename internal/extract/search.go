package extract

import (
	"errors"
	"net/url"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrNoData means the search payload had no "aaData" array.
var ErrNoData = errors.New("search response has no aaData")

var commentDateRe = regexp.MustCompile(`<!--\s*(\d{4}-\d{2}-\d{2})\s*-->`)

// Links rewrites upstream URLs into links served by this proxy.
type Links struct {
	Base string // e.g. http://localhost:5000
}

// Album links to the album lookup.
func (l Links) Album(upstream string) string { return l.link("/album", upstream) }

// AlbumFull links to the album-with-artist lookup.
func (l Links) AlbumFull(upstream string) string { return l.link("/album_full", upstream) }

// Artist links to the band lookup.
func (l Links) Artist(upstream string) string { return l.link("/artist_info", upstream) }

func (l Links) link(path, upstream string) string {
	if upstream == "" {
		return ""
	}
	return strings.TrimRight(l.Base, "/") + path + "?url=" + url.QueryEscape(upstream)
}

// AlbumSearch parses an album search payload. Rows with fewer than four
// columns are skipped; link builds the proxy URL for each album.
func AlbumSearch(body []byte, link func(string) string) ([]AlbumSearchRow, error) {
	data := gjson.GetBytes(body, "aaData")
	if !data.Exists() {
		return nil, ErrNoData
	}

	rows := []AlbumSearchRow{}
	for _, row := range data.Array() {
		cols := columns(row)
		if len(cols) < 4 {
			continue
		}

		albumURL, albumName := anchor(cols[1])
		rows = append(rows, AlbumSearchRow{
			Artist: stripTags(cols[0]),
			Album:  albumName,
			URL:    link(albumURL),
			Type:   strings.TrimSpace(cols[2]),
			Year:   searchDate(cols[3]),
		})
	}
	return rows, nil
}

// ArtistSearch parses a band search payload. Missing columns yield "".
func ArtistSearch(body []byte, link func(string) string) ([]ArtistSearchRow, error) {
	data := gjson.GetBytes(body, "aaData")
	if !data.Exists() {
		return nil, ErrNoData
	}

	rows := []ArtistSearchRow{}
	for _, row := range data.Array() {
		cols := columns(row)
		bandURL, bandName := anchor(cell(cols, 0))
		rows = append(rows, ArtistSearchRow{
			Artist:  bandName,
			Genres:  stripTags(cell(cols, 1)),
			URL:     link(bandURL),
			Country: stripTags(cell(cols, 2)),
		})
	}
	return rows, nil
}

func columns(row gjson.Result) []string {
	arr := row.Array()
	cols := make([]string, len(arr))
	for i, c := range arr {
		cols[i] = c.String()
	}
	return cols
}

// searchDate prefers the ISO date hidden in an HTML comment over the display text.
func searchDate(fragment string) string {
	if m := commentDateRe.FindStringSubmatch(fragment); m != nil {
		return m[1]
	}
	return stripTags(fragment)
}
