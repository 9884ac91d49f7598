package extract

import "strconv"

// Album is a normalized release page. Every string field is "" when the page
// does not carry it; Tracks is never nil.
type Album struct {
	AlbumURL    string  `json:"metal_archives_album_url"`
	BandURL     string  `json:"metal_archives_band_url"`
	CoverURL    string  `json:"coverurl"`
	Title       string  `json:"album"`
	Artist      string  `json:"artist"`
	Type        string  `json:"metal_archives_type"`
	Year        string  `json:"year"`
	Date        string  `json:"metal_archives_date"`         // YYYY-MM-DD
	ReleaseDate string  `json:"metal_archives_release_date"` // as printed on the page
	Catalog     string  `json:"catalog"`
	Edition     string  `json:"metal_archives_edition"`
	Label       string  `json:"publisher"`
	Rating      string  `json:"metal_archives_rating"`
	Notes       string  `json:"metal_archives_info"`
	Tracks      []Track `json:"tracks"`
}

// Track is one row of a release's track table. Bonus and Instrumental are "1" or "".
type Track struct {
	Disc         string `json:"discnumber"`
	Title        string `json:"track"`
	Bonus        string `json:"bonus"`
	Length       string `json:"length"`
	Instrumental string `json:"instrumental"`
}

// Artist is a normalized band page.
type Artist struct {
	BandURL       string `json:"metal_archives_band_url"`
	Country       string `json:"country"`
	Location      string `json:"metal_archives_location"`
	Status        string `json:"metal_archives_status"`
	FormationYear string `json:"metal_archives_formation_year"`
	Genre         string `json:"genre"`
	LyricalThemes string `json:"metal_archives_lyrical_themes"`
}

// AlbumSearchRow is one release hit, linking back to this proxy.
type AlbumSearchRow struct {
	Artist string `json:"artist"`
	Album  string `json:"album"`
	URL    string `json:"metal_archives_album_url"`
	Type   string `json:"metal_archives_type"`
	Year   string `json:"year"`
}

// ArtistSearchRow is one band hit, linking back to this proxy.
type ArtistSearchRow struct {
	Artist  string `json:"artist"`
	Genres  string `json:"artist_genres"`
	URL     string `json:"metal_archives_artist_url"`
	Country string `json:"country"`
}

// SearchResults wraps rows in the object shape the tagging scripts expect.
type SearchResults[T any] struct {
	Results []T `json:"results"`
}

// AlbumWithArtist combines a release with its band.
type AlbumWithArtist struct {
	AlbumURL  string  `json:"metal_archives_album_url"`
	ArtistURL string  `json:"metal_archives_artist_url"`
	Album     *Album  `json:"album_data"`
	Artist    *Artist `json:"artist_data"`
}

// Field is a named string value, used for diagnostics.
type Field struct {
	Name  string
	Value string
}

// Fields lists the album's scalar fields and each track title, in output order.
func (a *Album) Fields() []Field {
	fs := []Field{
		{"metal_archives_album_url", a.AlbumURL},
		{"metal_archives_band_url", a.BandURL},
		{"coverurl", a.CoverURL},
		{"album", a.Title},
		{"artist", a.Artist},
		{"metal_archives_type", a.Type},
		{"year", a.Year},
		{"metal_archives_date", a.Date},
		{"metal_archives_release_date", a.ReleaseDate},
		{"catalog", a.Catalog},
		{"metal_archives_edition", a.Edition},
		{"publisher", a.Label},
		{"metal_archives_rating", a.Rating},
		{"metal_archives_info", a.Notes},
	}
	for i, t := range a.Tracks {
		fs = append(fs, Field{Name: "tracks[" + strconv.Itoa(i) + "].track", Value: t.Title})
	}
	return fs
}

// Fields lists the artist's fields in output order.
func (a *Artist) Fields() []Field {
	return []Field{
		{"metal_archives_band_url", a.BandURL},
		{"country", a.Country},
		{"metal_archives_location", a.Location},
		{"metal_archives_status", a.Status},
		{"metal_archives_formation_year", a.FormationYear},
		{"genre", a.Genre},
		{"metal_archives_lyrical_themes", a.LyricalThemes},
	}
}
