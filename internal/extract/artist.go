package extract

import "fmt"

// ParseArtist extracts a band page. bandURL is recorded as the canonical URL.
func ParseArtist(page, bandURL string) (*Artist, error) {
	doc, err := parseDocument(page)
	if err != nil {
		return nil, fmt.Errorf("parse band page: %w", err)
	}

	return &Artist{
		BandURL:       bandURL,
		Country:       labelValue(doc, "Country of origin:"),
		Location:      labelValue(doc, "Location:"),
		Status:        labelValue(doc, "Status:"),
		FormationYear: labelValue(doc, "Formed in:"),
		Genre:         labelValue(doc, "Genre:"),
		LyricalThemes: labelValue(doc, "Themes:"),
	}, nil
}
