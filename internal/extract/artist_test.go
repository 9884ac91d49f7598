package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArtist(t *testing.T) {
	const bandURL = "https://www.metal-archives.com/bands/Ved_Buens_Ende/1234"

	artist, err := ParseArtist(readFixture(t, "band.html"), bandURL)
	require.NoError(t, err)

	assert.Equal(t, &Artist{
		BandURL:       bandURL,
		Country:       "Norway",
		Location:      "Oslo",
		Status:        "Split-up",
		FormationYear: "1993",
		Genre:         "Avant-garde Black Metal",
		LyricalThemes: "Existentialism, Mörkhet",
	}, artist)
	assert.Equal(t, []string{"metal_archives_lyrical_themes"}, UnicodeFields(artist.Fields()))
}

func TestParseArtist_MissingLabels(t *testing.T) {
	artist, err := ParseArtist(`<dl><dt>Genre:</dt><dd>Doom Metal</dd></dl>`, "u")
	require.NoError(t, err)

	assert.Equal(t, "Doom Metal", artist.Genre)
	assert.Empty(t, artist.Country)
	assert.Empty(t, artist.Status)
}
