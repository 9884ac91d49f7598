package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContainsUnicode(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"café", true},
		{"cafe", false},
		{"", false},
		{"Mötley Crüe", true},
		{"Ólafur Arnalds", true},
		{"水", true},
		{"AC/DC", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ContainsUnicode(tt.in))
		})
	}
}

func TestUnicodeAndEmptyFields(t *testing.T) {
	a := &Artist{BandURL: "https://x/bands/1", Country: "Norway", Location: "Bergen, Hordaland", Genre: "Black Metal", LyricalThemes: "Søvn"}

	assert.Equal(t, []string{"metal_archives_lyrical_themes"}, UnicodeFields(a.Fields()))
	assert.Equal(t, []string{"metal_archives_status", "metal_archives_formation_year"}, EmptyFields(a.Fields()))
}
