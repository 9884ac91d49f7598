package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsChallengeTitle(t *testing.T) {
	assert.True(t, IsChallengeTitle("Just a moment..."))
	assert.True(t, IsChallengeTitle("Checking your browser before accessing"))
	assert.True(t, IsChallengeTitle("  Just a moment...\n"))
	assert.False(t, IsChallengeTitle("Encyclopaedia Metallum: The Metal Archives"))
	assert.False(t, IsChallengeTitle("Ulver - Just a moment - Encyclopaedia Metallum: The Metal Archives"))
}

func TestIsChallengePage(t *testing.T) {
	tests := []struct {
		name string
		page string
		want bool
	}{
		{"title", `<html><head><title>Just a moment...</title></head><body></body></html>`, true},
		{"spinner", `<html><body><div id="cf-spinner"></div></body></html>`, true},
		{"form", `<html><body><form id="challenge-form" action="/"></form></body></html>`, true},
		{"album titled like a marker", `<html><head><title>Ulver - Just a moment - Encyclopaedia Metallum</title></head><body><h1 class="album_name">Just a moment</h1></body></html>`, false},
		{"content", `<html><head><title>Ved Buens Ende</title></head><body><h1 class="band_name">x</h1></body></html>`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsChallengePage(tt.page))
		})
	}
}
