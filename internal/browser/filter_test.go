package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestFilter_Block(t *testing.T) {
	f := DefaultRequestFilter()

	tests := []struct {
		name         string
		resourceType string
		url          string
		wantBlocked  bool
		wantReason   string
	}{
		{"document", "document", "https://www.metal-archives.com/albums/x/y/1", false, ""},
		{"xhr", "xhr", "https://www.metal-archives.com/search/ajax-advanced/searching/albums/?bandName=x", false, ""},
		{"script", "script", "https://www.metal-archives.com/js/jquery.js", false, ""},
		{"image", "image", "https://www.metal-archives.com/images/1.jpg", true, "image"},
		{"stylesheet", "stylesheet", "https://www.metal-archives.com/css/default.css", true, "stylesheet"},
		{"font", "font", "https://fonts.example.com/x.woff2", true, "font"},
		{"media", "media", "https://www.metal-archives.com/audio/sample.mp3", false, ""},
		{"analytics script", "script", "https://www.google-analytics.com/analytics.js", true, "tracking"},
		{"ad frame", "document", "https://ad.doubleclick.net/x", true, "tracking"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blocked, reason := f.Block(tt.resourceType, tt.url)
			assert.Equal(t, tt.wantBlocked, blocked)
			assert.Equal(t, tt.wantReason, reason)
		})
	}
}

func TestRequestFilter_Nil(t *testing.T) {
	var f *RequestFilter
	blocked, _ := f.Block("image", "x")
	assert.False(t, blocked)
}
