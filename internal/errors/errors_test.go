package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesByCode(t *testing.T) {
	err := Navigationf(fmt.Errorf("timeout 60000ms exceeded"), "goto %s", "https://example.com")

	assert.True(t, Is(err, ErrNavigation))
	assert.False(t, Is(err, ErrCaptureFailed))
	assert.Equal(t, "goto https://example.com: timeout 60000ms exceeded", err.Error())
}

func TestError_WrappedChain(t *testing.T) {
	inner := MissingParameter("Missing parameter: 'url'")
	wrapped := fmt.Errorf("album: %w", inner)

	assert.True(t, Is(wrapped, ErrMissingParameter))
	assert.Equal(t, CodeMissingParameter, CodeOf(wrapped))
	assert.Equal(t, CodeInternal, CodeOf(fmt.Errorf("plain")))
}

func TestCaptureFailed_KeepsClientMessage(t *testing.T) {
	err := CaptureFailed("ajax-advanced/searching/albums")

	assert.Equal(t, "Couldn't capture AJAX response", err.Error())
	assert.Equal(t, map[string]string{"endpoint": "ajax-advanced/searching/albums"}, err.Details)
}

func TestCode_HTTPStatus(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeMissingParameter, http.StatusBadRequest},
		{CodeValidation, http.StatusBadRequest},
		{CodeNotFound, http.StatusNotFound},
		{CodeCaptureFailed, http.StatusBadGateway},
		{CodeNavigation, http.StatusBadGateway},
		{CodeDependency, http.StatusBadGateway},
		{CodeUpstreamUnavailable, http.StatusServiceUnavailable},
		{CodeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.code.HTTPStatus())
		})
	}
}

func TestError_WithCauseAndDetails(t *testing.T) {
	base := Dependency("Artist's URL not found on album's data")
	withCause := base.WithCause(fmt.Errorf("boom")).WithDetails("album:x")

	assert.Equal(t, "album:x", withCause.Details)
	assert.EqualError(t, Unwrap(withCause), "boom")
	assert.Nil(t, base.Details)
}
