// Package response writes the bare JSON bodies the tagging client expects.
//
// Tagging scripts cannot read HTTP status codes, so failures are reported as
// {"error": "..."} with status 200. Non-ASCII text is written as-is rather
// than \u-escaped.
package response

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"
	domainerrors "github.com/maproxy/maproxy/internal/errors"
)

// ErrorBody is the failure shape returned to the tagging client.
type ErrorBody struct {
	Error string `json:"error"`
}

// JSON writes data as the whole response body with the given status code.
func JSON(w http.ResponseWriter, status int, data any, logger *slog.Logger) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(data); err != nil {
		if logger != nil {
			logger.Error("Failed to encode JSON response", "error", err)
		}
		status = http.StatusInternalServerError
		buf.Reset()
		buf.WriteString(`{"error":"internal server error"}`)
	}
	body := bytes.TrimRight(buf.Bytes(), "\n")

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil && logger != nil {
		logger.Debug("Failed to write response", "error", err)
	}
}

// Success writes data with 200 OK.
func Success(w http.ResponseWriter, data any, logger *slog.Logger) {
	JSON(w, http.StatusOK, data, logger)
}

// NoContent writes an empty 204 response.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Error writes {"error": message} with 200 OK.
func Error(w http.ResponseWriter, message string, logger *slog.Logger) {
	JSON(w, http.StatusOK, ErrorBody{Error: message}, logger)
}

// HandleError reports err to the tagging client. Domain errors are logged at
// a level matching their code; anything else is an unexpected failure.
func HandleError(w http.ResponseWriter, err error, logger *slog.Logger) {
	var de *domainerrors.Error
	if !errors.As(err, &de) {
		if logger != nil {
			logger.Error("Unhandled error", "error", err)
		}
		Error(w, err.Error(), logger)
		return
	}

	if logger != nil {
		switch de.Code {
		case domainerrors.CodeMissingParameter, domainerrors.CodeValidation:
			logger.Debug("Rejected request", "code", de.Code, "error", err)
		case domainerrors.CodeInternal:
			logger.Error("Request failed", "code", de.Code, "error", err)
		default:
			logger.Warn("Request failed", "code", de.Code, "error", err)
		}
	}
	Error(w, err.Error(), logger)
}
