// Package handlers provides HTTP handlers for the web API.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/kozaktomas/face-gate/internal/database"
	"github.com/kozaktomas/face-gate/internal/extractor"
	"github.com/kozaktomas/face-gate/internal/verification"
)

// MaxBodyBytes bounds request bodies; base64 camera frames are large.
const MaxBodyBytes = 50 << 20

// maxFormMemory is how much of a multipart body stays in memory; the rest
// spills to temporary files.
const maxFormMemory = 10 << 20

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// decodeJSON reads a size-limited JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) (int, error) {
	body := http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return http.StatusRequestEntityTooLarge, fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit)
		case errors.Is(err, io.EOF):
			return http.StatusBadRequest, errors.New("request body is empty")
		default:
			return http.StatusBadRequest, errors.New(errInvalidRequestBody)
		}
	}
	return http.StatusOK, nil
}

// formRequest is a request body that can also be sent as multipart/form-data.
type formRequest interface {
	fromForm(form *multipart.Form) error
}

// decodeRequest reads a JSON or multipart/form-data body into dst.
func decodeRequest(w http.ResponseWriter, r *http.Request, dst formRequest) (int, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return decodeJSON(w, r, dst)
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return http.StatusRequestEntityTooLarge, fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit)
		}
		return http.StatusBadRequest, errors.New("failed to parse multipart form")
	}
	defer r.MultipartForm.RemoveAll()

	if err := dst.fromForm(r.MultipartForm); err != nil {
		return http.StatusBadRequest, err
	}
	return http.StatusOK, nil
}

// formValue returns the first non-empty value among keys.
func formValue(form *multipart.Form, keys ...string) string {
	for _, key := range keys {
		if values := form.Value[key]; len(values) > 0 && values[0] != "" {
			return values[0]
		}
	}
	return ""
}

// formFloat parses an optional numeric form field; nil when absent.
func formFloat(form *multipart.Form, key string) (*float64, error) {
	s := strings.TrimSpace(formValue(form, key))
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("%s must be a number", key)
	}
	return &f, nil
}

// statusForError maps engine, store and extractor errors to HTTP statuses.
// Store timeouts answer 502 and connection failures 501, the codes existing
// clients already react to.
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, extractor.ErrNoFaceDetected):
		return http.StatusBadRequest, "no face detected"
	case errors.Is(err, extractor.ErrInvalidImage):
		return http.StatusBadRequest, "invalid image"
	case errors.Is(err, verification.ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, verification.ErrUnknownComparison):
		return http.StatusNotFound, "unknown or expired comparison token"
	case errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound, "enrollment not found"
	case errors.Is(err, database.ErrTimeout):
		return http.StatusBadGateway, "database query timeout"
	case errors.Is(err, database.ErrUnavailable):
		return http.StatusNotImplemented, "database connection failed"
	case errors.Is(err, extractor.ErrUnavailable):
		return http.StatusBadGateway, "face extractor unavailable"
	case errors.Is(err, verification.ErrCorruptRecord):
		return http.StatusInternalServerError, "stored face embedding is corrupt"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
