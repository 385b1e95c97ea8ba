package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-gate/internal/config"
	"github.com/kozaktomas/face-gate/internal/database"
	"github.com/kozaktomas/face-gate/internal/extractor"
	"github.com/kozaktomas/face-gate/internal/facematch"
	"github.com/kozaktomas/face-gate/internal/verification"
)

// testConfig creates a minimal config for testing
func testConfig() *config.Config {
	return &config.Config{
		Matching: config.MatchingConfig{
			EmbeddingDim:     2,
			VerifyThreshold:  0.95,
			CompareThreshold: 0.8,
			Policy:           config.PolicyFirst,
			ComparisonTTL:    10 * time.Minute,
		},
		Geofence: config.GeofenceConfig{
			RadiusMeters: 15,
		},
	}
}

// fakeExtractor returns a fixed embedding or error and records the images it saw
type fakeExtractor struct {
	embedding facematch.Embedding
	err       error
	images    [][]byte
}

func (f *fakeExtractor) Extract(ctx context.Context, image []byte) (facematch.Embedding, error) {
	f.images = append(f.images, image)
	if f.err != nil {
		return nil, f.err
	}
	return f.embedding, nil
}

// newTestFacesHandler builds a handler over store with 2-dimensional embeddings
func newTestFacesHandler(t *testing.T, store database.EnrollmentWriter, ext *fakeExtractor, opts verification.Options) *FacesHandler {
	t.Helper()
	opts.EmbeddingDim = 2
	engine, err := verification.NewEngine(store, opts)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	// A nil *fakeExtractor must stay a nil interface.
	var faces extractor.Extractor
	if ext != nil {
		faces = ext
	}
	return NewFacesHandler(engine, faces, verification.NewPendingComparisons("test-secret", time.Minute), nil)
}

// jsonRequest creates a request with body encoded as JSON
func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal request body: %v", err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// multipartRequest creates a multipart/form-data POST with fields and, when
// image is non-nil, an "image" file part
func multipartRequest(t *testing.T, path string, fields map[string]string, image []byte) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("failed to write field: %v", err)
		}
	}
	if image != nil {
		part, err := writer.CreateFormFile("image", "capture.jpg")
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		if _, err := part.Write(image); err != nil {
			t.Fatalf("failed to write image: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}

	req := httptest.NewRequest("POST", path, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// decodeResponse unmarshals the recorder body into dst
func decodeResponse(t *testing.T, recorder *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), dst); err != nil {
		t.Fatalf("failed to unmarshal response %q: %v", recorder.Body.String(), err)
	}
}

// assertError checks the status code and error message of an error response
func assertError(t *testing.T, recorder *httptest.ResponseRecorder, status int, message string) {
	t.Helper()
	if recorder.Code != status {
		t.Errorf("expected status %d, got %d (%s)", status, recorder.Code, recorder.Body.String())
	}
	var result map[string]string
	decodeResponse(t, recorder, &result)
	if message != "" && result["error"] != message {
		t.Errorf("expected error %q, got %q", message, result["error"])
	}
}
