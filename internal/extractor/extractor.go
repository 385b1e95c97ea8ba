// Package extractor turns captured images into face embeddings by calling an
// external face-embedding server.
package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/kozaktomas/face-gate/internal/config"
	"github.com/kozaktomas/face-gate/internal/facematch"
)

const defaultExtractorURL = "http://localhost:8000"

var (
	// ErrNoFaceDetected is returned when the image contains no usable face.
	ErrNoFaceDetected = errors.New("no face detected")
	// ErrInvalidImage is returned for payloads that are not a decodable image.
	ErrInvalidImage = errors.New("invalid image")
	// ErrUnavailable wraps transport and server failures of the embedding server.
	ErrUnavailable = errors.New("face extractor unavailable")
)

// Extractor produces one embedding per image.
type Extractor interface {
	Extract(ctx context.Context, image []byte) (facematch.Embedding, error)
}

// Client talks to the embedding server's /embed/face endpoint.
type Client struct {
	baseURL      string
	maxImageSize int
	client       *http.Client
}

// NewClient creates a client from the extractor configuration
func NewClient(cfg config.ExtractorConfig) *Client {
	baseURL := cfg.URL
	if baseURL == "" {
		baseURL = defaultExtractorURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		maxImageSize: cfg.MaxImageSize,
		client:       &http.Client{Timeout: timeout},
	}
}

// FaceDetection represents a single detected face
type FaceDetection struct {
	FaceIndex int       `json:"face_index"`
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	BBox      []float64 `json:"bbox"` // [x1, y1, x2, y2]
	DetScore  float64   `json:"det_score"`
}

// FaceResponse represents the response from the face embedding endpoint
type FaceResponse struct {
	FacesCount int             `json:"faces_count"`
	Faces      []FaceDetection `json:"faces"`
	Model      string          `json:"model"`
}

// Extract detects faces in image and returns the embedding of the most
// confident detection.
func (c *Client) Extract(ctx context.Context, image []byte) (facematch.Embedding, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidImage)
	}

	if c.maxImageSize > 0 {
		resized, err := Downscale(image, c.maxImageSize)
		if err != nil {
			return nil, err
		}
		image = resized
	}

	resp, err := c.DetectFaces(ctx, image)
	if err != nil {
		return nil, err
	}

	face := PrimaryFace(resp.Faces)
	if face == nil {
		return nil, ErrNoFaceDetected
	}
	return facematch.FromFloat32(face.Embedding), nil
}

// DetectFaces posts the image and returns every detection.
func (c *Client) DetectFaces(ctx context.Context, image []byte) (*FaceResponse, error) {
	body, err := c.postMultipartImage(ctx, "/embed/face", image)
	if err != nil {
		return nil, err
	}

	var faceResp FaceResponse
	if err := json.Unmarshal(body, &faceResp); err != nil {
		return nil, fmt.Errorf("%w: failed to parse response: %w", ErrUnavailable, err)
	}
	return &faceResp, nil
}

// PrimaryFace picks the detection with the highest score; equal scores go to
// the larger bounding box. Detections without an embedding are ignored.
func PrimaryFace(faces []FaceDetection) *FaceDetection {
	var best *FaceDetection
	for i := range faces {
		f := &faces[i]
		if len(f.Embedding) == 0 {
			continue
		}
		if best == nil || f.DetScore > best.DetScore ||
			(f.DetScore == best.DetScore && facematch.BBoxArea(f.BBox) > facematch.BBoxArea(best.BBox)) {
			best = f
		}
	}
	return best
}

func (c *Client) postMultipartImage(ctx context.Context, endpoint string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="image.jpg"`)
	h.Set("Content-Type", detectMIMEType(imageData))
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request failed: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %w", ErrUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		return nil, fmt.Errorf("%w: server rejected image (status %d): %s", ErrInvalidImage, resp.StatusCode, string(body))
	default:
		return nil, fmt.Errorf("%w: API error (status %d): %s", ErrUnavailable, resp.StatusCode, string(body))
	}
}
