package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-gate/internal/extractor"
	"github.com/kozaktomas/face-gate/internal/facematch"
	"github.com/kozaktomas/face-gate/internal/logging"
	"github.com/kozaktomas/face-gate/internal/verification"
)

// FacesHandler serves registration, verification and comparison.
type FacesHandler struct {
	engine      *verification.Engine
	extractor   extractor.Extractor
	comparisons *verification.PendingComparisons
	log         logging.Logger
}

// NewFacesHandler creates a new faces handler. ext may be nil, in which case
// requests must carry a precomputed embedding.
func NewFacesHandler(engine *verification.Engine, ext extractor.Extractor, comparisons *verification.PendingComparisons, log logging.Logger) *FacesHandler {
	if log == nil {
		log = logging.Nop()
	}
	return &FacesHandler{
		engine:      engine,
		extractor:   ext,
		comparisons: comparisons,
		log:         log,
	}
}

// faceInput is the part shared by every face request: either a precomputed
// embedding or an image for the extractor. Multipart requests carry the
// image as an "image" file part.
type faceInput struct {
	Embedding   facematch.Embedding `json:"embedding,omitempty"`
	Image       string              `json:"image,omitempty"`
	Base64Image string              `json:"base64Image,omitempty"`

	upload []byte
}

func (in *faceInput) readForm(form *multipart.Form) error {
	if v := formValue(form, "embedding"); v != "" {
		if err := json.Unmarshal([]byte(v), &in.Embedding); err != nil {
			return errors.New("embedding must be a JSON array of numbers")
		}
	}

	files := form.File["image"]
	if len(files) == 0 {
		return nil
	}
	f, err := files[0].Open()
	if err != nil {
		return errors.New("failed to read uploaded image")
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return errors.New("failed to read uploaded image")
	}
	if len(data) == 0 {
		return errors.New("uploaded image is empty")
	}
	in.upload = data
	return nil
}

// RegisterRequest registers a face for a subject.
type RegisterRequest struct {
	SubjectID string `json:"subject_id"`
	UserID    string `json:"userId"`
	faceInput
}

func (req *RegisterRequest) fromForm(form *multipart.Form) error {
	req.SubjectID = formValue(form, "subject_id")
	req.UserID = formValue(form, "userId")
	return req.readForm(form)
}

// RecordResponse describes a stored enrollment.
type RecordResponse struct {
	ID        int64     `json:"id"`
	SubjectID string    `json:"subject_id"`
	CreatedAt time.Time `json:"created_at"`
}

// RegisterResponse is returned by Register
type RegisterResponse struct {
	Message         string         `json:"message"`
	Record          RecordResponse `json:"record"`
	ComparisonToken string         `json:"comparison_token,omitempty"`
	ExpiresAt       *time.Time     `json:"expires_at,omitempty"`
}

// VerifyRequest verifies a face against every enrollment.
type VerifyRequest struct {
	faceInput
	Threshold float64  `json:"threshold,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Policy    string   `json:"policy,omitempty"`
}

func (req *VerifyRequest) fromForm(form *multipart.Form) error {
	threshold, err := formFloat(form, "threshold")
	if err != nil {
		return err
	}
	if threshold != nil {
		req.Threshold = *threshold
	}
	if req.Latitude, err = formFloat(form, "latitude"); err != nil {
		return err
	}
	if req.Longitude, err = formFloat(form, "longitude"); err != nil {
		return err
	}
	req.Policy = formValue(form, "policy")
	return req.readForm(form)
}

// VerifyResponse is returned by Verify for every outcome.
type VerifyResponse struct {
	Message    string  `json:"message"`
	Outcome    string  `json:"outcome"`
	Similarity float64 `json:"similarity,omitempty"`
	MatchedID  string  `json:"matchedId,omitempty"`
	RecordID   int64   `json:"record_id,omitempty"`
	Scanned    int     `json:"scanned"`
	Skipped    int     `json:"skipped"`
}

// CompareRequest compares a face with the record behind a comparison token.
type CompareRequest struct {
	ComparisonToken string `json:"comparison_token"`
	faceInput
	Threshold float64 `json:"threshold,omitempty"`
}

func (req *CompareRequest) fromForm(form *multipart.Form) error {
	req.ComparisonToken = formValue(form, "comparison_token")
	threshold, err := formFloat(form, "threshold")
	if err != nil {
		return err
	}
	if threshold != nil {
		req.Threshold = *threshold
	}
	return req.readForm(form)
}

// CompareResponse is returned by Compare
type CompareResponse struct {
	Message    string  `json:"message"`
	Matched    bool    `json:"matched"`
	Similarity float64 `json:"similarity"`
	RecordID   int64   `json:"record_id"`
	SubjectID  string  `json:"subject_id"`
}

// SubjectStatusResponse reports whether a subject has enrolled faces.
type SubjectStatusResponse struct {
	SubjectID    string `json:"subject_id"`
	IsRegistered bool   `json:"is_registered"`
	FaceCount    int    `json:"face_count"`
}

var errNoFaceInput = errors.New("embedding or image is required")

// resolveEmbedding returns the request's embedding, running the extractor on
// the uploaded or base64 image when no embedding was sent.
func (h *FacesHandler) resolveEmbedding(ctx context.Context, in faceInput) (facematch.Embedding, error) {
	if in.Embedding != nil {
		return in.Embedding, nil
	}

	encoded := in.Image
	if encoded == "" {
		encoded = in.Base64Image
	}
	if encoded == "" && in.upload == nil {
		return nil, errNoFaceInput
	}
	if h.extractor == nil {
		return nil, fmt.Errorf("%w: image extraction is not configured", extractor.ErrUnavailable)
	}

	img := in.upload
	if img == nil {
		var err error
		if img, err = extractor.DecodeBase64Image(encoded); err != nil {
			return nil, err
		}
	}
	return h.extractor.Extract(ctx, img)
}

// respondFailure logs and maps err.
func (h *FacesHandler) respondFailure(w http.ResponseWriter, r *http.Request, op string, err error) {
	if errors.Is(err, errNoFaceInput) {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	status, message := statusForError(err)
	if status >= http.StatusInternalServerError {
		h.log.Error(r.Context(), op+" failed", "status", status, "error", err)
	} else {
		h.log.Info(r.Context(), op+" rejected", "status", status, "error", err)
	}
	respondError(w, status, message)
}

// round4 keeps four decimals, the precision clients display.
func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

// Register enrolls a face and issues a comparison token for the new record
func (h *FacesHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if status, err := decodeRequest(w, r, &req); err != nil {
		respondError(w, status, err.Error())
		return
	}

	subjectID := req.SubjectID
	if subjectID == "" {
		subjectID = req.UserID
	}
	if facematch.NormalizeSubjectID(subjectID) == "" {
		respondError(w, http.StatusBadRequest, "subject_id is required")
		return
	}

	embedding, err := h.resolveEmbedding(r.Context(), req.faceInput)
	if err != nil {
		h.respondFailure(w, r, "register", err)
		return
	}

	rec, err := h.engine.Register(r.Context(), subjectID, embedding)
	if err != nil {
		h.respondFailure(w, r, "register", err)
		return
	}

	resp := RegisterResponse{
		Message: "Face Registered successfully.",
		Record: RecordResponse{
			ID:        rec.ID,
			SubjectID: rec.SubjectID,
			CreatedAt: rec.CreatedAt,
		},
	}
	if h.comparisons != nil {
		token, pending := h.comparisons.Issue(rec.ID, rec.SubjectID)
		resp.ComparisonToken = token
		resp.ExpiresAt = &pending.ExpiresAt
	}

	respondJSON(w, http.StatusOK, resp)
}

// Verify matches a face against all enrollments
func (h *FacesHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if status, err := decodeRequest(w, r, &req); err != nil {
		respondError(w, status, err.Error())
		return
	}

	policy, ok := verification.ParsePolicy(req.Policy)
	if !ok {
		respondError(w, http.StatusBadRequest, "policy must be 'first' or 'best'")
		return
	}

	var location *facematch.LocationPoint
	switch {
	case req.Latitude != nil && req.Longitude != nil:
		location = &facematch.LocationPoint{Latitude: *req.Latitude, Longitude: *req.Longitude}
	case req.Latitude != nil || req.Longitude != nil:
		respondError(w, http.StatusBadRequest, "latitude and longitude must be sent together")
		return
	}

	embedding, err := h.resolveEmbedding(r.Context(), req.faceInput)
	if err != nil {
		h.respondFailure(w, r, "verify", err)
		return
	}

	result, err := h.engine.Verify(r.Context(), verification.VerifyRequest{
		Candidate: embedding,
		Threshold: req.Threshold,
		Location:  location,
		Policy:    policy,
	})
	if err != nil {
		h.respondFailure(w, r, "verify", err)
		return
	}

	resp := VerifyResponse{
		Outcome: string(result.Outcome),
		Scanned: result.Scanned,
		Skipped: result.Skipped,
	}

	switch result.Outcome {
	case verification.OutcomeMatched:
		resp.Message = "Face Matched"
		resp.Similarity = round4(result.Similarity)
		resp.MatchedID = result.SubjectID
		resp.RecordID = result.RecordID
		h.log.Info(r.Context(), "face verified",
			"subject_id", sanitizeForLog(result.SubjectID), "record_id", result.RecordID)
		respondJSON(w, http.StatusOK, resp)
	case verification.OutcomeOutOfRange:
		resp.Message = "You are outside the allowed location range"
		respondJSON(w, http.StatusAccepted, resp)
	case verification.OutcomeNoEnrollments:
		resp.Message = "No face registered in the system"
		respondJSON(w, http.StatusNotFound, resp)
	default:
		resp.Message = "Face not registered"
		respondJSON(w, http.StatusNotFound, resp)
	}
}

// Compare checks a new capture against the record registered with a token
func (h *FacesHandler) Compare(w http.ResponseWriter, r *http.Request) {
	var req CompareRequest
	if status, err := decodeRequest(w, r, &req); err != nil {
		respondError(w, status, err.Error())
		return
	}
	if req.ComparisonToken == "" {
		respondError(w, http.StatusBadRequest, "comparison_token is required")
		return
	}
	if h.comparisons == nil {
		respondError(w, http.StatusNotFound, "comparisons are disabled")
		return
	}

	pending, err := h.comparisons.Lookup(req.ComparisonToken)
	if err != nil {
		h.respondFailure(w, r, "compare", err)
		return
	}

	embedding, err := h.resolveEmbedding(r.Context(), req.faceInput)
	if err != nil {
		h.respondFailure(w, r, "compare", err)
		return
	}

	result, err := h.engine.Compare(r.Context(), pending.RecordID, embedding, req.Threshold)
	if err != nil {
		h.respondFailure(w, r, "compare", err)
		return
	}

	message := "Face Not Match!"
	if result.Matched {
		message = "Face Match!"
		// A confirmed registration cannot be replayed; a miss may retry.
		h.comparisons.Revoke(req.ComparisonToken)
	}
	respondJSON(w, http.StatusOK, CompareResponse{
		Message:    message,
		Matched:    result.Matched,
		Similarity: round4(result.Similarity),
		RecordID:   result.RecordID,
		SubjectID:  result.SubjectID,
	})
}

// SubjectStatus reports how many active faces a subject has
func (h *FacesHandler) SubjectStatus(w http.ResponseWriter, r *http.Request) {
	subjectID := facematch.NormalizeSubjectID(chi.URLParam(r, "subjectID"))
	if subjectID == "" {
		respondError(w, http.StatusBadRequest, "subject id is required")
		return
	}

	count, err := h.engine.Store().CountBySubject(r.Context(), subjectID)
	if err != nil {
		h.respondFailure(w, r, "subject status", err)
		return
	}

	respondJSON(w, http.StatusOK, SubjectStatusResponse{
		SubjectID:    subjectID,
		IsRegistered: count > 0,
		FaceCount:    count,
	})
}
