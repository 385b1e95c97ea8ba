// Package verification decides whether a presented face embedding belongs to
// an enrolled subject.
package verification

import (
	"errors"
	"fmt"
	"math"

	"github.com/kozaktomas/face-gate/internal/database"
	"github.com/kozaktomas/face-gate/internal/facematch"
	"github.com/kozaktomas/face-gate/internal/logging"
)

const (
	DefaultEmbeddingDim     = 128
	DefaultVerifyThreshold  = 0.95
	DefaultCompareThreshold = 0.8
	DefaultGeofenceRadius   = 15.0

	// indexCandidates is how many neighbours best-match asks the index for.
	indexCandidates = 10
)

// Options configures an Engine. Zero values select the defaults above.
type Options struct {
	EmbeddingDim     int
	VerifyThreshold  float64
	CompareThreshold float64
	Policy           Policy

	GeofenceEnabled      bool
	GeofenceRadiusMeters float64
	// Locations is required when GeofenceEnabled is set.
	Locations database.LocationReader

	// Index, when set, proposes best-match candidates and receives new enrollments.
	// Its proposals are approximate; active records it does not hold are
	// always scored as well.
	Index *database.EnrollmentIndex
	// Nearest is used for best-match candidates when no index is attached.
	Nearest database.NearestSearcher

	Logger logging.Logger
}

// Engine enrolls and verifies embeddings against a store. It holds no
// per-request state and is safe for concurrent use.
type Engine struct {
	store database.EnrollmentWriter

	dim              int
	verifyThreshold  float64
	compareThreshold float64
	policy           Policy

	geofence  bool
	radius    float64
	locations database.LocationReader
	index     *database.EnrollmentIndex
	nearest   database.NearestSearcher

	log logging.Logger
}

// NewEngine creates an engine over store.
func NewEngine(store database.EnrollmentWriter, opts Options) (*Engine, error) {
	if store == nil {
		return nil, errors.New("enrollment store is required")
	}
	if opts.GeofenceEnabled && opts.Locations == nil {
		return nil, errors.New("geofence enabled without a location source")
	}

	e := &Engine{
		store:            store,
		dim:              opts.EmbeddingDim,
		verifyThreshold:  opts.VerifyThreshold,
		compareThreshold: opts.CompareThreshold,
		policy:           opts.Policy,
		geofence:         opts.GeofenceEnabled,
		radius:           opts.GeofenceRadiusMeters,
		locations:        opts.Locations,
		index:            opts.Index,
		nearest:          opts.Nearest,
		log:              opts.Logger,
	}
	if e.dim <= 0 {
		e.dim = DefaultEmbeddingDim
	}
	if e.verifyThreshold == 0 {
		e.verifyThreshold = DefaultVerifyThreshold
	}
	if e.compareThreshold == 0 {
		e.compareThreshold = DefaultCompareThreshold
	}
	if e.policy == "" {
		e.policy = PolicyFirstMatch
	}
	if e.radius == 0 {
		e.radius = DefaultGeofenceRadius
	}
	if e.log == nil {
		e.log = logging.Nop()
	}

	if err := checkThreshold(e.verifyThreshold); err != nil {
		return nil, err
	}
	if err := checkThreshold(e.compareThreshold); err != nil {
		return nil, err
	}
	if _, ok := ParsePolicy(string(e.policy)); !ok {
		return nil, fmt.Errorf("%w: unknown policy %q", ErrInvalidInput, e.policy)
	}
	if e.radius < 0 {
		return nil, fmt.Errorf("%w: negative geofence radius", ErrInvalidInput)
	}
	return e, nil
}

// EmbeddingDim returns the configured embedding length.
func (e *Engine) EmbeddingDim() int {
	return e.dim
}

// Store returns the store the engine reads from.
func (e *Engine) Store() database.EnrollmentWriter {
	return e.store
}

func checkThreshold(t float64) error {
	if math.IsNaN(t) || t < -1 || t > 1 {
		return fmt.Errorf("%w: threshold %v outside [-1, 1]", ErrInvalidInput, t)
	}
	return nil
}

// resolveThreshold maps 0 to def and rejects values outside [-1, 1].
func resolveThreshold(t, def float64) (float64, error) {
	if t == 0 {
		return def, nil
	}
	if err := checkThreshold(t); err != nil {
		return 0, err
	}
	return t, nil
}

// checkCandidate rejects embeddings the scorer could not use.
func (e *Engine) checkCandidate(candidate facematch.Embedding) error {
	if candidate == nil {
		return fmt.Errorf("%w: no embedding (no face detected)", ErrInvalidInput)
	}
	if err := candidate.Validate(e.dim); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return nil
}
