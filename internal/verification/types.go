package verification

import "github.com/kozaktomas/face-gate/internal/facematch"

// Policy selects how Verify picks among qualifying records.
type Policy string

const (
	// PolicyFirstMatch stops at the first record above the threshold, in store order.
	PolicyFirstMatch Policy = "first"
	// PolicyBestMatch scans everything and keeps the highest scoring record.
	PolicyBestMatch Policy = "best"
)

// ParsePolicy accepts "first", "best" or an empty string (engine default).
func ParsePolicy(s string) (Policy, bool) {
	switch Policy(s) {
	case "":
		return "", true
	case PolicyFirstMatch, PolicyBestMatch:
		return Policy(s), true
	default:
		return "", false
	}
}

// Outcome is the decision of a verification call.
type Outcome string

const (
	OutcomeMatched       Outcome = "matched"
	OutcomeNoMatch       Outcome = "no_match"
	OutcomeNoEnrollments Outcome = "no_enrollments"
	OutcomeOutOfRange    Outcome = "out_of_range"
)

// VerifyRequest is the input of Engine.Verify.
type VerifyRequest struct {
	Candidate facematch.Embedding
	// Threshold 0 selects the engine default.
	Threshold float64
	// Location is required when the geofence is enabled.
	Location *facematch.LocationPoint
	// Policy "" selects the engine default.
	Policy Policy
}

// MatchResult reports the outcome together with scan statistics.
type MatchResult struct {
	Outcome    Outcome
	SubjectID  string
	RecordID   int64
	Similarity float64
	// Scanned counts records that were decoded and scored.
	Scanned int
	// Skipped counts records dropped because their stored embedding was unusable.
	Skipped int
}

// Matched reports whether the outcome is OutcomeMatched.
func (r *MatchResult) Matched() bool {
	return r != nil && r.Outcome == OutcomeMatched
}

// CompareResult is the output of Engine.Compare.
type CompareResult struct {
	Matched    bool
	Similarity float64
	RecordID   int64
	SubjectID  string
}
