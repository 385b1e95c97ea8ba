package facematch

import (
	"strings"

	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeSubjectID trims whitespace and composes the identifier to NFC so that
// visually identical ids typed on different devices map to the same subject.
func NormalizeSubjectID(id string) string {
	id = strings.TrimSpace(id)
	result, _, err := transform.String(norm.NFC, id)
	if err != nil {
		return id
	}
	return result
}
