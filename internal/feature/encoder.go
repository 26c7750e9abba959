package feature

import (
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// FallbackCode is substituted for any category value the encoder has never
// seen. Unseen categories are not an error: a prediction for a new city must
// degrade, not abort.
const FallbackCode = 0

// LabelEncoder is a frozen category→integer mapping, fit once during
// training and read-only thereafter.
type LabelEncoder struct {
	Codes map[string]int
}

// Normalize canonicalizes a category value before fitting or lookup:
// NFKC normalization plus whitespace trimming, so byte-level Unicode
// variance in the serving input cannot defeat the frozen table.
func Normalize(s string) string {
	return strings.TrimSpace(norm.NFKC.String(s))
}

// FitEncoder builds an encoder from the training column. Codes are assigned
// in sorted category order, so the mapping is independent of row order.
func FitEncoder(values []string) *LabelEncoder {
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		seen[Normalize(v)] = struct{}{}
	}
	cats := make([]string, 0, len(seen))
	for v := range seen {
		cats = append(cats, v)
	}
	sort.Strings(cats)

	codes := make(map[string]int, len(cats))
	for i, v := range cats {
		codes[v] = i
	}
	return &LabelEncoder{Codes: codes}
}

// Code returns the integer code for a category value, or FallbackCode when
// the value was never seen during training. Never fails.
func (e *LabelEncoder) Code(value string) int {
	if e == nil || e.Codes == nil {
		return FallbackCode
	}
	if code, ok := e.Codes[Normalize(value)]; ok {
		return code
	}
	return FallbackCode
}

// Len returns the number of fitted categories.
func (e *LabelEncoder) Len() int {
	if e == nil {
		return 0
	}
	return len(e.Codes)
}
