package invoice

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"
)

const (
	shortTrackingCodeLen = 10
	trackingSuffixBase   = 1000
	trackingSuffixSpan   = 8000

	// maxTrackingAttempts bounds regeneration after a generated code collides.
	maxTrackingAttempts = 5
)

// TrackingCodes expands short user supplied tracking codes into
// <PREFIX>-<YYYYMMDD>-<NNNN>.
type TrackingCodes struct {
	fallbackPrefix string
	intn           func(n int) int
}

// NewTrackingCodes returns a generator using fallbackPrefix when the caller
// supplies no code at all.
func NewTrackingCodes(fallbackPrefix string) *TrackingCodes {
	return &TrackingCodes{fallbackPrefix: fallbackPrefix, intn: rand.IntN}
}

// Generates reports whether Ensure replaces code with a generated one.
func (g *TrackingCodes) Generates(code string) bool {
	return len(strings.TrimSpace(code)) <= shortTrackingCodeLen
}

// Ensure returns code unchanged when it is longer than ten characters and a
// generated code otherwise.
func (g *TrackingCodes) Ensure(code string, invoiceDate time.Time) string {
	if !g.Generates(code) {
		return strings.TrimSpace(code)
	}
	code = strings.TrimSpace(code)
	prefix := strings.Trim(code, "-")
	if prefix == "" {
		prefix = g.fallbackPrefix
	}
	if prefix == "" {
		prefix = "INV"
	}
	suffix := trackingSuffixBase + g.intn(trackingSuffixSpan)
	return fmt.Sprintf("%s-%s-%04d", strings.ToUpper(prefix), invoiceDate.Format("20060102"), suffix)
}
