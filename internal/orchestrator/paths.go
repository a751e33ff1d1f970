package orchestrator

import (
	"fmt"
	"math/rand"
	"path/filepath"
	"strings"
	"time"

	"lampbench/internal/config"
)

var runIDReplacer = strings.NewReplacer(":", "-", ".", "-")

// NewRunID derives a filesystem-safe run id from t, e.g.
// 2025-03-01T12-30-45-123Z.
func NewRunID(t time.Time) string {
	return runIDReplacer.Replace(Timestamp(t))
}

// Timestamp formats t as UTC with millisecond precision.
func Timestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

// RawRoot is the directory holding every phase artifact of a run.
func RawRoot(resultsDir, runID string) string {
	return filepath.Join(resultsDir, "raw", runID)
}

// IterationDir is where one iteration's phase artifacts are written.
func IterationDir(rawRoot string, pass config.PassKind, service string, iteration int) string {
	return filepath.Join(rawRoot, string(pass), service, fmt.Sprintf("iter-%d", iteration))
}

// shuffle returns a Fisher-Yates permutation of services, leaving the input
// untouched.
func shuffle(services []config.ServiceDescriptor, rng *rand.Rand) []config.ServiceDescriptor {
	out := append([]config.ServiceDescriptor(nil), services...)
	for i := len(out) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}
