// fingerprint.go generates stable hashes for grouping similar events.

package gatey

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// fingerprintFrames is the number of innermost frames that identify an exception.
const fingerprintFrames = 3

// Fingerprint returns a hash for grouping similar events.
//
// Exceptions are grouped by class and the innermost three frames (module and
// function only), ignoring descriptions, line numbers, and variables. Message
// events are grouped by level and message.
func Fingerprint(event Event) string {
	var parts []string
	if exc := event.Exception; exc != nil {
		parts = append(parts, "exception", exc.Class)
		for i := len(exc.Traceback) - 1; i >= 0 && len(parts) < 2+fingerprintFrames; i-- {
			f := exc.Traceback[i]
			parts = append(parts, f.Module+"."+f.Name)
		}
	} else {
		parts = append(parts, "message", event.Level, event.Message)
	}

	hash := sha256.Sum256([]byte(strings.Join(parts, "|")))

	// Return hex-encoded first 16 bytes (32 hex chars)
	return hex.EncodeToString(hash[:16])
}
