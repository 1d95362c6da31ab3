package canonical

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/custodia-labs/gitpulse/internal/core/domain"
)

// ComputeContentHash returns the deterministic digest over the
// essential content of a canonical event.
//
// The payload is serialized as a JSON object with sorted keys
// (encoding/json sorts map keys) so that incidental field ordering can
// never change the digest, then hashed with SHA-256 to a fixed-length
// lowercase hex string. Any change to the text, URL, or a metric
// changes the hash.
func ComputeContentHash(canonicalText, sourceURL string, metrics domain.EventMetrics) string {
	payload := map[string]any{
		"canonicalText": canonicalText,
		"sourceUrl":     sourceURL,
		"metrics": map[string]any{
			"additions":    metrics.Additions,
			"deletions":    metrics.Deletions,
			"filesChanged": metrics.FilesChanged,
		},
	}

	// Marshal of map[string]any with string/int leaves cannot fail.
	data, _ := json.Marshal(payload)

	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
