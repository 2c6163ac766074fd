package globussync

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/gestaofrota/globus_backend/utils"
)

// Fingerprint computes the content hash used for change detection.
// Only payload fields participate; sync metadata and audit columns do
// not. The digest is stable across runs because the canonical form
// fixes field order and the mappers have already normalized values
// (trimmed strings, fixed decimal precision, empty treated as null and
// therefore absent from the payload).
func Fingerprint(rec LegacyRecord) (string, error) {
	if strings.TrimSpace(rec.Identity) == "" {
		return "", utils.ErrInvalidRecord
	}
	sum := sha256.Sum256([]byte(CanonicalPayload(rec.Payload)))
	return hex.EncodeToString(sum[:]), nil
}

// CanonicalPayload serializes a payload map deterministically: keys
// sorted, one "key=value" per line. Values must already be normalized
// by the mapper; this function intentionally does not re-trim.
func CanonicalPayload(payload map[string]string) string {
	if len(payload) == 0 {
		return ""
	}
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(payload[k])
		b.WriteByte('\n')
	}
	return b.String()
}
