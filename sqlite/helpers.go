package sqlite

import (
	"fmt"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/fwojciec/docindex"
)

// parseRFC3339 parses an RFC3339 formatted timestamp string.
// Returns an error if parsing fails with a descriptive message including the field name.
func parseRFC3339(value, fieldName string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse %s: %w", fieldName, err)
	}
	return t, nil
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// hashChunks returns the xxHash of a page's chunk contents as hex.
func hashChunks(chunks []docindex.Chunk) string {
	h := xxhash.New()
	for _, c := range chunks {
		_, _ = h.WriteString(c.Content)
		_, _ = h.Write([]byte{0})
	}
	return fmt.Sprintf("%016x", h.Sum64())
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func normalizeLibrary(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
