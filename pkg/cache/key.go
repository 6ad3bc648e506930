package cache

import (
	"strings"
)

const (
	// KeyPrefix is the namespace shared by all preview cache keys.
	KeyPrefix = "nyi:preview"

	// DefaultSchemaVersion is the cache schema tag used when none is configured.
	DefaultSchemaVersion = "v1"
)

// Key identifies one cached preview.
type Key struct {
	// SchemaVersion is the cache schema tag (e.g., "v1")
	SchemaVersion string

	// StyleID is the work item identifier
	StyleID string
}

// KeyFor derives the cache key for a style id under a schema version.
// An empty schema version falls back to DefaultSchemaVersion.
func KeyFor(schemaVersion, styleID string) Key {
	schemaVersion = strings.TrimSpace(schemaVersion)
	if schemaVersion == "" {
		schemaVersion = DefaultSchemaVersion
	}
	return Key{
		SchemaVersion: schemaVersion,
		StyleID:       strings.TrimSpace(styleID),
	}
}

// String generates the deterministic key string.
// Format: nyi:preview:<schema>:<style id>
//
// Example:
//
//	nyi:preview:v1:261
func (k Key) String() string {
	return strings.Join([]string{KeyPrefix, k.SchemaVersion, k.StyleID}, ":")
}

// Pattern returns the SCAN pattern matching every key of a schema version.
// An empty schema version matches all schema versions.
func Pattern(schemaVersion string) string {
	if schemaVersion == "" {
		return KeyPrefix + ":*"
	}
	return KeyPrefix + ":" + schemaVersion + ":*"
}
