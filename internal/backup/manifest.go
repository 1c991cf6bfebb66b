package backup

import "time"

// FormatVersion is the backup format version. Increment major on breaking changes.
const FormatVersion = "1.0"

// manifestPath is the archive entry holding the Manifest.
const manifestPath = "manifest.json"

// Manifest describes backup contents and metadata.
type Manifest struct {
	Version   string    `json:"version"`
	CreatedAt time.Time `json:"createdAt"`

	// Documents per collection, for validation and progress reporting.
	Counts map[string]int `json:"counts"`
}

// collectionPath is the archive entry holding one collection's documents.
func collectionPath(collection string) string {
	return "collections/" + collection + ".jsonl"
}
