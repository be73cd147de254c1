// Package snapshot persists a loaded corpus as a manifest plus a JSON Lines
// file so it can be reloaded without re-parsing the Markdown sources.
package snapshot

import "github.com/kamusis/skillbase/internal/corpus"

const (
	// FormatVersion is written to every manifest; Load rejects other versions.
	FormatVersion = 1

	ManifestFile         = "snapshot_manifest.json"
	DefaultDocumentsFile = "documents.jsonl"
)

// Manifest describes a snapshot and how to interpret it.
type Manifest struct {
	Version        int      `json:"snapshot_version"`
	CreatedAt      string   `json:"created_at"`
	Roots          []string `json:"roots"`
	DocumentCount  int      `json:"document_count"`
	CorpusChecksum string   `json:"corpus_checksum"`
	DocumentsFile  string   `json:"documents_file"`
}

// Snapshot is a loaded snapshot.
type Snapshot struct {
	Manifest Manifest
	Store    *corpus.Store
}
