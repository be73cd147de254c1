package snapshot

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kamusis/skillbase/internal/corpus"
)

// Write writes snapshot artifacts for docs to dir. Missing manifest fields
// are filled in from docs.
func Write(dir string, manifest Manifest, docs []corpus.Document) error {
	if manifest.Version == 0 {
		manifest.Version = FormatVersion
	}
	if manifest.DocumentsFile == "" {
		manifest.DocumentsFile = DefaultDocumentsFile
	}
	if manifest.CreatedAt == "" {
		manifest.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	manifest.DocumentCount = len(docs)
	manifest.CorpusChecksum = CorpusChecksum(docs)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create snapshot dir %s: %w", dir, err)
	}

	// manifest
	mb, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestFile), mb, 0o644); err != nil {
		return fmt.Errorf("cannot write manifest: %w", err)
	}

	// documents jsonl
	df, err := os.Create(filepath.Join(dir, manifest.DocumentsFile))
	if err != nil {
		return fmt.Errorf("cannot create documents file: %w", err)
	}
	bw := bufio.NewWriter(df)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	for _, d := range docs {
		// Encode terminates each value with a newline.
		if err := enc.Encode(d); err != nil {
			_ = df.Close()
			return fmt.Errorf("cannot encode document %s: %w", d.ID, err)
		}
	}
	if err := bw.Flush(); err != nil {
		_ = df.Close()
		return err
	}
	return df.Close()
}
