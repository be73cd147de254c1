package snapshot

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kamusis/skillbase/internal/corpus"
)

const maxLineBytes = 64 << 20

// LoadManifest reads only the manifest of the snapshot in dir.
func LoadManifest(dir string) (Manifest, error) {
	manifestPath := filepath.Join(dir, ManifestFile)
	b, err := os.ReadFile(manifestPath)
	if err != nil {
		return Manifest{}, fmt.Errorf("cannot read manifest %s: %w", manifestPath, err)
	}
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return Manifest{}, fmt.Errorf("invalid manifest JSON %s: %w", manifestPath, err)
	}
	if m.Version != FormatVersion {
		return Manifest{}, fmt.Errorf("unsupported snapshot version %d (want %d)", m.Version, FormatVersion)
	}
	if m.DocumentsFile == "" {
		m.DocumentsFile = DefaultDocumentsFile
	}
	return m, nil
}

// Load reads the snapshot in dir and rebuilds its store. The documents must
// match the manifest's count and corpus checksum.
func Load(dir string) (*Snapshot, error) {
	m, err := LoadManifest(dir)
	if err != nil {
		return nil, err
	}
	docs, err := loadDocuments(filepath.Join(dir, m.DocumentsFile))
	if err != nil {
		return nil, err
	}
	if len(docs) != m.DocumentCount {
		return nil, fmt.Errorf("snapshot %s holds %d documents, manifest says %d", dir, len(docs), m.DocumentCount)
	}
	if sum := CorpusChecksum(docs); sum != m.CorpusChecksum {
		return nil, fmt.Errorf("snapshot %s is corrupt: checksum %s, manifest says %s", dir, sum, m.CorpusChecksum)
	}
	store, err := corpus.NewStore(docs)
	if err != nil {
		return nil, fmt.Errorf("invalid snapshot %s: %w", dir, err)
	}
	return &Snapshot{Manifest: m, Store: store}, nil
}

// Fresh reports whether the snapshot in dir was built from the same files
// as store. A missing snapshot is not fresh and not an error.
func Fresh(dir string, store *corpus.Store) (bool, error) {
	m, err := LoadManifest(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return m.DocumentCount == store.Len() && m.CorpusChecksum == CorpusChecksum(store.List()), nil
}

func loadDocuments(path string) ([]corpus.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open documents file %s: %w", path, err)
	}
	defer f.Close()

	var out []corpus.Document
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var d corpus.Document
		if err := json.Unmarshal(line, &d); err != nil {
			return nil, fmt.Errorf("invalid documents JSONL %s: %w", path, err)
		}
		out = append(out, d)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("cannot read documents file %s: %w", path, err)
	}
	return out, nil
}
