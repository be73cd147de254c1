package snapshot

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/kamusis/skillbase/internal/corpus"
)

// CorpusChecksum hashes the ids and content checksums of docs in order. Two
// stores with the same checksum hold the same files in the same order.
func CorpusChecksum(docs []corpus.Document) string {
	h := sha256.New()
	for _, d := range docs {
		h.Write([]byte(d.ID))
		h.Write([]byte{0})
		h.Write([]byte(d.Checksum))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}
