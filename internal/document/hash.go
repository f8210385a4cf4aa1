package document

import (
	"crypto/sha256"
	"encoding/hex"
)

// ComputeContentHash computes a stable sha256 hash of document content. The
// hex digest keys the page-text cache so identical bytes never re-run OCR.
func ComputeContentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
