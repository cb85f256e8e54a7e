package ingest

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// normalize cleans one content part: lowercased, trimmed, line endings
// unified.
func normalize(part string) string {
	p := strings.ToLower(part)
	p = strings.TrimSpace(p)
	p = strings.ReplaceAll(p, "\r\n", "\n")
	return p
}

// Fingerprint returns a stable SHA-256 hex digest of the entry's question
// and answer. The difficulty tag is excluded so retagging a card in a
// source file keeps its identity and scheduling history.
func Fingerprint(e Entry) string {
	// Parts are joined with a newline so adjacent fields cannot run
	// together and collide, e.g. "question"+"answer" vs "questionanswer".
	normalized := strings.Join([]string{normalize(e.Question), normalize(e.Answer)}, "\n")
	return fmt.Sprintf("%x", sha256.Sum256([]byte(normalized)))
}
