package domain

import (
	"strings"

	"github.com/google/uuid"
)

// NewID returns a short 12-character hex identifier. Short IDs keep task
// and artifact references readable in logs and LLM transcripts.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
