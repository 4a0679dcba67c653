// Package artifact defines the Artifact domain entity, a deliverable
// (text, code, data, or file) produced while executing a task.
package artifact

import (
	"path/filepath"
	"strings"
	"time"
)

// Artifact type constants.
const (
	TypeText = "text"
	TypeCode = "code"
	TypeData = "data"
	TypeFile = "file"
)

// Artifact represents a deliverable produced by an agent. Artifacts are
// immutable once created.
type Artifact struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"task_id"`
	AgentID   string    `json:"agent_id"`
	Name      string    `json:"name"`
	Content   string    `json:"content"` // text, or a path reference for files
	Type      string    `json:"artifact_type"`
	CreatedAt time.Time `json:"created_at"`
}

var codeExts = map[string]bool{
	".py": true, ".js": true, ".ts": true, ".jsx": true, ".tsx": true,
	".java": true, ".c": true, ".cpp": true, ".go": true, ".rs": true,
	".rb": true, ".sh": true, ".html": true, ".css": true,
}

var dataExts = map[string]bool{
	".json": true, ".csv": true, ".xml": true, ".yaml": true, ".yml": true,
	".toml": true, ".sql": true, ".tsv": true,
}

// TypeForPath maps a file extension to an artifact type.
func TypeForPath(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case codeExts[ext]:
		return TypeCode
	case dataExts[ext]:
		return TypeData
	default:
		return TypeFile
	}
}
