package tool

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const maxReadBytes = 256 * 1024

// ReadFile reads a file inside the workspace.
type ReadFile struct {
	Workspace string
}

func (t *ReadFile) Name() string { return "read_file" }

func (t *ReadFile) Description() string {
	return "Read a text file from the workspace. Returns up to 256KB of content."
}

func (t *ReadFile) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "Path relative to the workspace root",
			},
		},
		"required": []any{"path"},
	}
}

func (t *ReadFile) Execute(ctx context.Context, args map[string]any) (string, error) {
	path, err := resolveWorkspacePath(t.Workspace, stringArg(args, "path"))
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", stringArg(args, "path"), err)
	}
	if len(data) > maxReadBytes {
		data = data[:maxReadBytes]
	}
	return string(data), nil
}

// WriteFile writes a file inside the workspace, creating parent directories.
type WriteFile struct {
	Workspace string
}

func (t *WriteFile) Name() string { return "write_file" }

func (t *WriteFile) Description() string {
	return "Write content to a file in the workspace, creating directories as needed. Overwrites existing files."
}

func (t *WriteFile) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "Path relative to the workspace root",
			},
			"content": map[string]any{
				"type":        "string",
				"description": "Full file content",
			},
		},
		"required": []any{"path", "content"},
	}
}

func (t *WriteFile) Execute(ctx context.Context, args map[string]any) (string, error) {
	rel := stringArg(args, "path")
	path, err := resolveWorkspacePath(t.Workspace, rel)
	if err != nil {
		return "", err
	}
	content := stringArg(args, "content")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("write %s: %w", rel, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", rel, err)
	}
	return fmt.Sprintf("wrote %d bytes to %s", len(content), rel), nil
}

// ListFiles lists a workspace directory non-recursively.
type ListFiles struct {
	Workspace string
}

func (t *ListFiles) Name() string { return "list_files" }

func (t *ListFiles) Description() string {
	return "List files and directories at a workspace path. Directories end with a slash."
}

func (t *ListFiles) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "Directory relative to the workspace root; defaults to the root",
			},
		},
		"required": []any{},
	}
}

func (t *ListFiles) Execute(ctx context.Context, args map[string]any) (string, error) {
	rel := stringArg(args, "path")
	if rel == "" {
		rel = "."
	}
	path, err := resolveWorkspacePath(t.Workspace, rel)
	if err != nil {
		return "", err
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return "", fmt.Errorf("list %s: %w", rel, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) == 0 {
		return "(empty directory)", nil
	}
	return strings.Join(names, "\n"), nil
}

// resolveWorkspacePath joins rel onto root and rejects escapes above the
// workspace.
func resolveWorkspacePath(root, rel string) (string, error) {
	if root == "" {
		root = "."
	}
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("absolute paths are not allowed: %s", rel)
	}
	clean := filepath.Clean(rel)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes the workspace: %s", rel)
	}
	return filepath.Join(root, clean), nil
}
