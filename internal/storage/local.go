package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Workspace subdirectories of a session.
const (
	DirUpload   = "upload"
	DirSplit    = "split"
	DirCloned   = "cloned"
	DirMerge    = "merge"
	DirSubtitle = "subtitle"
	DirJSON     = "json"
)

var workspaceDirs = []string{DirUpload, DirSplit, DirCloned, DirMerge, DirSubtitle, DirJSON}

// LocalStorage lays out per-session workspaces under one output directory:
// <output>/<session>/{upload,split,cloned,merge,subtitle,json}.
type LocalStorage struct {
	outputDir string
}

// NewLocalStorage creates a new local storage handler
func NewLocalStorage(outputDir string) *LocalStorage {
	return &LocalStorage{
		outputDir: outputDir,
	}
}

// Root returns the output directory.
func (ls *LocalStorage) Root() string {
	return ls.outputDir
}

// SessionDir returns the workspace root of a session.
func (ls *LocalStorage) SessionDir(sessionID string) string {
	return filepath.Join(ls.outputDir, sanitizeFilename(sessionID))
}

// Dir returns one workspace subdirectory of a session.
func (ls *LocalStorage) Dir(sessionID, sub string) string {
	return filepath.Join(ls.SessionDir(sessionID), sub)
}

// CreateWorkspace creates every subdirectory of a session workspace.
func (ls *LocalStorage) CreateWorkspace(sessionID string) (string, error) {
	for _, sub := range workspaceDirs {
		if err := os.MkdirAll(ls.Dir(sessionID, sub), 0755); err != nil {
			return "", fmt.Errorf("failed to create workspace directory: %v", err)
		}
	}
	return ls.SessionDir(sessionID), nil
}

// RemoveWorkspace deletes a session workspace and everything in it.
func (ls *LocalStorage) RemoveWorkspace(sessionID string) error {
	dir := ls.SessionDir(sessionID)
	if dir == filepath.Clean(ls.outputDir) {
		return fmt.Errorf("refusing to remove output root")
	}
	return os.RemoveAll(dir)
}

// SaveJSON writes v as indented JSON into the session's json directory and
// returns the file path.
func (ls *LocalStorage) SaveJSON(sessionID, name string, v any) (string, error) {
	path := filepath.Join(ls.Dir(sessionID, DirJSON), sanitizeFilename(name))
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s: %v", name, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create json directory: %v", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to save %s: %v", name, err)
	}
	return path, nil
}

// UploadPath returns where an uploaded file with the given client-supplied
// name is stored.
func (ls *LocalStorage) UploadPath(sessionID, filename string) string {
	return filepath.Join(ls.Dir(sessionID, DirUpload), sanitizeFilename(filename))
}

// sanitizeFilename strips path components and characters that are invalid
// in file names, and limits the length.
func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	result := strings.Map(func(r rune) rune {
		switch r {
		case ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, name)
	if result == "." || result == ".." || result == "/" {
		result = "_"
	}
	if len(result) > 100 {
		result = result[:100]
	}
	return result
}
