package models

import "time"

// FileType is the kind of a repository tree entry.
type FileType string

const (
	FileTypeFile      FileType = "file"
	FileTypeDir       FileType = "dir"
	FileTypeSymlink   FileType = "symlink"
	FileTypeSubmodule FileType = "submodule"
)

type FileContent struct {
	Path     string `json:"path"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
	Size     int    `json:"size"`
	SHA      string `json:"sha"`
}

type FileNode struct {
	Name     string     `json:"name"`
	Path     string     `json:"path"`
	Type     FileType   `json:"type"`
	Size     *int       `json:"size"`
	SHA      string     `json:"sha"`
	URL      string     `json:"url"`
	Children []FileNode `json:"children"`
}

type RepositoryInfo struct {
	Owner         string  `json:"owner"`
	Name          string  `json:"name"`
	FullName      string  `json:"full_name"`
	Description   *string `json:"description"`
	DefaultBranch string  `json:"default_branch"`
}

type TestSummary struct {
	ID      int    `json:"id"`
	Summary string `json:"summary"`
}

type FileTreeResponse struct {
	Repository RepositoryInfo `json:"repository"`
	Files      []FileNode     `json:"files"`
	TotalCount int            `json:"total_count"`
}

type FileContentRequest struct {
	Owner     string   `json:"owner"`
	Repo      string   `json:"repo"`
	FilePaths []string `json:"file_paths"`
}

type FileContentResponse struct {
	Files      []FileContent `json:"files"`
	TotalCount int           `json:"total_count"`
}

type GenerateTestRequest struct {
	FileName    string `json:"file_name"`
	FileContent string `json:"file_content"`
	Scenario    string `json:"scenario"`
}

type GenerateTestResponse struct {
	Code     string `json:"code"`
	FileName string `json:"file_name"`
	Scenario string `json:"scenario"`
}

type ErrorResponse struct {
	Error      string `json:"error"`
	Detail     string `json:"detail,omitempty"`
	StatusCode int    `json:"status_code"`
}

// Framework describes a testing framework the generator can target.
type Framework struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Language    string `json:"language"`
}

// Generation is one recorded LLM generation.
type Generation struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Provider  string    `json:"provider"`
	Model     string    `json:"model"`
	Framework string    `json:"framework"`
	Input     string    `json:"input"`
	Output    string    `json:"output"`
	CreatedAt time.Time `json:"created_at"`
}
