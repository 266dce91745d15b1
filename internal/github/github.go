// Package github is a thin client for the GitHub REST contents API.
package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"github.com/seanblong/testgen/pkg/models"
)

const (
	DefaultBaseURL = "https://api.github.com"
	DefaultTimeout = 30 * time.Second
)

// ErrMissingToken is returned by NewClient when no token is configured.
var ErrMissingToken = errors.New("GitHub token is required. Please set GITHUB_TOKEN environment variable")

type Config struct {
	Token   string
	BaseURL string
	Timeout time.Duration
}

// APIError is a non-2xx answer from the GitHub API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("github api returned HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("github api returned HTTP %d: %s", e.StatusCode, e.Message)
}

type Client struct {
	config Config
	http   *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, ErrMissingToken
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		config: cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// contentEntry is one item of the contents API.
type contentEntry struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	Type     string `json:"type"`
	Size     int    `json:"size"`
	SHA      string `json:"sha"`
	URL      string `json:"url"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

// GetRepositoryInfo returns descriptive repository metadata.
func (c *Client) GetRepositoryInfo(ctx context.Context, owner, repo string) (models.RepositoryInfo, error) {
	var out struct {
		FullName      string  `json:"full_name"`
		Description   *string `json:"description"`
		DefaultBranch string  `json:"default_branch"`
	}
	if err := c.get(ctx, "/repos/"+escape(owner)+"/"+escape(repo), &out); err != nil {
		log.Error().Err(err).Str("repo", owner+"/"+repo).Msg("failed to get repository info")
		return models.RepositoryInfo{}, err
	}
	return models.RepositoryInfo{
		Owner:         owner,
		Name:          repo,
		FullName:      out.FullName,
		Description:   out.Description,
		DefaultBranch: out.DefaultBranch,
	}, nil
}

// GetFileTree lists path and descends into every directory. A directory that
// cannot be listed gets an empty child list instead of failing the tree.
func (c *Client) GetFileTree(ctx context.Context, owner, repo, path string) ([]models.FileNode, error) {
	entries, err := c.listContents(ctx, owner, repo, path)
	if err != nil {
		log.Error().Err(err).Str("repo", owner+"/"+repo).Str("path", path).Msg("failed to get file tree")
		return nil, err
	}

	nodes := make([]models.FileNode, 0, len(entries))
	for _, e := range entries {
		size := e.Size
		node := models.FileNode{
			Name: e.Name,
			Path: e.Path,
			Type: models.FileType(e.Type),
			Size: &size,
			SHA:  e.SHA,
			URL:  e.URL,
		}

		if node.Type == models.FileTypeDir {
			children, err := c.GetFileTree(ctx, owner, repo, e.Path)
			if err != nil {
				log.Warn().Err(err).Str("path", e.Path).Msg("failed to get contents for directory")
				children = []models.FileNode{}
			}
			node.Children = children
		}

		nodes = append(nodes, node)
	}
	return nodes, nil
}

// GetFileContent fetches one file, decoding base64 content.
func (c *Client) GetFileContent(ctx context.Context, owner, repo, path string) (models.FileContent, error) {
	var e contentEntry
	if err := c.get(ctx, contentsPath(owner, repo, path), &e); err != nil {
		log.Error().Err(err).Str("repo", owner+"/"+repo).Str("path", path).Msg("failed to get file content")
		return models.FileContent{}, err
	}
	if e.Type != "" && e.Type != string(models.FileTypeFile) {
		return models.FileContent{}, fmt.Errorf("%s is a %s, not a file", path, e.Type)
	}

	content := e.Content
	if e.Encoding == "base64" {
		b, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(e.Content, "\n", ""))
		if err != nil {
			return models.FileContent{}, fmt.Errorf("decode %s: %w", path, err)
		}
		if !utf8.Valid(b) {
			return models.FileContent{}, fmt.Errorf("decode %s: content is not valid UTF-8", path)
		}
		content = string(b)
	}

	return models.FileContent{
		Path:     e.Path,
		Content:  content,
		Encoding: e.Encoding,
		Size:     e.Size,
		SHA:      e.SHA,
	}, nil
}

// GetMultipleFileContents fetches paths in order. A path that fails is logged
// and skipped.
func (c *Client) GetMultipleFileContents(ctx context.Context, owner, repo string, paths []string) []models.FileContent {
	out := make([]models.FileContent, 0, len(paths))
	for _, p := range paths {
		fc, err := c.GetFileContent(ctx, owner, repo, p)
		if err != nil {
			log.Error().Err(err).Str("path", p).Msg("failed to get content, skipping")
			continue
		}
		out = append(out, fc)
	}
	return out
}

// TestConnection returns the login of the authenticated user.
func (c *Client) TestConnection(ctx context.Context) (string, error) {
	var u struct {
		Login string `json:"login"`
	}
	if err := c.get(ctx, "/user", &u); err != nil {
		log.Error().Err(err).Msg("GitHub connection failed")
		return "", err
	}
	log.Info().Str("login", u.Login).Msg("GitHub connection successful")
	return u.Login, nil
}

// listContents accepts both the directory (array) and the single-file
// (object) shapes of the contents API.
func (c *Client) listContents(ctx context.Context, owner, repo, path string) ([]contentEntry, error) {
	var raw json.RawMessage
	if err := c.get(ctx, contentsPath(owner, repo, path), &raw); err != nil {
		return nil, err
	}

	var entries []contentEntry
	if err := json.Unmarshal(raw, &entries); err == nil {
		return entries, nil
	}
	var single contentEntry
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, fmt.Errorf("decode contents of %q: %w", path, err)
	}
	return []contentEntry{single}, nil
}

func (c *Client) get(ctx context.Context, path string, into any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(c.config.BaseURL, "/")+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.config.Token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close response body")
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e struct {
			Message string `json:"message"`
		}
		b, _ := io.ReadAll(resp.Body)
		_ = json.Unmarshal(b, &e)
		return &APIError{StatusCode: resp.StatusCode, Message: e.Message}
	}

	return json.NewDecoder(resp.Body).Decode(into)
}

func contentsPath(owner, repo, path string) string {
	p := "/repos/" + escape(owner) + "/" + escape(repo) + "/contents"
	path = strings.Trim(path, "/")
	if path == "" {
		return p
	}
	segs := strings.Split(path, "/")
	for i, s := range segs {
		segs[i] = escape(s)
	}
	return p + "/" + strings.Join(segs, "/")
}

func escape(s string) string { return url.PathEscape(s) }
