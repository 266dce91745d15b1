package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/hlog"
	"github.com/seanblong/testgen/internal/generator"
	"github.com/seanblong/testgen/internal/store"
	"github.com/seanblong/testgen/pkg/models"
)

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{
		"app":     AppName,
		"version": AppVersion,
		"status":  "running",
		"health":  Prefix + "/repos/health",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "healthy", "service": AppName})
}

func (s *Server) handleAIHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "healthy", "service": "AI Test Case Generator"})
}

func (s *Server) handleReposHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "healthy", "service": "GitHub API"})
}

// service returns the generator, or writes a 500 and returns nil when the AI
// client could not be built.
func (s *Server) service(w http.ResponseWriter, r *http.Request) *generator.Service {
	if s.gen == nil {
		writeError(w, r, http.StatusInternalServerError, s.genErr.Error(), nil)
		return nil
	}
	return s.gen
}

func (s *Server) reposClient(w http.ResponseWriter, r *http.Request) Repos {
	if s.repos == nil {
		writeError(w, r, http.StatusInternalServerError, s.repErr.Error(), nil)
		return nil
	}
	return s.repos
}

func (s *Server) handleSummarizeWithoutContent(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusBadRequest,
		"This endpoint requires file contents. Use /summarize-tests-with-content instead.", nil)
}

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	var files []models.FileContent
	if err := decode(w, r, &files); err != nil {
		badBody(w, r, err)
		return
	}
	if len(files) == 0 {
		writeError(w, r, http.StatusBadRequest, "No file contents provided", nil)
		return
	}
	gen := s.service(w, r)
	if gen == nil {
		return
	}

	framework := frameworkParam(r)
	summaries, err := gen.Summarize(r.Context(), files, framework)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("error generating test case summaries")
		writeError(w, r, http.StatusInternalServerError, "Failed to generate test case summaries", err)
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]any{
		"summaries":      summaries,
		"framework":      framework,
		"total_count":    len(summaries),
		"files_analyzed": len(files),
	})
}

func (s *Server) handleGenerateCode(w http.ResponseWriter, r *http.Request) {
	summary := strings.TrimSpace(r.URL.Query().Get("summary"))
	if summary == "" {
		writeError(w, r, http.StatusBadRequest, "Test case summary is required", nil)
		return
	}
	var file models.FileContent
	if err := decode(w, r, &file); err != nil {
		badBody(w, r, err)
		return
	}
	gen := s.service(w, r)
	if gen == nil {
		return
	}

	framework := frameworkParam(r)
	code, err := gen.GenerateCode(r.Context(), file, summary, framework)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Str("path", file.Path).Msg("error generating test case code")
		writeError(w, r, http.StatusInternalServerError, "Failed to generate test case code", err)
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]string{
		"code":      code,
		"summary":   summary,
		"framework": framework,
		"file_path": file.Path,
	})
}

func (s *Server) handleGenerateTest(w http.ResponseWriter, r *http.Request) {
	var req models.GenerateTestRequest
	if err := decode(w, r, &req); err != nil {
		badBody(w, r, err)
		return
	}
	if strings.TrimSpace(req.Scenario) == "" {
		writeError(w, r, http.StatusBadRequest, "Test case scenario is required", nil)
		return
	}
	if strings.TrimSpace(req.FileContent) == "" {
		writeError(w, r, http.StatusBadRequest, "File content is required", nil)
		return
	}
	gen := s.service(w, r)
	if gen == nil {
		return
	}

	code, err := gen.GenerateTest(r.Context(), req.FileName, req.FileContent, req.Scenario)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Str("file", req.FileName).Msg("error generating scenario test")
		writeError(w, r, http.StatusInternalServerError, "Failed to generate test case code", err)
		return
	}

	writeJSON(w, r, http.StatusOK, models.GenerateTestResponse{
		Code:     code,
		FileName: req.FileName,
		Scenario: req.Scenario,
	})
}

func (s *Server) handleAITestConnection(w http.ResponseWriter, r *http.Request) {
	gen := s.service(w, r)
	if gen == nil {
		return
	}
	res, err := gen.TestConnection(r.Context())
	if err != nil {
		writeError(w, r, http.StatusBadGateway, "LLM call failed", err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"status": "connected",
		"mode":   "live",
		"ok":     true,
		"model":  res.Model,
		"output": res.Output,
	})
}

func (s *Server) handleFrameworks(w http.ResponseWriter, r *http.Request) {
	fws := generator.Frameworks()
	writeJSON(w, r, http.StatusOK, map[string]any{
		"frameworks":  fws,
		"total_count": len(fws),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := store.DefaultRecentLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, r, http.StatusBadRequest, "limit must be a positive integer", nil)
			return
		}
		limit = n
	}
	gen := s.service(w, r)
	if gen == nil {
		return
	}

	gens, err := gen.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "Failed to load history", err)
		return
	}
	if gens == nil {
		gens = []models.Generation{}
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"generations": gens,
		"total_count": len(gens),
	})
}

func (s *Server) handleRepoFiles(w http.ResponseWriter, r *http.Request) {
	repos := s.reposClient(w, r)
	if repos == nil {
		return
	}
	owner, repo := r.PathValue("owner"), r.PathValue("repo")

	info, err := repos.GetRepositoryInfo(r.Context(), owner, repo)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Str("repo", owner+"/"+repo).Msg("error getting repository files")
		writeError(w, r, http.StatusInternalServerError, "Failed to get repository files", err)
		return
	}
	files, err := repos.GetFileTree(r.Context(), owner, repo, "")
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Str("repo", owner+"/"+repo).Msg("error getting repository files")
		writeError(w, r, http.StatusInternalServerError, "Failed to get repository files", err)
		return
	}
	if files == nil {
		files = []models.FileNode{}
	}

	writeJSON(w, r, http.StatusOK, models.FileTreeResponse{
		Repository: info,
		Files:      files,
		TotalCount: len(files),
	})
}

func (s *Server) handleFileContents(w http.ResponseWriter, r *http.Request) {
	var req models.FileContentRequest
	if err := decode(w, r, &req); err != nil {
		badBody(w, r, err)
		return
	}
	if req.Owner == "" || req.Repo == "" {
		writeError(w, r, http.StatusUnprocessableEntity, "owner and repo are required", nil)
		return
	}
	repos := s.reposClient(w, r)
	if repos == nil {
		return
	}

	files := repos.GetMultipleFileContents(r.Context(), req.Owner, req.Repo, req.FilePaths)
	if files == nil {
		files = []models.FileContent{}
	}
	writeJSON(w, r, http.StatusOK, models.FileContentResponse{
		Files:      files,
		TotalCount: len(files),
	})
}

func (s *Server) handleReposTestConnection(w http.ResponseWriter, r *http.Request) {
	repos := s.reposClient(w, r)
	if repos == nil {
		return
	}
	login, err := repos.TestConnection(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "GitHub API connection failed", err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{
		"status":  "connected",
		"message": "GitHub API connection successful",
		"login":   login,
	})
}

func frameworkParam(r *http.Request) string {
	if fw := strings.TrimSpace(r.URL.Query().Get("framework")); fw != "" {
		return fw
	}
	return generator.DefaultFramework
}
