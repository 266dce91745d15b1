package generator

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/seanblong/testgen/pkg/models"
	"golang.org/x/sync/errgroup"
)

const DefaultConcurrency = 4

// GeneratedTest is test code written for one summary.
type GeneratedTest struct {
	ID      int    `json:"id"`
	Summary string `json:"summary"`
	Code    string `json:"code,omitempty"`
	Error   string `json:"error,omitempty"`
}

// FileResult is what Batch produced for one file.
type FileResult struct {
	Path      string               `json:"path"`
	Summaries []models.TestSummary `json:"summaries"`
	Tests     []GeneratedTest      `json:"tests,omitempty"`
	Error     string               `json:"error,omitempty"`
}

// BatchOptions controls Batch.
type BatchOptions struct {
	Framework   string
	Generate    bool
	Concurrency int
}

// Batch summarizes each file on its own and, when opts.Generate is set,
// writes code for every summary. At most opts.Concurrency model calls run at
// once. A failed call is reported in its result and does not stop the rest.
func (s *Service) Batch(ctx context.Context, files []models.FileContent, opts BatchOptions) []FileResult {
	limit := opts.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	framework := frameworkOrDefault(opts.Framework)

	// each goroutine owns one slot of results
	results := make([]FileResult, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, f := range files {
		results[i].Path = f.Path
		g.Go(func() error {
			summaries, err := s.Summarize(gctx, []models.FileContent{f}, framework)
			if err != nil {
				log.Warn().Err(err).Str("path", f.Path).Msg("summarization failed")
				results[i].Error = err.Error()
				return nil
			}
			results[i].Summaries = summaries
			return nil
		})
	}
	_ = g.Wait()

	if !opts.Generate {
		return results
	}

	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, f := range files {
		if results[i].Error != "" {
			continue
		}
		results[i].Tests = make([]GeneratedTest, len(results[i].Summaries))
		for j, sum := range results[i].Summaries {
			g.Go(func() error {
				t := GeneratedTest{ID: sum.ID, Summary: sum.Summary}
				code, err := s.GenerateCode(gctx, f, sum.Summary, framework)
				if err != nil {
					log.Warn().Err(err).Str("path", f.Path).Int("id", sum.ID).Msg("code generation failed")
					t.Error = err.Error()
				} else {
					t.Code = code
				}
				results[i].Tests[j] = t
				return nil
			})
		}
	}
	_ = g.Wait()
	return results
}

// Failed reports whether any file or test in results failed.
func Failed(results []FileResult) bool {
	for _, r := range results {
		if r.Error != "" {
			return true
		}
		for _, t := range r.Tests {
			if t.Error != "" {
				return true
			}
		}
	}
	return false
}
