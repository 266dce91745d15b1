package generator

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/seanblong/testgen/internal/ai"
	"github.com/seanblong/testgen/internal/prompt"
	"github.com/seanblong/testgen/internal/store"
	"github.com/seanblong/testgen/pkg/models"
)

const DefaultFramework = "pytest"

const (
	connectionSystem = "You are a helpful assistant."
	connectionPing   = "Reply with the word: pong"
)

// Service turns source files into test summaries and test code.
type Service struct {
	Client  ai.Client
	History store.HistoryStore
}

// NewService creates a new generation service. A nil history keeps nothing.
func NewService(client ai.Client, history store.HistoryStore) *Service {
	if history == nil {
		history = store.Nop{}
	}
	return &Service{
		Client:  client,
		History: history,
	}
}

// ConnectionResult is the outcome of a live round trip to the provider.
type ConnectionResult struct {
	Model  string `json:"model"`
	Output string `json:"output"`
}

// Summarize proposes test cases for files. An empty answer from the model
// yields no summaries; an unparseable one yields the parse-failure sentinel.
func (s *Service) Summarize(ctx context.Context, files []models.FileContent, framework string) ([]models.TestSummary, error) {
	framework = frameworkOrDefault(framework)

	text, err := ai.Complete(ctx, s.Client, []ai.Message{
		{Role: ai.RoleSystem, Content: prompt.SummarySystem},
		{Role: ai.RoleUser, Content: prompt.Summary(files, framework)},
	})
	if err != nil {
		log.Error().Err(err).Str("framework", framework).Msg("failed to generate test case summaries")
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		text = "[]"
	}

	summaries := ai.ExtractSummaries(text)
	log.Info().Int("summaries", len(summaries)).Int("files", len(files)).Str("framework", framework).Msg("generated test case summaries")

	s.record(ctx, models.Generation{
		Kind:      store.KindSummaries,
		Framework: framework,
		Input:     joinPaths(files),
		Output:    encode(summaries),
	})
	return summaries, nil
}

// GenerateCode writes test code for one summary against file.
func (s *Service) GenerateCode(ctx context.Context, file models.FileContent, summary, framework string) (string, error) {
	framework = frameworkOrDefault(framework)

	code, err := ai.Complete(ctx, s.Client, []ai.Message{
		{Role: ai.RoleSystem, Content: prompt.CodeSystem},
		{Role: ai.RoleUser, Content: prompt.Code(file, summary, framework)},
	})
	if err != nil {
		log.Error().Err(err).Str("path", file.Path).Msg("failed to generate test case code")
		return "", err
	}
	log.Info().Str("path", file.Path).Str("summary", summary).Msg("generated test case code")

	s.record(ctx, models.Generation{
		Kind:      store.KindCode,
		Framework: framework,
		Input:     file.Path + ": " + summary,
		Output:    code,
	})
	return code, nil
}

// GenerateTest writes a single pytest function for scenario.
func (s *Service) GenerateTest(ctx context.Context, fileName, fileContent, scenario string) (string, error) {
	code, err := ai.Complete(ctx, s.Client, []ai.Message{
		{Role: ai.RoleSystem, Content: prompt.ScenarioSystem},
		{Role: ai.RoleUser, Content: prompt.Scenario(fileName, fileContent, scenario)},
	})
	if err != nil {
		log.Error().Err(err).Str("file", fileName).Msg("failed to generate scenario test")
		return "", err
	}
	log.Info().Str("file", fileName).Str("scenario", scenario).Msg("generated scenario test")

	s.record(ctx, models.Generation{
		Kind:      store.KindTest,
		Framework: DefaultFramework,
		Input:     fileName + ": " + scenario,
		Output:    code,
	})
	return code, nil
}

// TestConnection makes a minimal live call to prove the credentials work.
func (s *Service) TestConnection(ctx context.Context) (ConnectionResult, error) {
	raw, err := s.Client.SendChat(ctx, []ai.Message{
		{Role: ai.RoleSystem, Content: connectionSystem},
		{Role: ai.RoleUser, Content: connectionPing},
	}, "")
	if err != nil {
		log.Error().Err(err).Str("provider", string(s.Client.Provider())).Msg("AI connection test failed")
		return ConnectionResult{}, err
	}

	model := s.Client.DefaultModel()
	if s.Client.Provider() != ai.ProviderGemini {
		if m := ai.ResponseModel(raw); m != "" {
			model = m
		}
	}
	return ConnectionResult{Model: model, Output: s.Client.ExtractText(raw)}, nil
}

// Recent lists recorded generations, newest first.
func (s *Service) Recent(ctx context.Context, limit int) ([]models.Generation, error) {
	return s.History.Recent(ctx, limit)
}

// Frameworks lists the frameworks prompts are written for. Any other name is
// still accepted.
func Frameworks() []models.Framework {
	return []models.Framework{
		{Name: "pytest", Description: "Python testing framework", Language: "Python"},
		{Name: "selenium", Description: "Python UI automation testing with Selenium", Language: "Python"},
		{Name: "jest", Description: "JavaScript testing framework", Language: "JavaScript/TypeScript"},
		{Name: "unittest", Description: "Python built-in testing framework", Language: "Python"},
		{Name: "mocha", Description: "JavaScript testing framework", Language: "JavaScript/TypeScript"},
		{Name: "junit", Description: "Java testing framework", Language: "Java"},
	}
}

// record stores g; a history failure never fails the generation.
func (s *Service) record(ctx context.Context, g models.Generation) {
	g.Provider = string(s.Client.Provider())
	g.Model = s.Client.DefaultModel()
	if _, err := s.History.Record(ctx, g); err != nil {
		log.Warn().Err(err).Str("kind", g.Kind).Msg("failed to record generation")
	}
}

func frameworkOrDefault(fw string) string {
	fw = strings.TrimSpace(fw)
	if fw == "" {
		return DefaultFramework
	}
	return fw
}

func joinPaths(files []models.FileContent) string {
	paths := make([]string, 0, len(files))
	for _, f := range files {
		paths = append(paths, f.Path)
	}
	return strings.Join(paths, ",")
}

func encode(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
