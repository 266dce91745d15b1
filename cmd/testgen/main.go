package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/seanblong/testgen/internal/ai"
	"github.com/seanblong/testgen/internal/config"
	"github.com/seanblong/testgen/internal/generator"
	"github.com/seanblong/testgen/internal/scanner"
	"github.com/seanblong/testgen/internal/store"
	"github.com/spf13/pflag"
)

type report struct {
	Root      string                 `json:"root"`
	Framework string                 `json:"framework"`
	Provider  string                 `json:"provider"`
	Files     []generator.FileResult `json:"files"`
}

func main() {
	fs := pflag.NewFlagSet("testgen", pflag.ExitOnError)
	repoRoot := fs.String("repo-root", ".", "Local directory to scan")
	repoURL := fs.String("repo-url", "", "Clone this repository instead of scanning --repo-root")
	gitRef := fs.String("git-ref", "main", "Branch or tag to clone with --repo-url")
	framework := fs.String("framework", generator.DefaultFramework, "Testing framework to target")
	generate := fs.Bool("generate", false, "Also generate test code for every summary")
	concurrency := fs.Int("concurrency", generator.DefaultConcurrency, "Maximum concurrent model calls")
	out := fs.String("out", "", "Write the JSON report to this file instead of stdout")

	cfg, err := config.Load("", fs, os.Args[1:])
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	fs.Usage = cfg.Usage

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Invalid log level '%s': %v", cfg.LogLevel, err)
	}
	// stdout carries the report
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
	zlog.Logger = logger

	if err := run(cfg, logger, options{
		repoRoot:    *repoRoot,
		repoURL:     *repoURL,
		gitRef:      *gitRef,
		framework:   *framework,
		generate:    *generate,
		concurrency: *concurrency,
		out:         *out,
	}); err != nil {
		if errors.Is(err, errFailures) {
			logger.Error().Msg(err.Error())
			os.Exit(1)
		}
		log.Fatal(err)
	}
}

type options struct {
	repoRoot, repoURL, gitRef string
	framework                 string
	generate                  bool
	concurrency               int
	out                       string
}

var errFailures = errors.New("some generations failed")

func run(cfg config.Specification, logger zerolog.Logger, opts options) error {
	repo := opts.repoRoot
	if opts.repoURL != "" {
		dir, err := cloneToTemp(opts.repoURL, opts.gitRef, cfg.GithubToken)
		if err != nil {
			return fmt.Errorf("clone failed: %w", err)
		}
		repo = dir
		defer func() {
			if err := os.RemoveAll(dir); err != nil {
				log.Printf("Failed to remove temp directory %s: %v", dir, err)
			}
		}()
	}

	ctx := context.Background()

	client, err := ai.NewClient(cfg.ClientConfig())
	if err != nil {
		return fmt.Errorf("create AI client: %w", err)
	}
	logger.Info().Str("provider", string(client.Provider())).Str("model", client.DefaultModel()).Msg("using provider")

	history, closeHistory, err := store.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer closeHistory()
	if err := history.Migrate(ctx); err != nil {
		return err
	}

	files, err := scanner.New(repo).Scan(ctx)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no source files found under %s", repo)
	}

	svc := generator.NewService(client, history)
	results := svc.Batch(ctx, files, generator.BatchOptions{
		Framework:   opts.framework,
		Generate:    opts.generate,
		Concurrency: opts.concurrency,
	})

	rep := report{
		Root:      repo,
		Framework: opts.framework,
		Provider:  string(client.Provider()),
		Files:     results,
	}
	if opts.repoURL != "" {
		rep.Root = opts.repoURL
	}
	if err := writeReport(opts.out, rep); err != nil {
		return err
	}

	if generator.Failed(results) {
		return errFailures
	}
	return nil
}

func writeReport(path string, rep report) error {
	var w io.Writer = os.Stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer func() {
			if err := f.Close(); err != nil {
				log.Printf("Failed to close %s: %v", path, err)
			}
		}()
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

func cloneToTemp(repoURL, ref, token string) (string, error) {
	dir, err := os.MkdirTemp("", "testgen-*")
	if err != nil {
		return "", err
	}
	url := repoURL
	if token != "" && strings.HasPrefix(url, "https://") {
		url = "https://" + token + ":x-oauth-basic@" + strings.TrimPrefix(url, "https://")
	}
	cmd := exec.Command("git", "clone", "--depth", "1", "--branch", ref, url, dir)
	cmd.Stdout, cmd.Stderr = os.Stderr, os.Stderr
	if err := cmd.Run(); err != nil {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			log.Printf("Failed to remove temp directory %s: %v", dir, rmErr)
		}
		return "", fmt.Errorf("git clone: %w", err)
	}
	return dir, nil
}
