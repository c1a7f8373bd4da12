// Command monthly-recap summarizes a directory of month-partitioned
// transcripts into one chronological narrative document. Summaries are
// cached per month, oversized months are retried in two and then four
// segments, and the run is resumable: already-cached months cost nothing.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/theimaginaryfoundation/recap-o-matic/recap"
	"github.com/theimaginaryfoundation/recap-o-matic/recap/provider"
)

func main() {
	cfg, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "missing OPENAI_API_KEY (or pass -api-key)")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	docs, err := recap.LoadMonthlyDocuments(cfg.InDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
		fmt.Fprintln(os.Stderr, fmt.Errorf("mkdir -cache: %w", err).Error())
		os.Exit(2)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.OutPath), 0o755); err != nil {
		fmt.Fprintln(os.Stderr, fmt.Errorf("mkdir -out dir: %w", err).Error())
		os.Exit(2)
	}

	cache := recap.NewCacheStore(cfg.CacheDir, cfg.MaxAge, cfg.Model)
	cache.Log = os.Stderr

	summarizer := &recap.RecursiveSummarizer{
		Client:     provider.NewClient(apiKey, cfg.Model),
		Cache:      cache,
		Prompts:    defaultPrompts(),
		WithDigest: cfg.Digest,
		Log:        os.Stderr,
	}

	pipeline := &recap.Pipeline{
		Summarizer: summarizer,
		OutPath:    cfg.OutPath,
		Title:      cfg.Title,
		Pause:      cfg.Pause,
		Stderr:     os.Stderr,
	}

	if !cfg.Yes {
		est := pipeline.Estimate(docs, recap.TiktokenCounter())
		if !recap.Confirm(os.Stdin, os.Stderr, est) {
			fmt.Fprintln(os.Stderr, "aborted: no changes written")
			return
		}
	}

	stats, err := pipeline.Run(ctx, docs)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}

	if cfg.Reindex {
		indexPath := cfg.IndexPath
		if indexPath == "" {
			indexPath = filepath.Join(cfg.CacheDir, "recap_index.jsonl")
		}
		n, err := recap.RebuildIndex(cfg.CacheDir, indexPath, cfg.IndexMaxSummary)
		if err != nil {
			fmt.Fprintln(os.Stderr, fmt.Errorf("reindex: %w", err).Error())
			os.Exit(1)
		}
		fmt.Printf("index_records=%d index=%s\n", n, indexPath)
	}

	fmt.Printf("months_processed=%d cached=%d fresh_calls=%d failed=%d out=%s\n",
		stats.Processed, stats.Cached, stats.FreshCalls, stats.Failed, cfg.OutPath)
}

func parseFlags(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := defaultConfig()
	fs.SetOutput(os.Stderr)
	fs.StringVar(&cfg.InDir, "in", cfg.InDir, "Directory of monthly transcripts named YYYY-MM.md (or .txt)")
	fs.StringVar(&cfg.OutPath, "out", cfg.OutPath, "Output path for the assembled recap markdown")
	fs.StringVar(&cfg.CacheDir, "cache", cfg.CacheDir, "Directory for per-month summary cache files")
	fs.StringVar(&cfg.Model, "model", cfg.Model, "OpenAI model to use (e.g. gpt-5-mini)")
	fs.StringVar(&cfg.Title, "title", cfg.Title, "Title heading for the recap document")
	fs.BoolVar(&cfg.Digest, "digest", cfg.Digest, "Derive a one-sentence digest under each month heading")
	fs.DurationVar(&cfg.MaxAge, "max-age", cfg.MaxAge, "Max age before a cached summary is regenerated (0 uses the default)")
	fs.DurationVar(&cfg.Pause, "pause", cfg.Pause, "Pause between months that triggered fresh model calls")
	fs.BoolVar(&cfg.Reindex, "reindex", cfg.Reindex, "Rebuild recap_index.jsonl from the cache at end of run")
	fs.StringVar(&cfg.IndexPath, "index", "", "Optional path for recap_index.jsonl (default: <cache>/recap_index.jsonl)")
	fs.IntVar(&cfg.IndexMaxSummary, "index-summary-max-chars", cfg.IndexMaxSummary, "Max chars in index summary excerpts (0 disables truncation)")
	fs.BoolVar(&cfg.Yes, "yes", false, "Skip the cost confirmation prompt")
	fs.StringVar(&cfg.APIKey, "api-key", "", "OpenAI API key (overrides OPENAI_API_KEY env var)")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	cfg.InDir = filepath.Clean(cfg.InDir)
	cfg.OutPath = filepath.Clean(cfg.OutPath)
	cfg.CacheDir = filepath.Clean(cfg.CacheDir)
	if cfg.IndexPath != "" {
		cfg.IndexPath = filepath.Clean(cfg.IndexPath)
	}
	return cfg, nil
}
