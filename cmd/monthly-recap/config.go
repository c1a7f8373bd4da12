package main

import (
	"errors"
	"path/filepath"
	"time"
)

type Config struct {
	InDir           string
	OutPath         string
	CacheDir        string
	Model           string
	Title           string
	APIKey          string
	IndexPath       string
	Digest          bool
	MaxAge          time.Duration
	Pause           time.Duration
	Reindex         bool
	Yes             bool
	IndexMaxSummary int
}

func (c Config) Validate() error {
	if c.InDir == "" {
		return errors.New("missing -in")
	}
	if c.OutPath == "" {
		return errors.New("missing -out")
	}
	if c.CacheDir == "" {
		return errors.New("missing -cache")
	}
	if c.Model == "" {
		return errors.New("missing -model")
	}
	if c.Title == "" {
		return errors.New("missing -title")
	}
	if c.MaxAge < 0 {
		return errors.New("max-age must be >= 0")
	}
	if c.Pause < 0 {
		return errors.New("pause must be >= 0")
	}
	if c.IndexMaxSummary < 0 {
		return errors.New("index-summary-max-chars must be >= 0")
	}
	return nil
}

func defaultConfig() Config {
	return Config{
		InDir:           filepath.FromSlash("docs/recap/months"),
		OutPath:         filepath.FromSlash("docs/recap/recap.md"),
		CacheDir:        filepath.FromSlash("docs/recap/cache"),
		Model:           "gpt-5-mini",
		Title:           "Monthly Recap",
		Digest:          true,
		MaxAge:          7 * 24 * time.Hour,
		Pause:           2 * time.Second,
		Reindex:         true,
		IndexMaxSummary: 600,
	}
}
