package recap

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/theimaginaryfoundation/recap-o-matic/recap/fileutils"
)

// IndexRecord is one JSONL row of the cache index: a per-month pointer into
// the cache directory with an excerpt of the summary for quick scanning.
type IndexRecord struct {
	Key         string    `json:"key"`
	Label       string    `json:"label"`
	CachedAt    time.Time `json:"cached_at"`
	Model       string    `json:"model,omitempty"`
	Summary     string    `json:"summary"`
	Digest      string    `json:"digest,omitempty"`
	SummaryPath string    `json:"summary_path"`
}

// RebuildIndex regenerates the JSONL index from whatever cache entries are
// on disk, sorted by month key. Corrupt entries are skipped, not fatal: the
// index is derived data and must never block a run. Returns the number of
// records written.
func RebuildIndex(cacheDir, indexPath string, maxSummaryChars int) (int, error) {
	entries, err := os.ReadDir(cacheDir)
	if err != nil {
		return 0, fmt.Errorf("read cache dir: %w", err)
	}

	var keys []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), summaryCacheSuffix) {
			continue
		}
		keys = append(keys, strings.TrimSuffix(e.Name(), summaryCacheSuffix))
	}
	sort.Strings(keys)

	f, err := os.OpenFile(indexPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, fmt.Errorf("create index: %w", err)
	}
	defer f.Close()
	w := bufio.NewWriterSize(f, 1<<20)

	written := 0
	for _, key := range keys {
		sumPath := filepath.Join(cacheDir, key+summaryCacheSuffix)
		var entry CacheEntry
		if !readCacheEntry(sumPath, &entry) || strings.TrimSpace(entry.Summary) == "" {
			continue
		}

		rec := IndexRecord{
			Key:         key,
			Label:       MonthLabel(key),
			CachedAt:    entry.CreatedAt,
			Model:       entry.Model,
			Summary:     fileutils.SanitizeNewlines(fileutils.Truncate(entry.Summary, maxSummaryChars)),
			SummaryPath: sumPath,
		}

		var digest CacheEntry
		if readCacheEntry(filepath.Join(cacheDir, key+digestCacheSuffix), &digest) {
			rec.Digest = fileutils.SanitizeNewlines(strings.TrimSpace(digest.Summary))
		}

		line, err := json.Marshal(rec)
		if err != nil {
			continue
		}
		if _, err := w.Write(append(line, '\n')); err != nil {
			return written, fmt.Errorf("write index: %w", err)
		}
		written++
	}

	if err := w.Flush(); err != nil {
		return written, fmt.Errorf("write index: %w", err)
	}
	if err := f.Close(); err != nil {
		return written, fmt.Errorf("close index: %w", err)
	}
	return written, nil
}

func readCacheEntry(path string, out *CacheEntry) bool {
	b, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	return json.Unmarshal(b, out) == nil
}
