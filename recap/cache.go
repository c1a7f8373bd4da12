package recap

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/theimaginaryfoundation/recap-o-matic/recap/fileutils"
)

const (
	// DefaultMaxAge is the freshness window for cached summaries.
	DefaultMaxAge = 7 * 24 * time.Hour

	// minValidSummaryChars is the threshold below which a cached summary (or a
	// fresh model response) is considered trivial.
	minValidSummaryChars = 10

	summaryCacheSuffix = ".recap.json"
	digestCacheSuffix  = ".digest.json"
)

// CacheEntry is one persisted summary record. It is always replaced
// wholesale, never partially updated.
type CacheEntry struct {
	CreatedAt time.Time `json:"created_at"`
	Key       string    `json:"key"`
	Summary   string    `json:"summary"`

	// Model is diagnostic only; it never affects validity.
	Model string `json:"model,omitempty"`
}

// CacheStore holds per-month summary and digest records as JSON files under a
// single directory. Lookups treat missing, expired, trivial and corrupted
// entries uniformly as a miss.
type CacheStore struct {
	dir    string
	maxAge time.Duration
	model  string

	// Log receives one line per cache miss explaining the reason. Nil
	// disables miss logging.
	Log io.Writer

	now func() time.Time
}

// NewCacheStore returns a store rooted at dir. maxAge <= 0 selects
// DefaultMaxAge. model is stamped on every write for diagnostics.
func NewCacheStore(dir string, maxAge time.Duration, model string) *CacheStore {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &CacheStore{
		dir:    dir,
		maxAge: maxAge,
		model:  model,
		now:    time.Now,
	}
}

// Get returns the cached summary entry for key if it is present, fresh
// (age <= maxAge, boundary inclusive) and non-trivial.
func (s *CacheStore) Get(key string) (CacheEntry, bool) {
	return s.load(s.summaryPath(key), key)
}

// Put writes (or replaces) the summary entry for key, stamped with the
// current time. The write is atomic: temp file in the same directory, then
// rename.
func (s *CacheStore) Put(key, summary string) error {
	return s.store(s.summaryPath(key), key, summary)
}

// GetDigest is Get for the independently-cached one-sentence digest.
func (s *CacheStore) GetDigest(key string) (CacheEntry, bool) {
	return s.load(s.digestPath(key), key+" (digest)")
}

// PutDigest is Put for the digest record.
func (s *CacheStore) PutDigest(key, sentence string) error {
	return s.store(s.digestPath(key), key, sentence)
}

func (s *CacheStore) summaryPath(key string) string {
	return filepath.Join(s.dir, key+summaryCacheSuffix)
}

func (s *CacheStore) digestPath(key string) string {
	return filepath.Join(s.dir, key+digestCacheSuffix)
}

func (s *CacheStore) load(path, label string) (CacheEntry, bool) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.miss(label, "missing")
		} else {
			s.miss(label, "unreadable: "+err.Error())
		}
		return CacheEntry{}, false
	}

	var e CacheEntry
	if err := json.Unmarshal(b, &e); err != nil {
		s.miss(label, "corrupted")
		return CacheEntry{}, false
	}
	if e.CreatedAt.IsZero() {
		s.miss(label, "corrupted")
		return CacheEntry{}, false
	}
	if s.now().Sub(e.CreatedAt) > s.maxAge {
		s.miss(label, "expired")
		return CacheEntry{}, false
	}
	if len(strings.TrimSpace(e.Summary)) < minValidSummaryChars {
		s.miss(label, "invalid")
		return CacheEntry{}, false
	}
	return e, true
}

func (s *CacheStore) store(path, key, text string) error {
	entry := CacheEntry{
		CreatedAt: s.now(),
		Key:       key,
		Summary:   text,
		Model:     s.model,
	}
	if err := fileutils.WriteJSONFileAtomic(path, entry, true); err != nil {
		return fmt.Errorf("cache put %s: %w", key, err)
	}
	return nil
}

func (s *CacheStore) miss(label, reason string) {
	if s.Log == nil {
		return
	}
	fmt.Fprintf(s.Log, "cache miss %s: %s\n", label, reason)
}
