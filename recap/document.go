package recap

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

// Document is one calendar month's worth of rendered conversation text, the
// unit of summarization. Lines are consumed read-only.
type Document struct {
	// Key is the canonical YYYY-MM token the document is cached under.
	Key string

	// Label is the human-readable period name, e.g. "February 2021".
	Label string

	Lines []string
}

// Text joins the document's lines back into a single block.
func (d Document) Text() string {
	return strings.Join(d.Lines, "\n")
}

var monthKeyPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// LoadMonthlyDocuments scans dir for per-month text files named by a strict
// YYYY-MM token (plus a .md or .txt extension) and returns them sorted
// chronologically. Files that don't match the pattern are ignored. A missing
// directory or an empty match set is an error; callers treat both as fatal
// before any API spend.
func LoadMonthlyDocuments(dir string) ([]Document, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read input dir: %w", err)
	}

	var docs []Document
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if ext != ".md" && ext != ".txt" {
			continue
		}
		key := strings.TrimSuffix(name, filepath.Ext(name))
		if !monthKeyPattern.MatchString(key) {
			continue
		}

		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		docs = append(docs, Document{
			Key:   key,
			Label: MonthLabel(key),
			Lines: splitLines(string(b)),
		})
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("no YYYY-MM documents found in %s", dir)
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].Key < docs[j].Key })
	return docs, nil
}

// MonthLabel renders a YYYY-MM key as a period name like "February 2021".
// Unparsable keys fall back to the key itself so downstream headings are
// never empty.
func MonthLabel(key string) string {
	t, err := time.Parse("2006-01", key)
	if err != nil {
		return key
	}
	return t.Format("January 2006")
}

func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
