package recap

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/theimaginaryfoundation/recap-o-matic/recap/fileutils"
)

// stage is one step of the bounded escalation ladder. Recursion never goes
// deeper than the four-way split; adding a deeper tier means adding a stage
// here and a case in summarizeDocument.
type stage int

const (
	stageWhole stage = iota
	stageHalves
	stageQuarters
)

func (s stage) String() string {
	switch s {
	case stageWhole:
		return "whole"
	case stageHalves:
		return "halves"
	default:
		return "quarters"
	}
}

const (
	// placeholderSummary is cached in place of trivial/empty model output, so
	// a quiet month still resolves to a cache hit on the next run.
	placeholderSummary = "No significant activity this month beyond routine conversation."

	// placeholderDigest stands in when digest derivation fails. It is never
	// cached; the next run retries.
	placeholderDigest = "A quiet month with little to report."
)

// Prompts carries the fixed instruction texts for the three call shapes.
type Prompts struct {
	Summarize string
	Combine   string
	Digest    string
}

// RecursiveSummarizer produces one rendered month block per document:
// cache lookup, whole-document attempt, then a 2-way and finally a 4-way
// segmented retry when the summarizer rejects the input as too large.
type RecursiveSummarizer struct {
	Client  SummarizerClient
	Cache   *CacheStore
	Prompts Prompts

	// WithDigest enables the one-sentence digest spliced after the heading.
	WithDigest bool

	// Log receives progress/diagnostic lines. Nil disables logging.
	Log io.Writer
}

// Result is the outcome for one document. Text is never empty and always
// begins with the document's heading line; failures are rendered inline,
// never returned as errors.
type Result struct {
	Key        string
	Text       string
	FromCache  bool
	FreshCalls int
	Failed     bool
}

// Run drives one document to a terminal state. It never returns an error:
// service failures become an inline error block scoped to this document.
func (r *RecursiveSummarizer) Run(ctx context.Context, doc Document) Result {
	res := Result{Key: doc.Key}

	var summary string
	if entry, ok := r.Cache.Get(doc.Key); ok {
		res.FromCache = true
		summary = entry.Summary
	} else {
		var failed bool
		summary, failed = r.summarizeDocument(ctx, doc, &res.FreshCalls)
		if failed {
			res.Failed = true
			res.Text = renderBlock(doc.Label, "", summary)
			return res
		}
		if err := r.Cache.Put(doc.Key, summary); err != nil {
			r.logf("cache write %s: %v", doc.Key, err)
		}
	}

	digest := ""
	if r.WithDigest {
		digest = r.deriveDigest(ctx, doc.Key, summary, &res.FreshCalls)
	}

	res.Text = renderBlock(doc.Label, digest, summary)
	return res
}

// summarizeDocument runs the whole → halves → quarters ladder. The boolean
// result reports terminal failure; in that case the string is the inline
// error text to render in place of a summary.
func (r *RecursiveSummarizer) summarizeDocument(ctx context.Context, doc Document, calls *int) (string, bool) {
	st := stageWhole
	for {
		switch st {
		case stageWhole:
			out, err := r.Client.Summarize(ctx, r.Prompts.Summarize, monthInput(doc))
			*calls++
			if err == nil {
				out = strings.TrimSpace(out)
				if len(out) < minValidSummaryChars {
					r.logf("trivial output for %s, caching placeholder", doc.Key)
					return placeholderSummary, false
				}
				return out, false
			}
			if IsSizeLimit(err) && len(doc.Lines) >= 2 {
				r.logf("%s too large whole, escalating to %s", doc.Key, stageHalves)
				st = stageHalves
				continue
			}
			return failText(err), true

		case stageHalves:
			halves := SplitInTwo(doc)
			parts := make([]string, 0, len(halves))
			escalate := false
			for _, seg := range halves {
				out, err := r.Client.Summarize(ctx, r.Prompts.Summarize, segmentInput(doc, seg))
				*calls++
				if err != nil {
					if IsSizeLimit(err) {
						// Escalation restarts from the original whole
						// document, not the oversized half.
						escalate = true
						break
					}
					return failText(err), true
				}
				parts = append(parts, strings.TrimSpace(out))
			}
			if escalate {
				r.logf("%s too large in halves, escalating to %s", doc.Key, stageQuarters)
				st = stageQuarters
				continue
			}
			return strings.Join(parts, "\n\n"), false

		case stageQuarters:
			quarters := SplitInFour(doc)
			parts := make([]string, 0, len(quarters))
			for _, seg := range quarters {
				out, err := r.Client.Summarize(ctx, r.Prompts.Summarize, segmentInput(doc, seg))
				*calls++
				if err != nil {
					// Hard recursion bound: no deeper split, size limit
					// included.
					return failText(err), true
				}
				parts = append(parts, strings.TrimSpace(out))
			}

			combined, err := r.Client.Combine(ctx, r.Prompts.Combine, parts)
			*calls++
			if err != nil {
				r.logf("combine failed for %s, falling back to concatenation: %v", doc.Key, err)
				combined = strings.Join(parts, "\n\n")
			}
			combined = strings.TrimSpace(combined)
			if combined == "" {
				combined = strings.Join(parts, "\n\n")
			}
			return combined, false
		}
	}
}

// deriveDigest returns the one-sentence digest for a finished summary,
// reusing the digest cache when valid. Failures degrade to a fixed
// placeholder sentence and are not cached.
func (r *RecursiveSummarizer) deriveDigest(ctx context.Context, key, summary string, calls *int) string {
	if entry, ok := r.Cache.GetDigest(key); ok {
		return entry.Summary
	}

	out, err := r.Client.Summarize(ctx, r.Prompts.Digest, summary)
	*calls++
	if err != nil || strings.TrimSpace(out) == "" {
		if err != nil {
			r.logf("digest %s: %v", key, err)
		}
		return placeholderDigest
	}

	sentence := fileutils.SanitizeNewlines(strings.TrimSpace(out))
	if err := r.Cache.PutDigest(key, sentence); err != nil {
		r.logf("digest cache write %s: %v", key, err)
	}
	return sentence
}

func (r *RecursiveSummarizer) logf(format string, args ...any) {
	if r.Log == nil {
		return
	}
	fmt.Fprintf(r.Log, format+"\n", args...)
}

func failText(err error) string {
	return fmt.Sprintf("Summarization failed: %v", err)
}

// renderBlock assembles the output contract for one document: a heading
// line for the period, the optional digest sentence directly under it, then
// the summary (or inline error) body.
func renderBlock(label, digest, body string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", label)
	if digest != "" {
		fmt.Fprintf(&b, "*%s*\n\n", digest)
	}
	b.WriteString(strings.TrimSpace(body))
	b.WriteString("\n")
	return b.String()
}

func monthInput(doc Document) string {
	var b strings.Builder
	fmt.Fprintf(&b, "period=%s (%s)\nlines=%d\n\ntranscript:\n", doc.Key, doc.Label, len(doc.Lines))
	b.WriteString(doc.Text())
	return b.String()
}

func segmentInput(doc Document, seg Segment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "period=%s (%s)\nsegment=%d/%d\nlines=%d\n\ntranscript:\n",
		doc.Key, doc.Label, seg.Ordinal, seg.Of, len(seg.Lines))
	b.WriteString(strings.Join(seg.Lines, "\n"))
	return b.String()
}
