package recap

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pkoukk/tiktoken-go"
)

// Pipeline walks the monthly documents in chronological order, appends each
// rendered block to the output file, and syncs after every document so an
// interrupted run leaves a valid prefix on disk.
type Pipeline struct {
	Summarizer *RecursiveSummarizer
	OutPath    string
	Title      string

	// Pause is inserted between documents that triggered fresh model calls.
	// Fully cached documents proceed without delay.
	Pause time.Duration

	Stderr io.Writer

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// PipelineStats accumulates over one Run.
type PipelineStats struct {
	Processed  int
	Cached     int
	FreshCalls int
	Failed     int
}

// Run processes all documents and writes the assembled narrative to
// p.OutPath. A document-level summarization failure is recorded inline and
// in the stats; Run only errors on I/O or context cancellation.
func (p *Pipeline) Run(ctx context.Context, docs []Document) (PipelineStats, error) {
	var stats PipelineStats

	f, err := os.Create(p.OutPath)
	if err != nil {
		return stats, fmt.Errorf("create output: %w", err)
	}
	defer func() { _ = f.Close() }()

	header := fmt.Sprintf("# %s\n\nGenerated: %s\nPeriods: %d\n\n",
		p.Title, time.Now().UTC().Format(time.RFC3339), len(docs))
	if _, err := f.WriteString(header); err != nil {
		return stats, fmt.Errorf("write output: %w", err)
	}

	for i, doc := range docs {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		res := p.Summarizer.Run(ctx, doc)

		if _, err := f.WriteString(res.Text + "\n"); err != nil {
			return stats, fmt.Errorf("write output: %w", err)
		}
		if err := f.Sync(); err != nil {
			return stats, fmt.Errorf("sync output: %w", err)
		}

		stats.Processed++
		stats.FreshCalls += res.FreshCalls
		if res.FromCache {
			stats.Cached++
		}
		if res.Failed {
			stats.Failed++
		}
		p.logf("progress monthly-recap: %d/%d period=%s cached=%t fresh_calls=%d failed=%t",
			i+1, len(docs), doc.Key, res.FromCache, res.FreshCalls, res.Failed)

		if res.FreshCalls > 0 && i < len(docs)-1 && p.Pause > 0 {
			if err := p.doSleep(ctx, p.Pause); err != nil {
				return stats, err
			}
		}
	}

	if err := f.Close(); err != nil {
		return stats, fmt.Errorf("close output: %w", err)
	}
	return stats, nil
}

func (p *Pipeline) doSleep(ctx context.Context, d time.Duration) error {
	if p.sleep != nil {
		return p.sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (p *Pipeline) logf(format string, args ...any) {
	if p.Stderr == nil {
		return
	}
	fmt.Fprintf(p.Stderr, format+"\n", args...)
}

// TokenCounter reports the approximate token count of a prompt input.
type TokenCounter func(text string) int

// TiktokenCounter counts with the cl100k_base encoding. When the encoding
// cannot be loaded (the BPE tables are fetched lazily), it degrades to the
// bytes/4 heuristic.
func TiktokenCounter() TokenCounter {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return func(text string) int { return len(text) / 4 }
	}
	return func(text string) int {
		return len(enc.Encode(text, nil, nil))
	}
}

// Dollar-per-million-token bounds for the estimate range. Low assumes a
// small model's input rate; High doubles a large model's output rate to
// leave room for the split-retry worst case.
const (
	costLowPerMTok  = 0.15
	costHighPerMTok = 5.00
)

// CostEstimate is the pre-flight projection shown before any model call.
type CostEstimate struct {
	Pending     int
	InputTokens int
	Low         float64
	High        float64
}

// Estimate sizes the upcoming run. Documents with a valid cached summary
// cost nothing, but when digests are enabled a cached summary with a
// missing or expired digest still owes one call over the summary text.
func (p *Pipeline) Estimate(docs []Document, count TokenCounter) CostEstimate {
	var est CostEstimate
	for _, doc := range docs {
		entry, ok := p.Summarizer.Cache.Get(doc.Key)
		if !ok {
			est.Pending++
			est.InputTokens += count(monthInput(doc))
			continue
		}
		if p.Summarizer.WithDigest {
			if _, ok := p.Summarizer.Cache.GetDigest(doc.Key); !ok {
				est.Pending++
				est.InputTokens += count(entry.Summary)
			}
		}
	}
	est.Low = float64(est.InputTokens) / 1e6 * costLowPerMTok
	est.High = 2 * float64(est.InputTokens) / 1e6 * costHighPerMTok
	return est
}

// Confirm prints the estimate and reads one line from in. It returns true
// without prompting when nothing is pending, and otherwise only for an
// explicit "y" or "yes" (case-insensitive).
func Confirm(in io.Reader, out io.Writer, est CostEstimate) bool {
	if est.Pending == 0 {
		fmt.Fprintln(out, "all periods cached, no model calls needed")
		return true
	}

	fmt.Fprintf(out, "pending_periods=%d input_tokens=%d est_cost_usd=%.2f-%.2f\n",
		est.Pending, est.InputTokens, est.Low, est.High)
	fmt.Fprint(out, "proceed? [y/N] ")

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
