package recap

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type scriptedClient struct {
	onSummarize func(instructions, input string) (string, error)
	onCombine   func(instructions string, parts []string) (string, error)

	summarizeCalls int
	combineCalls   int
}

func (c *scriptedClient) Summarize(_ context.Context, instructions, input string) (string, error) {
	c.summarizeCalls++
	return c.onSummarize(instructions, input)
}

func (c *scriptedClient) Combine(_ context.Context, instructions string, parts []string) (string, error) {
	c.combineCalls++
	if c.onCombine == nil {
		return "", errors.New("unexpected Combine call")
	}
	return c.onCombine(instructions, parts)
}

func newTestSummarizer(t *testing.T, client SummarizerClient, withDigest bool) *RecursiveSummarizer {
	t.Helper()
	return &RecursiveSummarizer{
		Client:     client,
		Cache:      NewCacheStore(t.TempDir(), 0, "test-model"),
		Prompts:    Prompts{Summarize: "summarize", Combine: "combine", Digest: "digest"},
		WithDigest: withDigest,
	}
}

var sizeErr = &ClientError{Kind: KindSizeLimit, Err: errors.New("maximum context length exceeded")}

func TestRun_WholeDocumentSuccessAndCacheReuse(t *testing.T) {
	t.Parallel()

	client := &scriptedClient{
		onSummarize: func(_, _ string) (string, error) {
			return "A calm month with steady progress on the build.", nil
		},
	}
	r := newTestSummarizer(t, client, false)
	doc := linesDoc("hello", "world")

	res := r.Run(context.Background(), doc)
	if res.Failed || res.FromCache {
		t.Fatalf("res=%+v", res)
	}
	if res.FreshCalls != 1 || client.summarizeCalls != 1 {
		t.Fatalf("fresh=%d calls=%d", res.FreshCalls, client.summarizeCalls)
	}
	if !strings.HasPrefix(res.Text, "## February 2021\n\n") {
		t.Fatalf("text=%q", res.Text)
	}
	if !strings.Contains(res.Text, "steady progress") {
		t.Fatalf("text=%q", res.Text)
	}

	// Second run resolves from cache without touching the client.
	res2 := r.Run(context.Background(), doc)
	if !res2.FromCache || res2.FreshCalls != 0 || client.summarizeCalls != 1 {
		t.Fatalf("res2=%+v calls=%d", res2, client.summarizeCalls)
	}
	if res2.Text != res.Text {
		t.Fatalf("cached text diverged:\n%q\n%q", res2.Text, res.Text)
	}
}

func TestRun_TrivialOutputCachesPlaceholder(t *testing.T) {
	t.Parallel()

	client := &scriptedClient{
		onSummarize: func(_, _ string) (string, error) { return "  ok ", nil },
	}
	r := newTestSummarizer(t, client, false)
	doc := linesDoc("nothing much")

	res := r.Run(context.Background(), doc)
	if res.Failed {
		t.Fatalf("res=%+v", res)
	}
	if !strings.Contains(res.Text, placeholderSummary) {
		t.Fatalf("text=%q", res.Text)
	}

	res2 := r.Run(context.Background(), doc)
	if !res2.FromCache || client.summarizeCalls != 1 {
		t.Fatalf("placeholder should be a cache hit, res2=%+v calls=%d", res2, client.summarizeCalls)
	}
}

func TestRun_SizeLimitEscalatesToHalves(t *testing.T) {
	t.Parallel()

	client := &scriptedClient{
		onSummarize: func(_, input string) (string, error) {
			switch {
			case strings.Contains(input, "segment=1/2"):
				return "First half of the month.", nil
			case strings.Contains(input, "segment=2/2"):
				return "Second half of the month.", nil
			default:
				return "", sizeErr
			}
		},
	}
	r := newTestSummarizer(t, client, false)
	doc := linesDoc("a", "b", "c", "d")

	res := r.Run(context.Background(), doc)
	if res.Failed {
		t.Fatalf("res=%+v", res)
	}
	want := "First half of the month.\n\nSecond half of the month."
	if !strings.Contains(res.Text, want) {
		t.Fatalf("text=%q", res.Text)
	}
	// One rejected whole-document call plus one per half.
	if res.FreshCalls != 3 || client.summarizeCalls != 3 {
		t.Fatalf("fresh=%d calls=%d", res.FreshCalls, client.summarizeCalls)
	}
	if _, ok := r.Cache.Get(doc.Key); !ok {
		t.Fatalf("split result should be cached under the document key")
	}
}

func TestRun_SingleLineDocumentNeverSplits(t *testing.T) {
	t.Parallel()

	client := &scriptedClient{
		onSummarize: func(_, _ string) (string, error) { return "", sizeErr },
	}
	r := newTestSummarizer(t, client, false)

	res := r.Run(context.Background(), linesDoc("one enormous line"))
	if !res.Failed {
		t.Fatalf("unsplittable document should fail, res=%+v", res)
	}
	if client.summarizeCalls != 1 {
		t.Fatalf("calls=%d", client.summarizeCalls)
	}
}

func TestRun_HalvesEscalateToQuartersWithCombine(t *testing.T) {
	t.Parallel()

	client := &scriptedClient{
		onSummarize: func(_, input string) (string, error) {
			switch {
			case strings.Contains(input, "segment=1/2"), strings.Contains(input, "segment=2/2"):
				return "", sizeErr
			case strings.Contains(input, "/4"):
				return "Quarter summary.", nil
			default:
				return "", sizeErr
			}
		},
		onCombine: func(_ string, parts []string) (string, error) {
			if len(parts) != 4 {
				return "", errors.New("wrong part count")
			}
			return "Combined month narrative.", nil
		},
	}
	r := newTestSummarizer(t, client, false)
	doc := linesDoc("a", "b", "c", "d", "e", "f", "g", "h")

	res := r.Run(context.Background(), doc)
	if res.Failed {
		t.Fatalf("res=%+v", res)
	}
	if !strings.Contains(res.Text, "Combined month narrative.") {
		t.Fatalf("text=%q", res.Text)
	}
	if client.combineCalls != 1 {
		t.Fatalf("combineCalls=%d", client.combineCalls)
	}
	// Whole (reject) + first half (reject) + four quarters + combine.
	if res.FreshCalls != 7 {
		t.Fatalf("fresh=%d", res.FreshCalls)
	}
}

func TestRun_CombineFailureFallsBackToConcatenation(t *testing.T) {
	t.Parallel()

	client := &scriptedClient{
		onSummarize: func(_, input string) (string, error) {
			if strings.Contains(input, "/4") {
				return "Quarter text.", nil
			}
			return "", sizeErr
		},
		onCombine: func(_ string, _ []string) (string, error) {
			return "", &ClientError{Kind: KindService, Err: errors.New("boom")}
		},
	}
	r := newTestSummarizer(t, client, false)
	doc := linesDoc("a", "b", "c", "d", "e", "f", "g", "h")

	res := r.Run(context.Background(), doc)
	if res.Failed {
		t.Fatalf("res=%+v", res)
	}
	if !strings.Contains(res.Text, "Quarter text.\n\nQuarter text.") {
		t.Fatalf("text=%q", res.Text)
	}
}

func TestRun_ServiceErrorFailsWithoutCaching(t *testing.T) {
	t.Parallel()

	client := &scriptedClient{
		onSummarize: func(_, _ string) (string, error) {
			return "", &ClientError{Kind: KindService, Err: errors.New("upstream 500")}
		},
	}
	r := newTestSummarizer(t, client, false)
	doc := linesDoc("a", "b")

	res := r.Run(context.Background(), doc)
	if !res.Failed {
		t.Fatalf("res=%+v", res)
	}
	if !strings.Contains(res.Text, "Summarization failed") || !strings.Contains(res.Text, "upstream 500") {
		t.Fatalf("text=%q", res.Text)
	}
	if !strings.HasPrefix(res.Text, "## February 2021\n\n") {
		t.Fatalf("failure block must still carry the heading: %q", res.Text)
	}
	if _, ok := r.Cache.Get(doc.Key); ok {
		t.Fatalf("failed run must not write the cache")
	}
}

func TestRun_DigestSplicedAndCached(t *testing.T) {
	t.Parallel()

	client := &scriptedClient{
		onSummarize: func(instructions, _ string) (string, error) {
			if instructions == "digest" {
				return "One crisp sentence.", nil
			}
			return "The month's full summary in prose.", nil
		},
	}
	r := newTestSummarizer(t, client, true)
	doc := linesDoc("a", "b")

	res := r.Run(context.Background(), doc)
	if !strings.Contains(res.Text, "*One crisp sentence.*\n\n") {
		t.Fatalf("text=%q", res.Text)
	}
	idx := strings.Index(res.Text, "*One crisp sentence.*")
	if head := strings.Index(res.Text, "## February 2021"); head == -1 || idx < head {
		t.Fatalf("digest must follow the heading: %q", res.Text)
	}

	// Cached summary and cached digest: no client calls on the second run.
	before := client.summarizeCalls
	res2 := r.Run(context.Background(), doc)
	if client.summarizeCalls != before {
		t.Fatalf("second run made %d calls", client.summarizeCalls-before)
	}
	if res2.Text != res.Text {
		t.Fatalf("text diverged")
	}
}

func TestRun_DigestFailureUsesPlaceholderUncached(t *testing.T) {
	t.Parallel()

	client := &scriptedClient{
		onSummarize: func(instructions, _ string) (string, error) {
			if instructions == "digest" {
				return "", &ClientError{Kind: KindService, Err: errors.New("digest down")}
			}
			return "The month's full summary in prose.", nil
		},
	}
	r := newTestSummarizer(t, client, true)
	doc := linesDoc("a", "b")

	res := r.Run(context.Background(), doc)
	if res.Failed {
		t.Fatalf("digest failure must not fail the document, res=%+v", res)
	}
	if !strings.Contains(res.Text, "*"+placeholderDigest+"*") {
		t.Fatalf("text=%q", res.Text)
	}
	if _, ok := r.Cache.GetDigest(doc.Key); ok {
		t.Fatalf("placeholder digest must not be cached")
	}
}
