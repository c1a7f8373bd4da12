package recap

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies summarizer failures for the escalation logic. The
// three-way branch (success / size limit / service failure) is the whole
// contract; callers never inspect error text.
type ErrorKind int

const (
	// KindService covers every non-recoverable failure: network, quota,
	// malformed responses. Not retried by the state machine.
	KindService ErrorKind = iota

	// KindSizeLimit means the input was too large for the model and the
	// document should be split and retried.
	KindSizeLimit
)

func (k ErrorKind) String() string {
	switch k {
	case KindSizeLimit:
		return "size_limit"
	default:
		return "service"
	}
}

// ClientError wraps a summarizer failure with its classification.
type ClientError struct {
	Kind ErrorKind
	Err  error
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("summarizer %s error: %v", e.Kind, e.Err)
}

func (e *ClientError) Unwrap() error {
	return e.Err
}

// IsSizeLimit reports whether err is a summarizer size-limit failure.
func IsSizeLimit(err error) bool {
	var ce *ClientError
	return errors.As(err, &ce) && ce.Kind == KindSizeLimit
}

// SummarizerClient is the external completion service consumed by the
// engine. Implementations must classify failures as *ClientError; both calls
// block until the service responds.
type SummarizerClient interface {
	// Summarize generates a summary of input under the given instructions.
	Summarize(ctx context.Context, instructions, input string) (string, error)

	// Combine merges several partial summaries into one cohesive text.
	Combine(ctx context.Context, instructions string, parts []string) (string, error)
}
