package extract

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

const retryInitialInterval = 200 * time.Millisecond

// WithRetry wraps an extractor so transient failures are retried with
// exponential backoff. The last error is returned once maxRetries
// attempts are exhausted.
func WithRetry(fn ExtractFunc, maxRetries uint64) ExtractFunc {
	return func(text string) ([]Span, error) {
		return backoff.RetryWithData(func() ([]Span, error) {
			return fn(text)
		}, newBackoff(maxRetries))
	}
}

// WithEmbedRetry wraps an embedder the same way
func WithEmbedRetry(fn EmbedFunc, maxRetries uint64) EmbedFunc {
	return func(text string) ([]float32, error) {
		return backoff.RetryWithData(func() ([]float32, error) {
			return fn(text)
		}, newBackoff(maxRetries))
	}
}

func newBackoff(maxRetries uint64) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = retryInitialInterval
	return backoff.WithMaxRetries(b, maxRetries)
}
