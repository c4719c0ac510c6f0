package fetcher

import (
	"context"
	"fmt"
	"time"

	"pricetrack/internal/assert"
	"pricetrack/internal/telemetry"

	"github.com/cenkalti/backoff/v4"
)

const (
	report_fetcher_retry = "fetcher.retry"
)

// RetryPolicy bounds how often a transient failure is retried.
type RetryPolicy struct {
	// MaxAttempts counts the first request, values below 1 mean 1.
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts:     3,
	InitialInterval: 500 * time.Millisecond,
	MaxInterval:     5 * time.Second,
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		exp.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		exp.MaxInterval = p.MaxInterval
	}
	exp.MaxElapsedTime = 0

	retries := p.MaxAttempts - 1
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(retries)), ctx)
}

// RetryError wraps the last error once no attempt succeeded.
type RetryError struct {
	Attempts int
	Err      error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *RetryError) Unwrap() error {
	return e.Err
}

// Doer is anything that can perform a single fetch, *Fetcher is the
// production implementation.
type Doer interface {
	Fetch(ctx context.Context, req Request) (RawDocument, error)
}

// Retrying retries transient failures of the wrapped Doer with exponential
// backoff. Non-transient failures and cancellation return immediately.
type Retrying struct {
	inner  Doer
	policy RetryPolicy
	tel    telemetry.API
}

func NewRetrying(inner Doer, policy RetryPolicy, tel telemetry.API) Retrying {
	assert.NotNil(inner)
	assert.NotNil(tel)
	return Retrying{inner: inner, policy: policy, tel: tel}
}

func (r Retrying) Fetch(ctx context.Context, req Request) (RawDocument, error) {
	attempts := 0
	op := func() (RawDocument, error) {
		attempts++
		doc, err := r.inner.Fetch(ctx, req)
		if err != nil && !IsTransient(err) {
			return doc, backoff.Permanent(err)
		}
		return doc, err
	}
	notify := func(err error, wait time.Duration) {
		r.tel.ReportWarning(
			report_fetcher_retry,
			telemetry.KV{Key: "url", Value: req.URL},
			telemetry.KV{Key: "attempt", Value: attempts},
			telemetry.KV{Key: "wait", Value: wait.String()},
			err,
		)
	}

	doc, err := backoff.RetryNotifyWithData(op, r.policy.backOff(ctx), notify)
	if err != nil {
		return RawDocument{}, &RetryError{Attempts: attempts, Err: err}
	}
	doc.Attempts = attempts
	return doc, nil
}
