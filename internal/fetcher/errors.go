package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

type ErrorKind int

const (
	ErrNetwork ErrorKind = iota
	ErrTimeout
	ErrHTTPStatus
)

func (k ErrorKind) String() string {
	switch k {
	case ErrNetwork:
		return "network"
	case ErrTimeout:
		return "timeout"
	case ErrHTTPStatus:
		return "http_status"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// FetchError is the only error type returned by Fetch.
type FetchError struct {
	Kind       ErrorKind
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Kind == ErrHTTPStatus {
		return fmt.Sprintf("fetch %s: http status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Transient reports if trying the same request again could succeed.
func (e *FetchError) Transient() bool {
	switch e.Kind {
	case ErrNetwork, ErrTimeout:
		return true
	case ErrHTTPStatus:
		return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
	}
	return false
}

// IsTransient reports if err is a transient FetchError. Cancellation by the
// caller is never transient.
func IsTransient(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var fe *FetchError
	return errors.As(err, &fe) && fe.Transient()
}

func classify(url string, err error) *FetchError {
	kind := ErrNetwork
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		kind = ErrTimeout
	}
	return &FetchError{Kind: kind, URL: url, Err: err}
}
