package assist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/CageChen/cloverdrive/internal/metrics"
)

// Decision is what a Policy does after a failed attempt.
type Decision int

const (
	// Next moves on to the following backend.
	Next Decision = iota
	// Retry tries the same backend again within its retry budget, then moves on.
	Retry
	// Abort stops immediately and returns the error.
	Abort
)

func (d Decision) String() string {
	switch d {
	case Next:
		return "next"
	case Retry:
		return "retry"
	case Abort:
		return "abort"
	}
	return "unknown"
}

// Classifier maps an attempt's error to a Decision.
type Classifier func(error) Decision

// Attempt records one backend's final failure.
type Attempt struct {
	Backend string
	Err     error
}

// FallbackError is returned when every backend failed without an Abort.
type FallbackError struct {
	Attempts []Attempt
}

func (e *FallbackError) Error() string {
	if len(e.Attempts) == 0 {
		return "assist: no backends configured"
	}
	last := e.Attempts[len(e.Attempts)-1]
	return fmt.Sprintf("assist: all %d backends failed, last (%s): %v", len(e.Attempts), last.Backend, last.Err)
}

// Unwrap exposes every attempt's error to errors.Is and errors.As.
func (e *FallbackError) Unwrap() []error {
	errs := make([]error, len(e.Attempts))
	for i, a := range e.Attempts {
		errs[i] = a.Err
	}
	return errs
}

// Policy tries an ordered list of backends until one succeeds.
type Policy struct {
	Backends []string
	Classify Classifier
	// Retries is the number of extra attempts a backend gets for errors
	// classified as Retry.
	Retries uint64
	// NewBackOff builds the wait schedule between retries of one backend.
	NewBackOff func() backoff.BackOff
}

func (p Policy) classify(err error) Decision {
	if p.Classify == nil {
		return DefaultClassifier(err)
	}
	return p.Classify(err)
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	var b backoff.BackOff
	if p.NewBackOff != nil {
		b = p.NewBackOff()
	} else {
		eb := backoff.NewExponentialBackOff()
		eb.InitialInterval = 500 * time.Millisecond
		eb.MaxElapsedTime = 10 * time.Second
		b = eb
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, p.Retries), ctx)
}

// Run calls fn with each backend in order and returns the first success
// along with the backend that produced it.
func Run[T any](ctx context.Context, p Policy, fn func(ctx context.Context, backend string) (T, error)) (T, string, error) {
	var zero T
	var attempts []Attempt

	for _, name := range p.Backends {
		var result T
		op := func() error {
			r, err := fn(ctx, name)
			if err == nil {
				metrics.RecordAssistAttempt(name, metrics.ResultOK)
				result = r
				return nil
			}
			metrics.RecordAssistAttempt(name, metrics.ResultError)
			if p.classify(err) == Retry {
				return err
			}
			return backoff.Permanent(err)
		}

		err := backoff.Retry(op, p.backOff(ctx))
		if err == nil {
			return result, name, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, name, ctxErr
		}
		if p.classify(err) == Abort {
			return zero, name, err
		}
		attempts = append(attempts, Attempt{Backend: name, Err: err})
	}

	return zero, "", &FallbackError{Attempts: attempts}
}

// DefaultClassifier aborts on authorization problems and cancellation,
// retries rate limiting and server errors, and moves on otherwise.
func DefaultClassifier(err error) Decision {
	if errors.Is(err, ErrAuthorization) || errors.Is(err, context.Canceled) {
		return Abort
	}

	var se *StatusError
	if errors.As(err, &se) {
		switch {
		case se.Code == 429 || se.Code >= 500:
			return Retry
		default:
			return Next
		}
	}

	if authFailureText(err.Error()) {
		return Abort
	}
	return Next
}
