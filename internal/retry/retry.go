// Package retry holds the one retry discipline used across the bot:
// run an operation, and on failure either wait for the network to come
// back or sleep a fixed interval, forever or for a bounded number of
// attempts.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

var ErrExhausted = errors.New("retry attempts exhausted")

// Gate is consulted after every failure. When Probe reports the network
// down, Await blocks until it is back and the interval sleep is skipped.
type Gate interface {
	Probe(ctx context.Context) bool
	Await(ctx context.Context) error
}

type Policy struct {
	Name     string
	Interval time.Duration
	// Attempts bounds the number of tries. Zero retries forever.
	Attempts int
	Gate     Gate
	Clock    Clock
	Log      logrus.FieldLogger
}

type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent wraps err so that Do returns it immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func (p Policy) clock() Clock {
	if p.Clock == nil {
		return SystemClock{}
	}
	return p.Clock
}

// Do runs op until it succeeds, returns a Permanent error, the context is
// cancelled, or the attempt budget is spent.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	for attempt := 1; ; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if p.Attempts > 0 && attempt >= p.Attempts {
			return fmt.Errorf("%s: %w after %d attempts: %w", p.Name, ErrExhausted, attempt, err)
		}

		if p.Log != nil {
			p.Log.WithFields(logrus.Fields{
				"attempt": attempt,
				"error":   err.Error(),
			}).Warnf("%s failed, retrying", p.Name)
		}

		if p.Gate != nil && !p.Gate.Probe(ctx) {
			if err := p.Gate.Await(ctx); err != nil {
				return err
			}
			continue
		}

		if err := p.clock().Sleep(ctx, p.Interval); err != nil {
			return err
		}
	}
}

// Value is Do for operations that produce a result.
func Value[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := p.Do(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
