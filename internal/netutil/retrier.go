// Package netutil holds small networking helpers shared across the module.
package netutil

import (
	"errors"
	"time"

	"github.com/skycoin/skycoin/src/util/logging"
)

// ErrAttemptsExhausted is returned by Do when the Retrier is bounded to
// fewer than one attempt, so f never ran. When attempts were made and all
// failed, Do returns the last attempt's error instead.
var ErrAttemptsExhausted = errors.New("netutil: retry attempts exhausted")

// RetryFunc is one attempt of the retried operation.
type RetryFunc func() error

// Retrier runs an operation up to a fixed number of attempts with a fixed
// delay between them. Whitelisted errors abort immediately.
type Retrier struct {
	attempts     int
	delay        time.Duration
	errWhitelist map[error]struct{}
	log          *logging.Logger
}

// NewRetrier returns a Retrier bounded to attempts tries.
func NewRetrier(attempts int, delay time.Duration) *Retrier {
	return &Retrier{
		attempts:     attempts,
		delay:        delay,
		errWhitelist: make(map[error]struct{}),
		log:          logging.MustGetLogger("netutil"),
	}
}

// WithErrWhitelist sets errors that are returned without further retries.
func (r *Retrier) WithErrWhitelist(errs ...error) *Retrier {
	m := make(map[error]struct{})
	for _, err := range errs {
		m[err] = struct{}{}
	}
	r.errWhitelist = m
	return r
}

// Do runs f until it succeeds or attempts are exhausted.
func (r *Retrier) Do(f RetryFunc) error {
	var err error
	for i := 0; i < r.attempts; i++ {
		if i > 0 && r.delay > 0 {
			time.Sleep(r.delay)
		}
		if err = f(); err == nil {
			return nil
		}
		if r.isWhitelisted(err) {
			return err
		}
		r.log.Debugf("attempt %d/%d failed: %v", i+1, r.attempts, err)
	}
	if err != nil {
		return err
	}
	return ErrAttemptsExhausted
}

func (r *Retrier) isWhitelisted(err error) bool {
	_, ok := r.errWhitelist[err]
	return ok
}
