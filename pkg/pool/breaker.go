// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package pool

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/dbkit/pkg/sqlerr"
)

// BreakerState is the state of the connect circuit breaker.
type BreakerState int

const (
	BreakerClosed   BreakerState = iota // connects allowed
	BreakerOpen                         // connects rejected until the cooldown passes
	BreakerHalfOpen                     // one probe connect allowed
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

const maxBreakerCooldown = time.Minute

// breaker guards physical connects. After threshold consecutive failures it
// opens; the cooldown doubles on every reopen, capped at maxBreakerCooldown.
// A threshold of zero disables it.
type breaker struct {
	mu               sync.Mutex
	state            BreakerState
	failures         int
	consecutiveOpens int
	openedAt         time.Time
	probing          bool
	lastErr          error

	threshold int
	cooldown  time.Duration
	backend   string
	logger    *zap.Logger
	now       func() time.Time
}

func newBreaker(threshold int, cooldown time.Duration, backend string, logger *zap.Logger) *breaker {
	return &breaker{
		threshold: threshold,
		cooldown:  cooldown,
		backend:   backend,
		logger:    logger,
		now:       time.Now,
	}
}

// allow reports whether a connect may be attempted.
func (b *breaker) allow() error {
	if b.threshold <= 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerOpen:
		timeout := b.timeoutLocked()
		elapsed := b.now().Sub(b.openedAt)
		if elapsed < timeout {
			return &sqlerr.Error{
				Kind:    sqlerr.KindConnectionLost,
				Op:      "connect",
				Backend: b.backend,
				Err:     &BreakerOpenError{Failures: b.failures, RetryAfter: timeout - elapsed, Last: b.lastErr},
			}
		}
		b.setStateLocked(BreakerHalfOpen)
		b.probing = true
		return nil
	case BreakerHalfOpen:
		if b.probing {
			return &sqlerr.Error{
				Kind:    sqlerr.KindConnectionLost,
				Op:      "connect",
				Backend: b.backend,
				Err:     &BreakerOpenError{Failures: b.failures, Last: b.lastErr},
			}
		}
		b.probing = true
		return nil
	}
	return nil
}

func (b *breaker) success() {
	if b.threshold <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	b.probing = false
	if b.state != BreakerClosed {
		b.consecutiveOpens = 0
		b.setStateLocked(BreakerClosed)
	}
}

func (b *breaker) failure(err error) {
	if b.threshold <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.lastErr = err
	b.probing = false

	switch b.state {
	case BreakerClosed:
		b.logger.Warn("connect failed",
			zap.String("backend", b.backend),
			zap.Error(err),
			zap.Int("failure_count", b.failures),
			zap.Int("threshold", b.threshold))
		if b.failures >= b.threshold {
			b.consecutiveOpens++
			b.openedAt = b.now()
			b.setStateLocked(BreakerOpen)
		}
	case BreakerHalfOpen:
		// a failed probe reopens immediately
		b.consecutiveOpens++
		b.openedAt = b.now()
		b.setStateLocked(BreakerOpen)
	}
}

func (b *breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *breaker) setStateLocked(s BreakerState) {
	if b.state == s {
		return
	}
	from := b.state
	b.state = s
	b.logger.Info("connect breaker state changed",
		zap.String("backend", b.backend),
		zap.String("from", from.String()),
		zap.String("to", s.String()),
		zap.Int("consecutive_opens", b.consecutiveOpens),
		zap.Duration("cooldown", b.timeoutLocked()))
}

// timeoutLocked is cooldown * 2^(opens-1), capped.
func (b *breaker) timeoutLocked() time.Duration {
	if b.consecutiveOpens <= 1 {
		return b.cooldown
	}
	delay := b.cooldown * (1 << uint(b.consecutiveOpens-1))
	if delay > maxBreakerCooldown || delay <= 0 {
		delay = maxBreakerCooldown
	}
	if delay < b.cooldown {
		delay = b.cooldown
	}
	return delay
}

// BreakerOpenError is returned while the connect breaker rejects connects.
type BreakerOpenError struct {
	Failures   int
	RetryAfter time.Duration
	Last       error
}

func (e *BreakerOpenError) Error() string {
	msg := "connect breaker open after consecutive failures"
	if e.RetryAfter > 0 {
		msg += ", retry after " + e.RetryAfter.Round(time.Millisecond).String()
	}
	if e.Last != nil {
		msg += ": " + e.Last.Error()
	}
	return msg
}
