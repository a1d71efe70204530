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
	"context"
	"time"

	"go.uber.org/zap"
)

// Stats is a point-in-time view of the provider.
type Stats struct {
	MaxTotal     int
	Open         int // Idle + InUse
	Idle         int
	InUse        int
	Created      int64
	Destroyed    int64
	Waits        int64 // acquires that had to wait for capacity
	Timeouts     int64
	WaitDuration time.Duration
	Breaker      BreakerState
	Closed       bool
}

// Stats returns the current counters.
func (p *Provider) Stats() Stats {
	p.mu.Lock()
	idle, inUse, closed := len(p.idle), p.inUse, p.closed
	p.mu.Unlock()

	return Stats{
		MaxTotal:     p.cfg.Pool.MaxTotal,
		Open:         idle + inUse,
		Idle:         idle,
		InUse:        inUse,
		Created:      p.created.Load(),
		Destroyed:    p.destroyed.Load(),
		Waits:        p.waits.Load(),
		Timeouts:     p.timeouts.Load(),
		WaitDuration: time.Duration(p.waitNanos.Load()),
		Breaker:      p.breaker.State(),
		Closed:       closed,
	}
}

// startReaper launches the goroutine closing idle connections beyond
// min_idle that have not been used for max_idle_time. A private in-memory
// database lives only as long as its connection and is never reaped.
func (p *Provider) startReaper() {
	maxIdle := p.cfg.Pool.MaxIdleTime
	if maxIdle <= 0 || p.cfg.PrivateMemory() {
		return
	}
	interval := maxIdle / 2
	if interval > time.Minute {
		interval = time.Minute
	}
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	p.reaperCancel = cancel
	p.reaperDone = done

	go func() {
		defer close(done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := p.reapIdle(time.Now()); n > 0 {
					p.logger.Debug("reaped idle connections", zap.Int("count", n))
				}
			}
		}
	}()
}

func (p *Provider) stopReaper() {
	if p.reaperCancel == nil {
		return
	}
	p.reaperCancel()
	<-p.reaperDone
}

// reapIdle closes expired idle connections, oldest first, keeping min_idle.
func (p *Provider) reapIdle(now time.Time) int {
	cutoff := now.Add(-p.cfg.Pool.MaxIdleTime)

	p.mu.Lock()
	var expired []*Conn
	keep := p.idle[:0]
	excess := len(p.idle) - p.cfg.Pool.MinIdle
	// the front of the list holds the least recently used connections
	for _, c := range p.idle {
		if excess > 0 && c.lastUsed.Before(cutoff) {
			expired = append(expired, c)
			excess--
			continue
		}
		keep = append(keep, c)
	}
	for i := len(keep); i < len(p.idle); i++ {
		p.idle[i] = nil
	}
	p.idle = keep
	p.mu.Unlock()

	for _, c := range expired {
		p.destroy(c, false, "idle timeout")
	}
	return len(expired)
}
