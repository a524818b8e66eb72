/*
 * MailPump - Copyright (C) 2022 Zane van Iperen.
 *    Contact: zane@zanevaniperen.com
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU General Public License version 2, and only
 * version 2 as published by the Free Software Foundation.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program; if not, write to the Free Software
 * Foundation, Inc., 59 Temple Place, Suite 330, Boston, MA  02111-1307  USA
 */

package stats

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
)

// RunStats counts outcomes for one run. The counters only ever go up and
// are safe to read from any goroutine.
type RunStats struct {
	success    atomic.Uint64
	failure    atomic.Uint64
	retries    atomic.Uint64
	discovered atomic.Uint64
	queueDepth atomic.Int64

	uploads           *prometheus.CounterVec
	retriesCounter    prometheus.Counter
	discoveredCounter prometheus.Counter
	queueDepthGauge   prometheus.Gauge
}

// NewRunStats creates the counters, registering the Prometheus collectors
// with reg if it is non-nil.
func NewRunStats(reg prometheus.Registerer) (*RunStats, error) {
	s := &RunStats{
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "imap2group_uploads_total",
			Help: "Messages that reached a terminal outcome, partitioned by outcome.",
		}, []string{"outcome"}),
		retriesCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "imap2group_retries_total",
			Help: "Messages requeued after a transient failure.",
		}),
		discoveredCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "imap2group_discovered_total",
			Help: "Messages found by the crawler.",
		}),
		queueDepthGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "imap2group_queue_depth",
			Help: "Work items waiting for the worker.",
		}),
	}

	if reg == nil {
		return s, nil
	}

	for _, c := range []prometheus.Collector{
		s.uploads,
		s.retriesCounter,
		s.discoveredCounter,
		s.queueDepthGauge,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register stats collector: %w", err)
		}
	}

	return s, nil
}

func (s *RunStats) RecordSuccess() {
	s.success.Add(1)
	s.uploads.WithLabelValues("success").Inc()
}

func (s *RunStats) RecordFailure() {
	s.failure.Add(1)
	s.uploads.WithLabelValues("failure").Inc()
}

func (s *RunStats) RecordRetry() {
	s.retries.Add(1)
	s.retriesCounter.Inc()
}

func (s *RunStats) RecordDiscovered(n int) {
	if n <= 0 {
		return
	}
	s.discovered.Add(uint64(n))
	s.discoveredCounter.Add(float64(n))
}

func (s *RunStats) ObserveQueueDepth(n int) {
	s.queueDepth.Store(int64(n))
	s.queueDepthGauge.Set(float64(n))
}

func (s *RunStats) Success() uint64 {
	return s.success.Load()
}

func (s *RunStats) Failure() uint64 {
	return s.failure.Load()
}

func (s *RunStats) Retries() uint64 {
	return s.retries.Load()
}

func (s *RunStats) Discovered() uint64 {
	return s.discovered.Load()
}

// Processed is the number of messages with a terminal outcome.
func (s *RunStats) Processed() uint64 {
	return s.Success() + s.Failure()
}

// Fields is the periodic status line.
func (s *RunStats) Fields() log.Fields {
	return log.Fields{
		"success":     s.Success(),
		"failure":     s.Failure(),
		"processed":   s.Processed(),
		"retries":     s.Retries(),
		"queue_depth": s.queueDepth.Load(),
	}
}

// Summary is printed once the run has finished.
type Summary struct {
	Success   uint64
	Failure   uint64
	Expected  uint64
	Abandoned int
	Elapsed   time.Duration
}

func (s *RunStats) Summarize(abandoned int, elapsed time.Duration) Summary {
	return Summary{
		Success:   s.Success(),
		Failure:   s.Failure(),
		Expected:  s.Discovered(),
		Abandoned: abandoned,
		Elapsed:   elapsed,
	}
}

func (s Summary) Fields() log.Fields {
	return log.Fields{
		"success":   s.Success,
		"failure":   s.Failure,
		"expected":  s.Expected,
		"abandoned": s.Abandoned,
		"elapsed":   s.Elapsed.Round(time.Millisecond).String(),
	}
}

func (s Summary) String() string {
	return fmt.Sprintf("%d succeeded, %d failed, %d expected, %d abandoned in %v",
		s.Success, s.Failure, s.Expected, s.Abandoned, s.Elapsed.Round(time.Millisecond))
}
