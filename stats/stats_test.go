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
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunStatsCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	s, err := NewRunStats(reg)
	require.NoError(t, err)

	wg := sync.WaitGroup{}
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%3 == 0 {
				s.RecordFailure()
			} else {
				s.RecordSuccess()
			}
		}(i)
	}
	wg.Wait()

	s.RecordRetry()
	s.RecordDiscovered(10)
	s.RecordDiscovered(0)
	s.ObserveQueueDepth(4)

	assert.Equal(t, uint64(6), s.Success())
	assert.Equal(t, uint64(4), s.Failure())
	assert.Equal(t, uint64(10), s.Processed())
	assert.Equal(t, uint64(1), s.Retries())
	assert.Equal(t, uint64(10), s.Discovered())

	assert.Equal(t, 6.0, testutil.ToFloat64(s.uploads.WithLabelValues("success")))
	assert.Equal(t, 4.0, testutil.ToFloat64(s.uploads.WithLabelValues("failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.retriesCounter))
	assert.Equal(t, 10.0, testutil.ToFloat64(s.discoveredCounter))
	assert.Equal(t, 4.0, testutil.ToFloat64(s.queueDepthGauge))

	n, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestDoubleRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewRunStats(reg)
	require.NoError(t, err)

	_, err = NewRunStats(reg)
	assert.Error(t, err)
}

func TestNilRegisterer(t *testing.T) {
	s, err := NewRunStats(nil)
	require.NoError(t, err)

	s.RecordSuccess()
	assert.Equal(t, uint64(1), s.Processed())
}

func TestSummary(t *testing.T) {
	s, err := NewRunStats(nil)
	require.NoError(t, err)

	s.RecordDiscovered(5)
	s.RecordSuccess()
	s.RecordSuccess()
	s.RecordFailure()

	sum := s.Summarize(2, 1500*time.Millisecond)
	assert.Equal(t, Summary{
		Success:   2,
		Failure:   1,
		Expected:  5,
		Abandoned: 2,
		Elapsed:   1500 * time.Millisecond,
	}, sum)
	assert.Equal(t, "2 succeeded, 1 failed, 5 expected, 2 abandoned in 1.5s", sum.String())
	assert.Equal(t, "1.5s", sum.Fields()["elapsed"])
}
