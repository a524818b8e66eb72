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

package pump

import (
	"context"
	"sync"
	"time"

	"github.com/emersion/go-imap"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vs49688/imap2group/crawler"
	imap2 "github.com/vs49688/imap2group/imap"
	"github.com/vs49688/imap2group/model"
	"github.com/vs49688/imap2group/queue"
	"github.com/vs49688/imap2group/sink"
	"github.com/vs49688/imap2group/stats"
	"github.com/vs49688/imap2group/worker"
)

type Config struct {
	Source        imap2.ConnectionConfig
	SourceFactory imap2.ClientFactory
	Criteria      *imap.SearchCriteria

	Sink       sink.Sink
	Registerer prometheus.Registerer

	RateLimit        float64
	MaxRetries       int
	ReportInterval   int
	MaxPressure      int
	PressureInterval time.Duration
	PollTimeout      time.Duration

	DoneChan chan<- error
	StopChan <-chan struct{}
}

// MailPump moves every message on the source account into the sink.
type MailPump struct {
	runID   string
	started time.Time

	account *model.Account
	queue   *queue.Queue[queue.Item]
	stats   *stats.RunStats
	crawler *crawler.Crawler
	worker  *worker.Worker

	cancelCrawl context.CancelFunc
	crawlDone   chan error

	mu      sync.Mutex
	summary stats.Summary
}
