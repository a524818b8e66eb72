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
	"errors"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vs49688/imap2group/crawler"
	"github.com/vs49688/imap2group/model"
	"github.com/vs49688/imap2group/queue"
	"github.com/vs49688/imap2group/session"
	"github.com/vs49688/imap2group/stats"
	"github.com/vs49688/imap2group/worker"
)

// NewMailPump connects to the source and starts the run. A connection
// failure is returned here; everything after that is reported on DoneChan.
func NewMailPump(cfg *Config) (*MailPump, error) {
	st, err := stats.NewRunStats(cfg.Registerer)
	if err != nil {
		return nil, err
	}

	guard, err := session.Open(&cfg.Source, cfg.SourceFactory)
	if err != nil {
		return nil, err
	}

	q := queue.New[queue.Item]()
	account := model.NewAccount(guard, cfg.Criteria)

	pump := &MailPump{
		runID:   uuid.NewString(),
		started: time.Now(),
		account: account,
		queue:   q,
		stats:   st,
		crawler: crawler.New(&crawler.Config{
			Account:          account,
			Queue:            q,
			Stats:            st,
			MaxPressure:      cfg.MaxPressure,
			PressureInterval: cfg.PressureInterval,
		}),
		worker: worker.New(&worker.Config{
			Queue:          q,
			Sink:           cfg.Sink,
			Stats:          st,
			RateLimit:      cfg.RateLimit,
			MaxRetries:     cfg.MaxRetries,
			ReportInterval: cfg.ReportInterval,
			PollTimeout:    cfg.PollTimeout,
		}),
		crawlDone: make(chan error, 1),
	}

	log.WithFields(log.Fields{
		"run_id":       pump.runID,
		"host":         cfg.Source.HostPort,
		"max_pressure": cfg.MaxPressure,
		"rate_limit":   cfg.RateLimit,
		"max_retries":  cfg.MaxRetries,
	}).Info("pump_start")

	var ctx context.Context
	ctx, pump.cancelCrawl = context.WithCancel(context.Background())

	pump.worker.Start()
	go func() {
		_, err := pump.crawler.Run(ctx)
		pump.crawlDone <- err
	}()

	go func() { cfg.DoneChan <- pump.tick(cfg.StopChan) }()

	return pump, nil
}

func (pump *MailPump) RunID() string {
	return pump.runID
}

// Summary is only meaningful once DoneChan has fired.
func (pump *MailPump) Summary() stats.Summary {
	pump.mu.Lock()
	defer pump.mu.Unlock()
	return pump.summary
}

// Close logs out of the source. Call it once the pump is done.
func (pump *MailPump) Close() {
	pump.cancelCrawl()
	pump.worker.Stop()
	if err := pump.account.Close(); err != nil {
		log.WithError(err).WithField("run_id", pump.runID).Warn("pump_close_failed")
	}
}

func (pump *MailPump) tick(ch <-chan struct{}) error {
	var crawlErr error
	crawlDone := pump.crawlDone

	for {
		select {
		case err := <-crawlDone:
			crawlDone = nil
			if err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).WithField("run_id", pump.runID).Error("pump_crawl_failed")
				crawlErr = err
			}
			log.WithField("run_id", pump.runID).Trace("pump_crawl_finished")
			pump.worker.Drain()

		case <-ch:
			ch = nil
			log.WithField("run_id", pump.runID).Info("pump_stop_requested")
			pump.cancelCrawl()
			pump.worker.Stop()

		case <-pump.worker.Done():
			pump.cancelCrawl()
			if crawlDone != nil {
				<-crawlDone
			}

			summary := pump.stats.Summarize(pump.queue.Len(), time.Since(pump.started))

			pump.mu.Lock()
			pump.summary = summary
			pump.mu.Unlock()

			log.WithFields(summary.Fields()).WithField("run_id", pump.runID).Info("pump_done")
			return crawlErr
		}
	}
}
