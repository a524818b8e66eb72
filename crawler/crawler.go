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

package crawler

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vs49688/imap2group/model"
	"github.com/vs49688/imap2group/queue"
	"github.com/vs49688/imap2group/stats"
)

const DefaultPressureInterval = 100 * time.Millisecond

type Config struct {
	Account *model.Account
	Queue   *queue.Queue[queue.Item]
	Stats   *stats.RunStats

	// MaxPressure is the queue depth at which the crawler stops
	// submitting. Zero disables backpressure.
	MaxPressure int

	// PressureInterval is how long to wait between queue depth checks
	// while over MaxPressure.
	PressureInterval time.Duration
}

// Crawler walks every folder on the account and feeds its mailpieces
// into the work queue.
type Crawler struct {
	cfg Config
}

func New(cfg *Config) *Crawler {
	c := &Crawler{cfg: *cfg}
	if c.cfg.PressureInterval <= 0 {
		c.cfg.PressureInterval = DefaultPressureInterval
	}

	return c
}

// Run enqueues everything and returns the number of items submitted.
// Failing to list folders ends the crawl with an error; a folder that
// can't be searched is logged and skipped. Cancelling ctx stops
// submission immediately, items already queued are left alone.
func (c *Crawler) Run(ctx context.Context) (int, error) {
	folders, err := c.cfg.Account.Folders()
	if err != nil {
		return 0, fmt.Errorf("list folders: %w", err)
	}

	log.WithField("folders", len(folders)).Info("crawler_start")

	total := 0
	for _, f := range folders {
		n, err := c.crawlFolder(ctx, f)
		total += n
		if err != nil {
			log.WithFields(log.Fields{
				"folder":   f.Name(),
				"enqueued": total,
			}).Info("crawler_cancelled")
			return total, err
		}
	}

	log.WithField("enqueued", total).Info("crawler_done")
	return total, nil
}

func (c *Crawler) crawlFolder(ctx context.Context, f *model.Folder) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	pieces, err := f.Mailpieces()
	if err != nil {
		log.WithError(err).WithField("folder", f.Name()).Error("crawler_folder_failed")
		return 0, nil
	}

	log.WithFields(log.Fields{
		"folder":      f.Name(),
		"count":       len(pieces),
		"queue_depth": c.cfg.Queue.Len(),
	}).Info("crawler_folder_start")

	c.cfg.Stats.RecordDiscovered(len(pieces))

	for i, p := range pieces {
		if err := c.waitForRoom(ctx); err != nil {
			return i, err
		}

		c.cfg.Queue.Push(queue.Item{Piece: p})
		c.cfg.Stats.ObserveQueueDepth(c.cfg.Queue.Len())
	}

	return len(pieces), nil
}

// waitForRoom blocks while the queue is at or over MaxPressure.
func (c *Crawler) waitForRoom(ctx context.Context) error {
	if c.cfg.MaxPressure <= 0 {
		return ctx.Err()
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		depth := c.cfg.Queue.Len()
		if depth < c.cfg.MaxPressure {
			return nil
		}

		log.WithField("queue_depth", depth).Trace("crawler_backpressure")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.cfg.PressureInterval):
		}
	}
}
