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

package worker

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/vs49688/imap2group/queue"
	"github.com/vs49688/imap2group/sink"
)

// Decide applies the retry policy. attempt is the number of failed
// attempts the item had before this one.
func Decide(outcome Outcome, attempt int, maxRetries int) Action {
	switch outcome {
	case OutcomeSuccess:
		return ActionDone
	case OutcomeTransientFailure:
		if attempt < maxRetries {
			return ActionRequeue
		}
		return ActionFail
	default:
		return ActionFail
	}
}

func New(cfg *Config) *Worker {
	w := &Worker{
		cfg:  *cfg,
		done: make(chan struct{}),
	}

	if w.cfg.PollTimeout <= 0 {
		w.cfg.PollTimeout = DefaultPollTimeout
	}

	if w.cfg.MaxRetries < 0 {
		w.cfg.MaxRetries = 0
	}

	limit := rate.Inf
	if w.cfg.RateLimit > 0 {
		limit = rate.Limit(w.cfg.RateLimit)
	}
	w.limiter = rate.NewLimiter(limit, 1)

	w.ctx, w.cancel = context.WithCancel(context.Background())
	// Polling is also cut short by Drain, so an idle worker notices at once.
	w.pollCtx, w.endPoll = context.WithCancel(w.ctx)
	return w
}

// Start launches the worker goroutine. Subsequent calls do nothing.
func (w *Worker) Start() {
	w.start.Do(func() { go w.run() })
}

// Stop asks the worker to finish its current item and exit. Anything
// still in the queue is left there.
func (w *Worker) Stop() {
	if w.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) {
		log.Debug("worker_stop_requested")
	}
	w.cancel()
}

// Drain makes the worker exit once the queue is empty. Only call it once
// nothing else will be pushed, retries aside.
func (w *Worker) Drain() {
	w.draining.Store(true)
	w.endPoll()
}

func (w *Worker) Done() <-chan struct{} {
	return w.done
}

func (w *Worker) State() State {
	return State(w.state.Load())
}

func (w *Worker) run() {
	defer close(w.done)
	defer w.cancel()

	log.WithFields(log.Fields{
		"rate_limit":  w.cfg.RateLimit,
		"max_retries": w.cfg.MaxRetries,
	}).Debug("worker_start")

	for w.State() == StateRunning {
		item, err := w.cfg.Queue.Pop(w.pollCtx, w.cfg.PollTimeout)
		if err != nil {
			if w.draining.Load() && w.cfg.Queue.Len() == 0 {
				break
			}
			log.WithError(err).Trace("worker_poll")
			continue
		}

		w.process(item)

		if w.draining.Load() && w.cfg.Queue.Len() == 0 {
			break
		}
	}

	w.state.CompareAndSwap(int32(StateRunning), int32(StateStopping))

	fields := w.cfg.Stats.Fields()
	fields["abandoned"] = w.cfg.Queue.Len()
	log.WithFields(fields).Info("worker_stopped")

	w.state.Store(int32(StateStopped))
}

// attempt makes one try at an item. In-flight work is not interrupted by
// Stop, so neither the rate limiter nor the upload see the worker context.
func (w *Worker) attempt(item queue.Item) (Outcome, error) {
	content, err := item.Piece.Content()
	if err != nil {
		return OutcomeTransientFailure, fmt.Errorf("fetch content: %w", err)
	}

	if err := w.limiter.Wait(context.Background()); err != nil {
		return OutcomeTransientFailure, err
	}

	status, err := w.cfg.Sink.Upload(context.Background(), content)
	if err != nil {
		if errors.Is(err, sink.ErrPermanent) {
			return OutcomePermanentFailure, err
		}
		return OutcomeTransientFailure, err
	}

	if !status.OK() {
		return OutcomeTransientFailure, fmt.Errorf("%w: status %q", ErrUploadRejected, status)
	}

	return OutcomeSuccess, nil
}

func (w *Worker) process(item queue.Item) {
	outcome, err := w.attempt(item)
	action := Decide(outcome, item.Attempt, w.cfg.MaxRetries)

	fields := log.Fields{
		"folder":  item.Piece.FolderName(),
		"id":      item.Piece.ID(),
		"attempt": item.Attempt + 1,
	}

	switch action {
	case ActionDone:
		w.cfg.Stats.RecordSuccess()
		fields["subject"] = subjectOf(item.Piece)
		log.WithFields(fields).Info("worker_upload_success")
	case ActionRequeue:
		w.cfg.Stats.RecordRetry()
		log.WithError(err).WithFields(fields).Warn("worker_upload_retry")
		item.Attempt++
		w.cfg.Queue.Push(item)
	case ActionFail:
		w.cfg.Stats.RecordFailure()
		fields["subject"] = subjectOf(item.Piece)
		fields["outcome"] = outcome
		log.WithError(err).WithFields(fields).Error("worker_upload_failed")
	}

	w.cfg.Stats.ObserveQueueDepth(w.cfg.Queue.Len())

	if action == ActionRequeue {
		return
	}

	w.finished++
	if w.cfg.ReportInterval > 0 && w.finished%w.cfg.ReportInterval == 0 {
		log.WithFields(w.cfg.Stats.Fields()).Info("worker_status")
	}
}

func subjectOf(p queue.Piece) string {
	subject, err := p.Subject()
	if err != nil {
		return unknownSubject
	}
	return subject
}
