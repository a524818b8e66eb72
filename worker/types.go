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
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/vs49688/imap2group/queue"
	"github.com/vs49688/imap2group/sink"
	"github.com/vs49688/imap2group/stats"
)

const (
	DefaultPollTimeout    = time.Second
	DefaultReportInterval = 100
	unknownSubject        = "<unknown subject>"
)

var ErrUploadRejected = errors.New("upload rejected")

type State int32

const (
	StateRunning  State = 0
	StateStopping State = 1
	StateStopped  State = 2
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "invalid"
	}
}

// Outcome is the result of a single attempt at an item.
type Outcome int

const (
	OutcomeSuccess          Outcome = 0
	OutcomeTransientFailure Outcome = 1
	OutcomePermanentFailure Outcome = 2
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeTransientFailure:
		return "transient_failure"
	case OutcomePermanentFailure:
		return "permanent_failure"
	default:
		return "invalid"
	}
}

// Action is what the worker does with an item after an attempt.
type Action int

const (
	ActionDone    Action = 0
	ActionRequeue Action = 1
	ActionFail    Action = 2
)

func (a Action) String() string {
	switch a {
	case ActionDone:
		return "done"
	case ActionRequeue:
		return "requeue"
	case ActionFail:
		return "fail"
	default:
		return "invalid"
	}
}

type Config struct {
	Queue *queue.Queue[queue.Item]
	Sink  sink.Sink
	Stats *stats.RunStats

	// RateLimit is the maximum number of uploads per second. Zero or
	// less means unlimited.
	RateLimit float64

	// MaxRetries is how many times a transiently failing item is
	// requeued before it is counted as a failure.
	MaxRetries int

	// ReportInterval is the number of finished items between status
	// lines. Zero disables them.
	ReportInterval int

	PollTimeout time.Duration
}

type Worker struct {
	cfg     Config
	limiter *rate.Limiter

	state    atomic.Int32
	draining atomic.Bool
	ctx      context.Context
	cancel   context.CancelFunc
	pollCtx  context.Context
	endPoll  context.CancelFunc
	start    sync.Once
	done     chan struct{}

	finished int
}
