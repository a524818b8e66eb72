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

package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

var ErrEmpty = errors.New("queue empty")

// Piece is the part of a mailpiece the worker needs.
type Piece interface {
	ID() uint32
	FolderName() string
	Content() ([]byte, error)
	Subject() (string, error)
}

// Item is one unit of work. Attempt counts the failed attempts so far.
type Item struct {
	Piece   Piece
	Attempt int
}

// Queue is an unbounded FIFO. It never refuses a push; producers are
// expected to watch Len and hold off themselves.
type Queue[T any] struct {
	mu     sync.Mutex
	items  []T
	notify chan struct{}
}

func New[T any]() *Queue[T] {
	return &Queue[T]{notify: make(chan struct{}, 1)}
}

func (q *Queue[T]) Push(item T) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue[T]) tryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if len(q.items) == 0 {
		return zero, false
	}

	item := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	return item, true
}

// Pop removes the head of the queue, waiting up to timeout for one to
// arrive. It returns ErrEmpty on timeout.
func (q *Queue[T]) Pop(ctx context.Context, timeout time.Duration) (T, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		if item, ok := q.tryPop(); ok {
			return item, nil
		}

		var zero T
		select {
		case <-ctx.Done():
			return zero, fmt.Errorf("pop canceled: %w", ctx.Err())
		case <-timer.C:
			return zero, ErrEmpty
		case <-q.notify:
		}
	}
}
