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

package model

import (
	"errors"
	"sync"

	"github.com/emersion/go-imap"

	"github.com/vs49688/imap2group/session"
)

var (
	errNoEnvelope = errors.New("server returned no envelope")
	errNoBody     = errors.New("server returned no body")
)

// memo holds a value fetched at most once. Failed fetches are not
// cached, so a later call tries again.
type memo[T any] struct {
	mu   sync.Mutex
	done bool
	val  T
}

func (m *memo[T]) get(fetch func() (T, error)) (T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.done {
		return m.val, nil
	}

	v, err := fetch()
	if err != nil {
		var zero T
		return zero, err
	}

	m.val = v
	m.done = true
	return v, nil
}

// Account owns the source session for the lifetime of the run.
type Account struct {
	guard    *session.Guard
	criteria *imap.SearchCriteria
	folders  memo[[]*Folder]
}

// Folder is a named folder on the account. Its mailpieces are listed on
// first use and never again.
type Folder struct {
	account  *Account
	name     string
	criteria *imap.SearchCriteria
	pieces   memo[[]*Mailpiece]
}

// Mailpiece is one message in a folder, identified by its UID.
type Mailpiece struct {
	folder   *Folder
	uid      uint32
	envelope memo[*imap.Envelope]
	content  memo[[]byte]
}
