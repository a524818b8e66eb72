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

package session

import (
	"errors"
	"sync"

	"github.com/vs49688/imap2group/imap"
)

var (
	ErrClosed          = errors.New("session closed")
	ErrMessageNotFound = errors.New("message not found")
)

// Guard serialises all access to a single source session. The session
// is never handed out except inside WithSession.
type Guard struct {
	mu      sync.Mutex
	s       *Session
	closed  bool
	closeMu sync.Once
	err     error
}

// Session is the view of the connection available inside WithSession.
// It remembers the currently selected folder so that repeated fetches
// against the same folder don't reissue EXAMINE.
type Session struct {
	c        imap.Client
	selected string
}
