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

package persistentclient

import (
	"time"

	"github.com/vs49688/imap2group/imap"
)

type Config struct {
	imap.ConnectionConfig
	MaxDelay time.Duration
}

type listRequest struct {
	r chan error

	ref  string
	name string
	ch   chan *imap.MailboxInfo
}

type selectResponse struct {
	status *imap.MailboxStatus
	err    error
}

type selectRequest struct {
	r chan selectResponse

	name     string
	readOnly bool
}

type searchResponse struct {
	uids []uint32
	err  error
}

type searchRequest struct {
	r chan searchResponse

	criteria *imap.SearchCriteria
}

type fetchRequest struct {
	r chan error

	seqset *imap.SeqSet
	items  []imap.FetchItem
	ch     chan *imap.Message
}

type logoutRequest struct {
	r chan error
}

// selection is remembered so it can be restored after a reconnect.
type selection struct {
	name     string
	readOnly bool
}

type clientState int32

const (
	ClientStateDisconnected clientState = 0
	ClientStateConnected    clientState = 1
)

func (s clientState) String() string {
	switch s {
	case ClientStateDisconnected:
		return "disconnected"
	case ClientStateConnected:
		return "connected"
	default:
		return "invalid"
	}
}

// PersistentIMAPClient owns a single connection from one goroutine and
// transparently re-establishes it when the server drops us.
type PersistentIMAPClient struct {
	c             imap.Client
	cfg           Config
	factory       imap.ClientFactory
	ch            chan interface{}
	logoutChannel chan logoutRequest
	shutdown      int32
	loggedOut     chan struct{}
	logURL        string
	selected      *selection
}

type Factory struct {
	MaxDelay time.Duration
}
