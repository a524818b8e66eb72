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

package imap

//go:generate mockgen -destination=mocks/mock_imap.go github.com/vs49688/imap2group/imap Authenticatable,Client

import (
	"crypto/tls"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-sasl"
)

// Client is the subset of an IMAP session the migration needs. It is
// satisfied by *client.Client from go-imap, and by the persistent client.
// Implementations are not safe for concurrent use.
type Client interface {
	List(ref, name string, ch chan *imap.MailboxInfo) error

	Select(name string, readOnly bool) (*imap.MailboxStatus, error)

	UidSearch(criteria *imap.SearchCriteria) ([]uint32, error)

	UidFetch(seqset *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error

	Logout() error

	LoggedOut() <-chan struct{}
}

// Authenticatable is anything that can be logged in to.
type Authenticatable interface {
	Login(username, password string) error
	Authenticate(auth sasl.Client) error
}

type Authenticator interface {
	Authenticate(c Authenticatable) error
}

type ConnectionConfig struct {
	HostPort  string
	Auth      Authenticator
	TLS       bool
	TLSConfig *tls.Config
	Debug     bool
}

type ClientFactory interface {
	NewClient(cfg *ConnectionConfig) (Client, error)
}

type Message = imap.Message
type Envelope = imap.Envelope
type SeqSet = imap.SeqSet
type MailboxInfo = imap.MailboxInfo
type MailboxStatus = imap.MailboxStatus
type FetchItem = imap.FetchItem
type SearchCriteria = imap.SearchCriteria
