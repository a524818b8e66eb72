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
	"errors"
	"math/rand"
	"net/url"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vs49688/imap2group/imap"
	"github.com/vs49688/imap2group/imap/client"
)

var errConnectionClosed = errors.New("connection closed")

func (f Factory) NewClient(cfg *imap.ConnectionConfig) (imap.Client, error) {
	return NewClient(&Config{
		ConnectionConfig: *cfg,
		MaxDelay:         f.MaxDelay,
	}, client.Factory{})
}

func (c *PersistentIMAPClient) isShutdown() bool {
	return atomic.LoadInt32(&c.shutdown) != 0
}

// send hands a request to the connection goroutine. It returns false
// if the client has been logged out.
func (c *PersistentIMAPClient) send(req interface{}) bool {
	select {
	case c.ch <- req:
		return true
	case <-c.loggedOut:
		return false
	}
}

func (c *PersistentIMAPClient) List(ref, name string, ch chan *imap.MailboxInfo) error {
	c.log().WithField("shutdown", c.isShutdown()).Trace("pimap_list_invoked")

	r := make(chan error, 1)
	if !c.send(listRequest{r: r, ref: ref, name: name, ch: ch}) {
		close(ch)
		return errConnectionClosed
	}
	return <-r
}

func (c *PersistentIMAPClient) Select(name string, readOnly bool) (*imap.MailboxStatus, error) {
	c.log().WithField("shutdown", c.isShutdown()).Trace("pimap_select_invoked")

	r := make(chan selectResponse, 1)
	if !c.send(selectRequest{r: r, name: name, readOnly: readOnly}) {
		return nil, errConnectionClosed
	}
	sr := <-r
	return sr.status, sr.err
}

func (c *PersistentIMAPClient) UidSearch(criteria *imap.SearchCriteria) ([]uint32, error) {
	c.log().WithField("shutdown", c.isShutdown()).Trace("pimap_uidsearch_invoked")

	r := make(chan searchResponse, 1)
	if !c.send(searchRequest{r: r, criteria: criteria}) {
		return nil, errConnectionClosed
	}
	sr := <-r
	return sr.uids, sr.err
}

func (c *PersistentIMAPClient) UidFetch(seqset *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error {
	c.log().WithField("shutdown", c.isShutdown()).Trace("pimap_uidfetch_invoked")

	r := make(chan error, 1)
	if !c.send(fetchRequest{r: r, seqset: seqset, items: items, ch: ch}) {
		close(ch)
		return errConnectionClosed
	}
	return <-r
}

func (c *PersistentIMAPClient) Logout() error {
	c.log().WithField("shutdown", c.isShutdown()).Trace("pimap_logout_invoked")

	r := make(chan error, 1)
	select {
	case c.logoutChannel <- logoutRequest{r: r}:
		return <-r
	case <-c.loggedOut:
		return nil
	}
}

func (c *PersistentIMAPClient) LoggedOut() <-chan struct{} {
	return c.loggedOut
}

func (c *PersistentIMAPClient) log() *log.Entry {
	return log.WithField("url", c.logURL)
}

func (c *PersistentIMAPClient) connect() (imap.Client, error) {
	cli, err := c.factory.NewClient(&c.cfg.ConnectionConfig)
	if err != nil {
		return nil, err
	}

	if c.selected != nil {
		if _, err := cli.Select(c.selected.name, c.selected.readOnly); err != nil {
			_ = cli.Logout()
			return nil, err
		}
	}

	return cli, nil
}

func (c *PersistentIMAPClient) handle(_req interface{}) {
	switch req := _req.(type) {
	case listRequest:
		c.log().Trace("pimap_list_request")
		req.r <- c.c.List(req.ref, req.name, req.ch)
	case selectRequest:
		c.log().Trace("pimap_select_request")
		s, err := c.c.Select(req.name, req.readOnly)
		if err == nil {
			c.selected = &selection{name: req.name, readOnly: req.readOnly}
		}
		req.r <- selectResponse{status: s, err: err}
	case searchRequest:
		c.log().Trace("pimap_uidsearch_request")
		uids, err := c.c.UidSearch(req.criteria)
		req.r <- searchResponse{uids: uids, err: err}
	case fetchRequest:
		c.log().Trace("pimap_uidfetch_request")
		req.r <- c.c.UidFetch(req.seqset, req.items, req.ch)
	default:
		c.log().WithField("request", req).Panic("pimap_invalid_request")
	}
}

func (c *PersistentIMAPClient) run() {
	nextDelay := time.Second
	state := ClientStateConnected
	for {
		c.log().WithField("state", state).Trace("pimap_loop_enter")
		if state == ClientStateDisconnected {
			select {
			case req := <-c.logoutChannel:
				c.log().Trace("pimap_logout_request")
				req.r <- nil
				goto done
			case <-time.After(nextDelay):
				break
			}

			cli, err := c.connect()
			if err != nil {
				nextDelay = 2 * (nextDelay - (nextDelay % (1000 * time.Millisecond)))
				nextDelay += time.Duration(rand.Intn(1000)) * time.Millisecond
				if nextDelay > c.cfg.MaxDelay {
					nextDelay = c.cfg.MaxDelay
				}

				c.log().WithError(err).WithFields(log.Fields{
					"new_delay": nextDelay,
				}).Error("pimap_connection_failed")
				continue
			}

			c.log().Info("pimap_reconnected")
			c.c = cli
			state = ClientStateConnected
			nextDelay = time.Second
		}

		select {
		case <-c.c.LoggedOut():
			c.log().Warn("pimap_disconnected")
			c.c = nil
			state = ClientStateDisconnected
		case req := <-c.logoutChannel:
			c.log().Trace("pimap_logout_request")
			req.r <- c.c.Logout()
			goto done
		case req := <-c.ch:
			c.handle(req)
		}
	}
done:
	c.c = nil
	atomic.StoreInt32(&c.shutdown, 1)
	close(c.loggedOut)
	c.log().Trace("pimap_proc_exit")
}

// NewClient establishes the first connection synchronously, so bad
// credentials surface immediately. Later drops are retried with an
// exponential backoff capped at MaxDelay.
func NewClient(cfg *Config, factory imap.ClientFactory) (*PersistentIMAPClient, error) {
	ourCfg := *cfg
	if ourCfg.MaxDelay == 0 {
		ourCfg.MaxDelay = 64 * time.Second
	} else if ourCfg.MaxDelay < time.Second {
		ourCfg.MaxDelay = time.Second
	}

	u := url.URL{Host: ourCfg.HostPort}
	if ourCfg.TLS {
		u.Scheme = "imaps"
	} else {
		u.Scheme = "imap"
	}

	c := &PersistentIMAPClient{
		cfg:           ourCfg,
		factory:       factory,
		ch:            make(chan interface{}),
		logoutChannel: make(chan logoutRequest),
		shutdown:      0,
		loggedOut:     make(chan struct{}),
		logURL:        u.String(),
	}

	cli, err := c.connect()
	if err != nil {
		return nil, err
	}

	c.c = cli
	go c.run()
	return c, nil
}
