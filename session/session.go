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
	"sort"

	"github.com/emersion/go-imap"
	log "github.com/sirupsen/logrus"

	imap2 "github.com/vs49688/imap2group/imap"
)

// Open establishes the one source session for the run. A failure here is
// fatal to the run and is returned unchanged.
func Open(cfg *imap2.ConnectionConfig, factory imap2.ClientFactory) (*Guard, error) {
	c, err := factory.NewClient(cfg)
	if err != nil {
		return nil, err
	}

	log.WithField("host", cfg.HostPort).Info("session_opened")
	return New(c), nil
}

func New(c imap2.Client) *Guard {
	return &Guard{s: &Session{c: c}}
}

// WithSession runs fn with exclusive access to the session. Errors from fn
// are returned as-is; nothing is retried here.
func (g *Guard) WithSession(fn func(s *Session) error) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return ErrClosed
	}

	return fn(g.s)
}

// Close logs out of the session. Only the first call does any work,
// later calls return the same result.
func (g *Guard) Close() error {
	g.closeMu.Do(func() {
		g.mu.Lock()
		defer g.mu.Unlock()

		g.closed = true
		g.err = g.s.c.Logout()
		if g.err != nil {
			log.WithError(g.err).Warn("session_logout_failed")
		} else {
			log.Trace("session_closed")
		}
	})

	return g.err
}

// List returns the names of every selectable folder, in server order.
func (s *Session) List() ([]string, error) {
	ch := make(chan *imap.MailboxInfo, 10)
	done := make(chan error, 1)
	go func() {
		done <- s.c.List("", "*", ch)
	}()

	var names []string
	for mb := range ch {
		if hasAttr(mb, imap.NoSelectAttr) {
			log.WithField("folder", mb.Name).Trace("session_skip_noselect")
			continue
		}
		names = append(names, mb.Name)
	}

	if err := <-done; err != nil {
		return nil, err
	}

	return names, nil
}

// Select opens the folder read-only.
func (s *Session) Select(name string) (*imap.MailboxStatus, error) {
	status, err := s.c.Select(name, true)
	if err != nil {
		s.selected = ""
		return nil, err
	}

	s.selected = name
	return status, nil
}

func (s *Session) ensureSelected(name string) error {
	if s.selected == name {
		return nil
	}

	_, err := s.Select(name)
	return err
}

// Search returns the UIDs in the selected folder matching criteria.
func (s *Session) Search(criteria *imap.SearchCriteria) ([]uint32, error) {
	return s.c.UidSearch(criteria)
}

// Fetch retrieves the requested items for one message, selecting its
// folder first if another folder is currently selected.
func (s *Session) Fetch(folder string, uid uint32, items []imap.FetchItem) (*imap.Message, error) {
	if err := s.ensureSelected(folder); err != nil {
		return nil, err
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uid)

	ch := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- s.c.UidFetch(seqset, items, ch)
	}()

	_, messages := readMessages(ch)

	if err := <-done; err != nil {
		return nil, err
	}

	msg, ok := messages[uid]
	if !ok {
		return nil, ErrMessageNotFound
	}

	return msg, nil
}

func hasAttr(mb *imap.MailboxInfo, attr string) bool {
	for _, a := range mb.Attributes {
		if a == attr {
			return true
		}
	}
	return false
}

func readMessages(ch chan *imap.Message) ([]uint32, map[uint32]*imap.Message) {
	// Sometimes we have dups
	unique := map[uint32]*imap.Message{}
	for msg := range ch {
		unique[msg.Uid] = msg
	}

	uids := make([]uint32, 0, len(unique))
	for uid := range unique {
		uids = append(uids, uid)
	}

	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })

	return uids, unique
}
