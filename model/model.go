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
	"io"
	"sort"

	"github.com/emersion/go-imap"
	log "github.com/sirupsen/logrus"

	"github.com/vs49688/imap2group/session"
)

var bodySection = &imap.BodySectionName{Peek: true}

// NewAccount takes ownership of guard. A nil criteria matches everything.
func NewAccount(guard *session.Guard, criteria *imap.SearchCriteria) *Account {
	if criteria == nil {
		criteria = imap.NewSearchCriteria()
	}

	return &Account{guard: guard, criteria: criteria}
}

// Folders lists the account's folders, once.
func (a *Account) Folders() ([]*Folder, error) {
	return a.folders.get(func() ([]*Folder, error) {
		var names []string
		err := a.guard.WithSession(func(s *session.Session) error {
			var err error
			names, err = s.List()
			return err
		})
		if err != nil {
			return nil, err
		}

		folders := make([]*Folder, 0, len(names))
		for _, name := range names {
			folders = append(folders, &Folder{account: a, name: name, criteria: a.criteria})
		}

		log.WithField("count", len(folders)).Debug("model_folders_listed")
		return folders, nil
	})
}

// Close releases the session. Safe to call more than once.
func (a *Account) Close() error {
	return a.guard.Close()
}

func (f *Folder) Name() string {
	return f.name
}

func (f *Folder) Criteria() *imap.SearchCriteria {
	return f.criteria
}

// Mailpieces selects the folder and searches it. The result is sorted by
// ascending UID and does not change for the rest of the run.
func (f *Folder) Mailpieces() ([]*Mailpiece, error) {
	return f.pieces.get(func() ([]*Mailpiece, error) {
		var uids []uint32
		err := f.account.guard.WithSession(func(s *session.Session) error {
			if _, err := s.Select(f.name); err != nil {
				return err
			}

			var err error
			uids, err = s.Search(f.criteria)
			return err
		})
		if err != nil {
			return nil, err
		}

		sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })

		pieces := make([]*Mailpiece, 0, len(uids))
		for i, uid := range uids {
			if i > 0 && uids[i-1] == uid {
				continue
			}
			pieces = append(pieces, &Mailpiece{folder: f, uid: uid})
		}

		return pieces, nil
	})
}

func (m *Mailpiece) ID() uint32 {
	return m.uid
}

func (m *Mailpiece) Folder() *Folder {
	return m.folder
}

func (m *Mailpiece) FolderName() string {
	return m.folder.name
}

func (m *Mailpiece) fetch(item imap.FetchItem) (*imap.Message, error) {
	var msg *imap.Message
	err := m.folder.account.guard.WithSession(func(s *session.Session) error {
		var err error
		msg, err = s.Fetch(m.folder.name, m.uid, []imap.FetchItem{item})
		return err
	})

	return msg, err
}

func (m *Mailpiece) Envelope() (*imap.Envelope, error) {
	return m.envelope.get(func() (*imap.Envelope, error) {
		msg, err := m.fetch(imap.FetchEnvelope)
		if err != nil {
			return nil, err
		}

		if msg.Envelope == nil {
			return nil, errNoEnvelope
		}

		return msg.Envelope, nil
	})
}

func (m *Mailpiece) Subject() (string, error) {
	env, err := m.Envelope()
	if err != nil {
		return "", err
	}

	return env.Subject, nil
}

// Content returns the raw RFC 822 message. The message is fetched with
// BODY.PEEK[] so its \Seen flag is left alone.
func (m *Mailpiece) Content() ([]byte, error) {
	return m.content.get(func() ([]byte, error) {
		msg, err := m.fetch(bodySection.FetchItem())
		if err != nil {
			return nil, err
		}

		body := msg.GetBody(bodySection)
		if body == nil {
			return nil, errNoBody
		}

		return io.ReadAll(body)
	})
}
