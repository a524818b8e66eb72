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
	"sync/atomic"
	"testing"

	"github.com/emersion/go-imap"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"

	mock_imap "github.com/vs49688/imap2group/imap/mocks"
)

func TestWithSessionSerializes(t *testing.T) {
	ctrl := gomock.NewController(t)
	g := New(mock_imap.NewMockClient(ctrl))

	var inFlight, maxInFlight int32
	wg := sync.WaitGroup{}
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = g.WithSession(func(s *Session) error {
				n := atomic.AddInt32(&inFlight, 1)
				for {
					m := atomic.LoadInt32(&maxInFlight)
					if n <= m || atomic.CompareAndSwapInt32(&maxInFlight, m, n) {
						break
					}
				}
				atomic.AddInt32(&inFlight, -1)
				return nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInFlight)
}

func TestWithSessionPassesErrorThrough(t *testing.T) {
	ctrl := gomock.NewController(t)
	g := New(mock_imap.NewMockClient(ctrl))

	boom := errors.New("boom")
	err := g.WithSession(func(s *Session) error { return boom })
	assert.Same(t, boom, err)
}

func TestWithSessionReleasesOnPanic(t *testing.T) {
	ctrl := gomock.NewController(t)
	g := New(mock_imap.NewMockClient(ctrl))

	assert.Panics(t, func() {
		_ = g.WithSession(func(s *Session) error { panic("oops") })
	})

	called := false
	assert.NoError(t, g.WithSession(func(s *Session) error {
		called = true
		return nil
	}))
	assert.True(t, called)
}

func TestCloseOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock_imap.NewMockClient(ctrl)
	c.EXPECT().Logout().Return(nil).Times(1)

	g := New(c)
	assert.NoError(t, g.Close())
	assert.NoError(t, g.Close())

	err := g.WithSession(func(s *Session) error {
		t.Error("session used after close")
		return nil
	})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestList(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock_imap.NewMockClient(ctrl)
	c.EXPECT().List("", "*", gomock.Any()).DoAndReturn(func(ref, name string, ch chan *imap.MailboxInfo) error {
		ch <- &imap.MailboxInfo{Name: "INBOX"}
		ch <- &imap.MailboxInfo{Name: "[Gmail]", Attributes: []string{imap.NoSelectAttr}}
		ch <- &imap.MailboxInfo{Name: "Archive"}
		close(ch)
		return nil
	})

	var names []string
	err := New(c).WithSession(func(s *Session) error {
		var err error
		names, err = s.List()
		return err
	})

	assert.NoError(t, err)
	assert.Equal(t, []string{"INBOX", "Archive"}, names)
}

func TestListError(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock_imap.NewMockClient(ctrl)
	c.EXPECT().List("", "*", gomock.Any()).DoAndReturn(func(ref, name string, ch chan *imap.MailboxInfo) error {
		close(ch)
		return errors.New("list failed")
	})

	err := New(c).WithSession(func(s *Session) error {
		_, err := s.List()
		return err
	})
	assert.EqualError(t, err, "list failed")
}

func TestFetchSelectsFolderOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock_imap.NewMockClient(ctrl)

	fetch := func(seqset *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error {
		uid := seqset.Set[0].Start
		ch <- &imap.Message{Uid: uid}
		ch <- &imap.Message{Uid: uid}
		close(ch)
		return nil
	}

	gomock.InOrder(
		c.EXPECT().Select("INBOX", true).Return(&imap.MailboxStatus{Name: "INBOX"}, nil),
		c.EXPECT().UidFetch(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(fetch).Times(2),
		c.EXPECT().Select("Archive", true).Return(&imap.MailboxStatus{Name: "Archive"}, nil),
		c.EXPECT().UidFetch(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(fetch),
	)

	items := []imap.FetchItem{imap.FetchEnvelope}
	err := New(c).WithSession(func(s *Session) error {
		msg, err := s.Fetch("INBOX", 1, items)
		if !assert.NoError(t, err) {
			return err
		}
		assert.Equal(t, uint32(1), msg.Uid)

		if _, err := s.Fetch("INBOX", 2, items); err != nil {
			return err
		}

		msg, err = s.Fetch("Archive", 7, items)
		if err != nil {
			return err
		}
		assert.Equal(t, uint32(7), msg.Uid)
		return nil
	})
	assert.NoError(t, err)
}

func TestFetchNotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock_imap.NewMockClient(ctrl)
	c.EXPECT().Select("INBOX", true).Return(&imap.MailboxStatus{}, nil)
	c.EXPECT().UidFetch(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(func(seqset *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error {
		close(ch)
		return nil
	})

	err := New(c).WithSession(func(s *Session) error {
		_, err := s.Fetch("INBOX", 5, []imap.FetchItem{imap.FetchEnvelope})
		return err
	})
	assert.ErrorIs(t, err, ErrMessageNotFound)
}

func TestSelectFailureClearsSelection(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock_imap.NewMockClient(ctrl)

	gomock.InOrder(
		c.EXPECT().Select("INBOX", true).Return(&imap.MailboxStatus{}, nil),
		c.EXPECT().Select("Gone", true).Return(nil, errors.New("no such mailbox")),
		c.EXPECT().Select("INBOX", true).Return(&imap.MailboxStatus{}, nil),
	)

	err := New(c).WithSession(func(s *Session) error {
		_, err := s.Select("INBOX")
		assert.NoError(t, err)

		_, err = s.Select("Gone")
		assert.Error(t, err)

		return s.ensureSelected("INBOX")
	})
	assert.NoError(t, err)
}
