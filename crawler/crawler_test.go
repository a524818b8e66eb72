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

package crawler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/emersion/go-imap"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	imap2 "github.com/vs49688/imap2group/imap"
	"github.com/vs49688/imap2group/imap/client"
	mock_imap "github.com/vs49688/imap2group/imap/mocks"
	"github.com/vs49688/imap2group/internal"
	"github.com/vs49688/imap2group/model"
	"github.com/vs49688/imap2group/queue"
	"github.com/vs49688/imap2group/session"
	"github.com/vs49688/imap2group/stats"
)

func newServerAccount(t *testing.T, ts *internal.TestIMAPServer) *model.Account {
	g, err := session.Open(&imap2.ConnectionConfig{
		HostPort: ts.Addr,
		Auth:     imap2.NewNormalAuthenticator("username", "password"),
	}, client.Factory{})
	require.NoError(t, err)

	a := model.NewAccount(g, nil)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func newCrawler(t *testing.T, a *model.Account, maxPressure int) (*Crawler, *queue.Queue[queue.Item], *stats.RunStats) {
	q := queue.New[queue.Item]()
	st, err := stats.NewRunStats(nil)
	require.NoError(t, err)

	return New(&Config{
		Account:          a,
		Queue:            q,
		Stats:            st,
		MaxPressure:      maxPressure,
		PressureInterval: 5 * time.Millisecond,
	}), q, st
}

func drain(q *queue.Queue[queue.Item]) []queue.Item {
	var items []queue.Item
	for {
		it, err := q.Pop(context.Background(), time.Millisecond)
		if err != nil {
			return items
		}
		items = append(items, it)
	}
}

func TestCrawlEverything(t *testing.T) {
	ts := internal.BuildTestIMAPServer(t)
	inbox := ts.AddFolder(t, "INBOX", "a", "b", "c")
	archive := ts.AddFolder(t, "Archive", "d", "e")

	c, q, st := newCrawler(t, newServerAccount(t, ts), 0)

	n, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, uint64(5), st.Discovered())

	perFolder := map[string][]uint32{}
	for _, it := range drain(q) {
		assert.Equal(t, 0, it.Attempt)
		perFolder[it.Piece.FolderName()] = append(perFolder[it.Piece.FolderName()], it.Piece.ID())
	}

	assert.Equal(t, internal.Uids(inbox), perFolder["INBOX"])
	assert.Equal(t, internal.Uids(archive), perFolder["Archive"])
}

func TestBackpressure(t *testing.T) {
	ts := internal.BuildTestIMAPServer(t)
	ts.AddFolder(t, "INBOX", "1", "2", "3", "4", "5")

	c, q, _ := newCrawler(t, newServerAccount(t, ts), 2)

	var finished int32
	done := make(chan error, 1)
	go func() {
		_, err := c.Run(context.Background())
		atomic.StoreInt32(&finished, 1)
		done <- err
	}()

	// Two go in, the third has to wait.
	assert.Eventually(t, func() bool { return q.Len() == 2 }, 5*time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 2, q.Len())
	assert.Equal(t, int32(0), atomic.LoadInt32(&finished))

	first, err := q.Pop(context.Background(), time.Second)
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return q.Len() == 2 }, 5*time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 2, q.Len())

	got := []uint32{first.Piece.ID()}
	for len(got) < 5 {
		it, err := q.Pop(context.Background(), 5*time.Second)
		require.NoError(t, err)
		assert.LessOrEqual(t, q.Len(), 2)
		got = append(got, it.Piece.ID())
	}

	require.NoError(t, <-done)
	assert.IsIncreasing(t, got)
}

func TestCancelStopsSubmission(t *testing.T) {
	ts := internal.BuildTestIMAPServer(t)
	ts.AddFolder(t, "INBOX", "1", "2", "3", "4")

	c, q, _ := newCrawler(t, newServerAccount(t, ts), 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	var n int
	go func() {
		var err error
		n, err = c.Run(ctx)
		done <- err
	}()

	assert.Eventually(t, func() bool { return q.Len() == 1 }, 5*time.Second, time.Millisecond)
	cancel()

	err := <-done
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, q.Len())
}

func TestFolderFailureIsSkipped(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock_imap.NewMockClient(ctrl)

	c.EXPECT().List("", "*", gomock.Any()).DoAndReturn(func(ref, name string, ch chan *imap.MailboxInfo) error {
		ch <- &imap.MailboxInfo{Name: "INBOX"}
		ch <- &imap.MailboxInfo{Name: "Broken"}
		ch <- &imap.MailboxInfo{Name: "Archive"}
		close(ch)
		return nil
	})

	gomock.InOrder(
		c.EXPECT().Select("INBOX", true).Return(&imap.MailboxStatus{}, nil),
		c.EXPECT().UidSearch(gomock.Any()).Return([]uint32{1, 2}, nil),
		c.EXPECT().Select("Broken", true).Return(nil, errors.New("server unavailable")),
		c.EXPECT().Select("Archive", true).Return(&imap.MailboxStatus{}, nil),
		c.EXPECT().UidSearch(gomock.Any()).Return([]uint32{7}, nil),
	)

	cr, q, st := newCrawler(t, model.NewAccount(session.New(c), nil), 0)

	n, err := cr.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, uint64(3), st.Discovered())

	var folders []string
	for _, it := range drain(q) {
		folders = append(folders, it.Piece.FolderName())
	}
	assert.Equal(t, []string{"INBOX", "INBOX", "Archive"}, folders)
}

func TestListFailureIsFatal(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock_imap.NewMockClient(ctrl)

	c.EXPECT().List("", "*", gomock.Any()).DoAndReturn(func(ref, name string, ch chan *imap.MailboxInfo) error {
		close(ch)
		return errors.New("connection lost")
	})

	cr, q, _ := newCrawler(t, model.NewAccount(session.New(c), nil), 0)

	_, err := cr.Run(context.Background())
	assert.EqualError(t, err, "list folders: connection lost")
	assert.Equal(t, 0, q.Len())
}
