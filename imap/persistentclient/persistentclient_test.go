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
	"sync"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/vs49688/imap2group/imap"
	"github.com/vs49688/imap2group/internal"
)

type fakeClient struct {
	mu        sync.Mutex
	selects   []string
	searches  int
	loggedOut chan struct{}
	once      sync.Once
}

func newFakeClient() *fakeClient {
	return &fakeClient{loggedOut: make(chan struct{})}
}

func (c *fakeClient) drop() {
	c.once.Do(func() { close(c.loggedOut) })
}

func (c *fakeClient) List(ref, name string, ch chan *imap.MailboxInfo) error {
	close(ch)
	return nil
}

func (c *fakeClient) Select(name string, readOnly bool) (*imap.MailboxStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selects = append(c.selects, name)
	return &imap.MailboxStatus{Name: name, ReadOnly: readOnly}, nil
}

func (c *fakeClient) UidSearch(criteria *imap.SearchCriteria) ([]uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.searches++
	return []uint32{1, 2, 3}, nil
}

func (c *fakeClient) UidFetch(seqset *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error {
	close(ch)
	return nil
}

func (c *fakeClient) Logout() error {
	c.drop()
	return nil
}

func (c *fakeClient) LoggedOut() <-chan struct{} {
	return c.loggedOut
}

func (c *fakeClient) selected() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.selects...)
}

type fakeFactory struct {
	mu      sync.Mutex
	clients []*fakeClient
	fail    error
}

func (f *fakeFactory) NewClient(cfg *imap.ConnectionConfig) (imap.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fail != nil {
		return nil, f.fail
	}

	c := newFakeClient()
	f.clients = append(f.clients, c)
	return c, nil
}

func (f *fakeFactory) client(i int) *fakeClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i >= len(f.clients) {
		return nil
	}
	return f.clients[i]
}

func TestConnectFailureIsReturned(t *testing.T) {
	f := &fakeFactory{fail: errors.New("authentication failed")}

	_, err := NewClient(&Config{ConnectionConfig: imap.ConnectionConfig{HostPort: "localhost:143"}}, f)
	assert.EqualError(t, err, "authentication failed")
}

func TestUnreachableServer(t *testing.T) {
	f := Factory{}

	_, err := f.NewClient(&imap.ConnectionConfig{
		HostPort: "127.0.0.1:1",
		Auth:     imap.NewNormalAuthenticator("username", "password"),
	})
	assert.Error(t, err)
}

func TestAgainstServer(t *testing.T) {
	log.SetLevel(log.TraceLevel)
	ts := internal.BuildTestIMAPServer(t)
	ts.AddFolder(t, "INBOX", "one", "two")

	f := Factory{}
	c, err := f.NewClient(&imap.ConnectionConfig{
		HostPort: ts.Addr,
		Auth:     imap.NewNormalAuthenticator("username", "password"),
	})
	if !assert.NoError(t, err) {
		t.FailNow()
	}

	status, err := c.Select("INBOX", true)
	assert.NoError(t, err)
	assert.Equal(t, uint32(2), status.Messages)

	uids, err := c.UidSearch(&imap.SearchCriteria{})
	assert.NoError(t, err)
	assert.Len(t, uids, 2)

	assert.NoError(t, c.Logout())
	<-c.LoggedOut()
}

func TestOperationAfterLogout(t *testing.T) {
	f := &fakeFactory{}

	c, err := NewClient(&Config{ConnectionConfig: imap.ConnectionConfig{HostPort: "localhost:143"}}, f)
	if !assert.NoError(t, err) {
		t.FailNow()
	}

	assert.NoError(t, c.Logout())
	assert.NoError(t, c.Logout())

	_, err = c.Select("INBOX", true)
	assert.ErrorIs(t, err, errConnectionClosed)

	_, err = c.UidSearch(&imap.SearchCriteria{})
	assert.ErrorIs(t, err, errConnectionClosed)

	ch := make(chan *imap.MailboxInfo)
	assert.ErrorIs(t, c.List("", "*", ch), errConnectionClosed)
	_, open := <-ch
	assert.False(t, open)
}

func TestReconnectRestoresSelection(t *testing.T) {
	f := &fakeFactory{}

	c, err := NewClient(&Config{ConnectionConfig: imap.ConnectionConfig{HostPort: "localhost:143"}}, f)
	if !assert.NoError(t, err) {
		t.FailNow()
	}
	t.Cleanup(func() { _ = c.Logout() })

	_, err = c.Select("Archive", true)
	assert.NoError(t, err)

	f.client(0).drop()

	assert.Eventually(t, func() bool {
		second := f.client(1)
		return second != nil && len(second.selected()) == 1
	}, 5*time.Second, 50*time.Millisecond)

	assert.Equal(t, []string{"Archive"}, f.client(1).selected())

	uids, err := c.UidSearch(&imap.SearchCriteria{})
	assert.NoError(t, err)
	assert.Equal(t, []uint32{1, 2, 3}, uids)
	assert.Equal(t, 1, f.client(1).searches)
}
