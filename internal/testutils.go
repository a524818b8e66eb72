package internal

import (
	"bytes"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-imap/backend"
	"github.com/emersion/go-imap/backend/memory"
	"github.com/emersion/go-imap/server"
	"github.com/emersion/go-message"
	"github.com/stretchr/testify/assert"
)

type TestIMAPServer struct {
	Server *server.Server
	Addr   string
	User   backend.User
}

func BuildTestIMAPServer(t *testing.T) *TestIMAPServer {
	be := memory.New()
	user, err := be.Login(nil, "username", "password")
	if !assert.NoError(t, err) {
		t.FailNow()
	}

	mb, err := user.GetMailbox("INBOX")
	if !assert.NoError(t, err) {
		t.FailNow()
	}

	mailbox := mb.(*memory.Mailbox)
	mailbox.Messages = nil

	s := server.New(be)
	t.Cleanup(func() { _ = s.Close() })

	s.AllowInsecureAuth = true

	l, err := net.Listen("tcp", "localhost:0")
	if !assert.NoError(t, err) {
		t.FailNow()
	}

	go func() { _ = s.Serve(l) }()

	return &TestIMAPServer{Server: s, Addr: l.Addr().String(), User: user}
}

// AddFolder creates the folder if needed and appends one message per subject.
func (ts *TestIMAPServer) AddFolder(t *testing.T, name string, subjects ...string) *memory.Mailbox {
	mb, err := ts.User.GetMailbox(name)
	if err != nil {
		if !assert.NoError(t, ts.User.CreateMailbox(name)) {
			t.FailNow()
		}

		mb, err = ts.User.GetMailbox(name)
		if !assert.NoError(t, err) {
			t.FailNow()
		}
	}

	mailbox := mb.(*memory.Mailbox)
	for i, subject := range subjects {
		raw := MakeTestMessage(t, subject, fmt.Sprintf("<%v-%v@localhost>", strings.ToLower(name), i))
		err := mailbox.CreateMessage(nil, time.Date(2016, 5, 11, 14, 31, 59, 0, time.UTC), bytes.NewBuffer(raw))
		if !assert.NoError(t, err) {
			t.FailNow()
		}
	}

	return mailbox
}

func MakeTestMessage(t *testing.T, subject string, messageID string) []byte {
	hdr := message.Header{}
	hdr.Add("From", "from@example.com")
	hdr.Add("To", "to@example.com")
	hdr.Add("Subject", subject)
	hdr.Add("Date", "Wed, 11 May 2016 14:31:59 +0000")
	hdr.Add("Content-Type", "text/plain")
	hdr.Add("Message-ID", messageID)

	msg, err := message.New(hdr, strings.NewReader("Привет!"))
	if !assert.NoError(t, err) {
		t.FailNow()
	}

	bb := new(bytes.Buffer)
	if !assert.NoError(t, msg.WriteTo(bb)) {
		t.FailNow()
	}

	return bb.Bytes()
}

// Uids returns the UIDs the server assigned in the mailbox, in storage order.
func Uids(mailbox *memory.Mailbox) []uint32 {
	uids := make([]uint32, 0, len(mailbox.Messages))
	for _, msg := range mailbox.Messages {
		uids = append(uids, msg.Uid)
	}
	return uids
}
