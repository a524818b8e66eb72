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

package sink

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/emersion/go-mbox"
	"github.com/emersion/go-message/mail"
	log "github.com/sirupsen/logrus"
)

const unknownSender = "MAILER-DAEMON"

// MboxSink appends messages to an mbox file instead of a group.
type MboxSink struct {
	mu     sync.Mutex
	w      *mbox.Writer
	closer io.Closer
}

// NewMboxSink creates (or truncates) the file at path.
func NewMboxSink(path string) (*MboxSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	s := NewMboxWriter(f)
	s.closer = f
	return s, nil
}

// NewMboxWriter writes the mbox stream to w. Closing the sink does not close w.
func NewMboxWriter(w io.Writer) *MboxSink {
	return &MboxSink{w: mbox.NewWriter(w)}
}

func (s *MboxSink) Upload(ctx context.Context, content []byte) (Status, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	from, date := envelopeSender(content)

	s.mu.Lock()
	defer s.mu.Unlock()

	mw, err := s.w.CreateMessage(from, date)
	if err != nil {
		return "", fmt.Errorf("create mbox message: %w", err)
	}

	if _, err := mw.Write(content); err != nil {
		return "", fmt.Errorf("write mbox message: %w", err)
	}

	return StatusSuccess, nil
}

func (s *MboxSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.w.Close()
	if s.closer != nil {
		if cerr := s.closer.Close(); err == nil {
			err = cerr
		}
	}

	return err
}

// envelopeSender picks the address and date for the "From " separator
// line. Unparseable headers fall back to MAILER-DAEMON and the current time.
func envelopeSender(content []byte) (string, time.Time) {
	from, date := unknownSender, time.Now()

	mr, err := mail.CreateReader(bytes.NewReader(content))
	if err != nil {
		log.WithError(err).Debug("mbox_header_parse_failed")
		return from, date
	}
	defer mr.Close()

	if addrs, err := mr.Header.AddressList("From"); err == nil && len(addrs) > 0 && addrs[0].Address != "" {
		from = addrs[0].Address
	}

	if d, err := mr.Header.Date(); err == nil && !d.IsZero() {
		date = d
	}

	return from, date
}
