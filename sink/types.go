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

//go:generate mockgen -destination=mocks/mock_sink.go github.com/vs49688/imap2group/sink Sink

import (
	"context"
	"errors"
	"strings"
)

// ErrPermanent marks an upload error that retrying cannot fix.
var ErrPermanent = errors.New("permanent upload failure")

// Status is the archive's verdict on an upload.
type Status string

const StatusSuccess Status = "SUCCESS"

func (s Status) OK() bool {
	return strings.EqualFold(string(s), string(StatusSuccess))
}

// Sink receives raw RFC 822 messages. Implementations are used by a
// single goroutine and need not be safe for concurrent use.
type Sink interface {
	Upload(ctx context.Context, content []byte) (Status, error)
}
