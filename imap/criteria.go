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

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-message/charset"
)

const DefaultCriteria = "ALL"

func init() {
	// Envelope subjects are frequently RFC 2047 encoded in legacy charsets.
	imap.CharsetReader = charset.Reader
}

// ParseCriteria parses a SEARCH expression in IMAP syntax, e.g.
// "UNSEEN SINCE 1-Feb-2020". An empty expression means ALL.
func ParseCriteria(expr string) (*imap.SearchCriteria, error) {
	criteria := imap.NewSearchCriteria()

	expr = strings.TrimSpace(expr)
	if expr == "" {
		return criteria, nil
	}

	r := imap.NewReader(bufio.NewReader(strings.NewReader(expr + "\r\n")))
	fields, err := r.ReadLine()
	if err != nil {
		return nil, fmt.Errorf("invalid search criteria %q: %w", expr, err)
	}

	if err := criteria.ParseWithCharset(fields, nil); err != nil {
		return nil, fmt.Errorf("invalid search criteria %q: %w", expr, err)
	}

	return criteria, nil
}
