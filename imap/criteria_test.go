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
	"testing"
	"time"

	"github.com/emersion/go-imap"
	"github.com/stretchr/testify/assert"
)

func TestParseCriteria(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		c, err := ParseCriteria("  ")
		assert.NoError(t, err)
		assert.Equal(t, imap.NewSearchCriteria(), c)
	})

	t.Run("all", func(t *testing.T) {
		c, err := ParseCriteria(DefaultCriteria)
		assert.NoError(t, err)
		assert.Equal(t, imap.NewSearchCriteria(), c)
	})

	t.Run("unseen", func(t *testing.T) {
		c, err := ParseCriteria("UNSEEN")
		assert.NoError(t, err)
		assert.Equal(t, []string{imap.SeenFlag}, c.WithoutFlags)
	})

	t.Run("since", func(t *testing.T) {
		c, err := ParseCriteria("SINCE 1-Feb-1994")
		assert.NoError(t, err)
		assert.Equal(t, time.Date(1994, time.February, 1, 0, 0, 0, 0, time.UTC), c.Since.UTC())
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := ParseCriteria("BOGUS")
		assert.Error(t, err)
	})
}
