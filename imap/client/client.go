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

package client

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/emersion/go-imap/client"
	log "github.com/sirupsen/logrus"

	"github.com/vs49688/imap2group/imap"
)

const (
	DefaultDialTimeout    = 30 * time.Second
	DefaultCommandTimeout = 5 * time.Minute
)

// Factory creates plain go-imap clients. A dropped connection stays dropped.
type Factory struct {
	DialTimeout    time.Duration
	CommandTimeout time.Duration
}

func (f Factory) dialer() *net.Dialer {
	timeout := f.DialTimeout
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}
	return &net.Dialer{Timeout: timeout}
}

func (f Factory) dial(cfg *imap.ConnectionConfig) (*client.Client, error) {
	if cfg.TLS {
		return client.DialWithDialerTLS(f.dialer(), cfg.HostPort, cfg.TLSConfig)
	}
	return client.DialWithDialer(f.dialer(), cfg.HostPort)
}

func (f Factory) NewClient(cfg *imap.ConnectionConfig) (imap.Client, error) {
	c, err := f.dial(cfg)
	if err != nil {
		return nil, fmt.Errorf("dial %v: %w", cfg.HostPort, err)
	}

	// Unauthenticated connections get logged out on every failure path.
	authenticated := false
	defer func() {
		if !authenticated {
			_ = c.Logout()
		}
	}()

	c.Timeout = f.CommandTimeout
	if c.Timeout <= 0 {
		c.Timeout = DefaultCommandTimeout
	}

	if cfg.Debug {
		c.SetDebug(os.Stderr)
	}

	if err := cfg.Auth.Authenticate(c); err != nil {
		return nil, fmt.Errorf("authenticate to %v: %w", cfg.HostPort, err)
	}

	authenticated = true

	log.WithFields(log.Fields{
		"host": cfg.HostPort,
		"tls":  cfg.TLS,
	}).Debug("imap_connected")

	return c, nil
}
