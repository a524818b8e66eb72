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

package config

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"

	"github.com/emersion/go-sasl"
	"github.com/urfave/cli/v2"
	"golang.org/x/oauth2"

	"github.com/vs49688/imap2group/imap"
	"github.com/vs49688/imap2group/imap/client"
	"github.com/vs49688/imap2group/imap/persistentclient"
)

// passwordFromFile is given in place of the password argument to read it
// from --password-file instead.
const passwordFromFile = "-"

func DefaultIMAPConfig() IMAPConfig {
	return IMAPConfig{
		SSL:         false,
		SSLNoVerify: false,
		AuthMethod:  "normal",
		Transport:   "standard",
		Debug:       false,
	}
}

func (cfg *IMAPConfig) makeIMAPParameters() []cli.Flag {
	def := DefaultIMAPConfig()

	return []cli.Flag{
		&cli.BoolFlag{
			Name:        "ssl",
			Usage:       "connect with implicit TLS (imaps)",
			EnvVars:     []string{"IMAP2GROUP_SSL"},
			Destination: &cfg.SSL,
			Value:       def.SSL,
		},
		&cli.BoolFlag{
			Name:        "ssl-noverify",
			Usage:       "skip TLS certificate verification (implies --ssl)",
			EnvVars:     []string{"IMAP2GROUP_SSL_NOVERIFY"},
			Destination: &cfg.SSLNoVerify,
			Value:       def.SSLNoVerify,
		},
		&cli.StringFlag{
			Name:        "password-file",
			Usage:       "read the imap password from this file when the password argument is \"-\"",
			EnvVars:     []string{"IMAP2GROUP_PASSWORD_FILE"},
			Destination: &cfg.PasswordFile,
			Value:       def.PasswordFile,
		},
		&cli.StringFlag{
			Name:        "auth-method",
			Usage:       "imap auth method (normal, plain, oauthbearer)",
			EnvVars:     []string{"IMAP2GROUP_AUTH_METHOD"},
			Destination: &cfg.AuthMethod,
			Value:       def.AuthMethod,
		},
		&cli.StringFlag{
			Name:        "transport",
			Usage:       "imap transport (standard, persistent)",
			EnvVars:     []string{"IMAP2GROUP_TRANSPORT"},
			Destination: &cfg.Transport,
			Value:       def.Transport,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "display imap protocol traffic",
			EnvVars:     []string{"IMAP2GROUP_DEBUG"},
			Destination: &cfg.Debug,
			Value:       def.Debug,
		},
	}
}

// extractServer accepts "host", "host:port", or an imap:// or imaps:// URL.
// A URL scheme overrides useTLS.
func extractServer(server string, useTLS bool) (string, bool, error) {
	if strings.Contains(server, "://") {
		u, err := url.Parse(server)
		if err != nil {
			return "", false, err
		}

		return extractUrl(u)
	}

	defaultPort := "143"
	if useTLS {
		defaultPort = "993"
	}

	host, port, err := net.SplitHostPort(server)
	if err != nil {
		host, port = server, defaultPort
	}

	if host == "" {
		return "", false, fmt.Errorf("invalid server %q", server)
	}

	return net.JoinHostPort(host, port), useTLS, nil
}

func extractUrl(u *url.URL) (string, bool, error) {
	var defaultPort string
	var useTLS bool
	switch strings.ToLower(u.Scheme) {
	case "imap":
		defaultPort = "143"
		useTLS = false
	case "imaps":
		defaultPort = "993"
		useTLS = true
	default:
		return "", false, errInvalidScheme
	}

	host := u.Hostname()
	port := u.Port()

	if port == "" {
		port = defaultPort
	}

	return net.JoinHostPort(host, port), useTLS, nil
}

func (cfg *IMAPConfig) resolvePassword() (string, error) {
	if cfg.Password != passwordFromFile {
		return cfg.Password, nil
	}

	if cfg.PasswordFile == "" {
		return "", fmt.Errorf("password is %q but no --password-file was given", passwordFromFile)
	}

	pass, err := os.ReadFile(cfg.PasswordFile)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(string(pass)), nil
}

func (cfg *IMAPConfig) resolveAuth() (imap.Authenticator, error) {
	if cfg.Username == "" {
		return nil, fmt.Errorf("username is required")
	}

	pass, err := cfg.resolvePassword()
	if err != nil {
		return nil, err
	}

	switch strings.ToUpper(cfg.AuthMethod) {
	case "NORMAL", "LOGIN":
		return imap.NewNormalAuthenticator(cfg.Username, pass), nil
	case sasl.Plain:
		return imap.NewSASLAuthenticator(sasl.NewPlainClient("", cfg.Username, pass)), nil
	case sasl.OAuthBearer:
		// The password is an access token.
		return imap.NewOAuthBearerAuthenticator(cfg.Username, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: pass})), nil
	default:
		return nil, fmt.Errorf("unsupported auth method: %v", cfg.AuthMethod)
	}
}

func (cfg *IMAPConfig) Resolve() (imap.ConnectionConfig, imap.ClientFactory, error) {
	// --ssl-noverify implies --ssl.
	hostPort, useTLS, err := extractServer(cfg.Server, cfg.SSL || cfg.SSLNoVerify)
	if err != nil {
		return imap.ConnectionConfig{}, nil, err
	}

	if cfg.SSLNoVerify && !useTLS {
		return imap.ConnectionConfig{}, nil, errNoVerifyPlain
	}

	auth, err := cfg.resolveAuth()
	if err != nil {
		return imap.ConnectionConfig{}, nil, err
	}

	connConfig := imap.ConnectionConfig{
		HostPort:  hostPort,
		Auth:      auth,
		TLS:       useTLS,
		TLSConfig: nil,
		Debug:     cfg.Debug,
	}

	if cfg.SSLNoVerify {
		// #nosec G402
		connConfig.TLSConfig = &tls.Config{InsecureSkipVerify: true}
	}

	var factory imap.ClientFactory
	if cfg.Transport == "persistent" {
		factory = persistentclient.Factory{MaxDelay: 0}
	} else {
		factory = client.Factory{}
	}

	return connConfig, factory, nil
}
