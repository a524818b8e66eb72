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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/emersion/go-oauthdialog"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/groupsmigration/v1"
)

var errNoToken = errors.New("no stored credentials, run oauthlogin first")

func DefaultGoogleConfig() GoogleConfig {
	return GoogleConfig{
		ClientSecretFile: "client_secret.json",
		CredentialStore:  "~/.google/imap2group.json",
	}
}

func (cfg *GoogleConfig) Parameters() []cli.Flag {
	def := DefaultGoogleConfig()

	return []cli.Flag{
		&cli.StringFlag{
			Name:        "cid",
			Usage:       "google oauth2 client secret file",
			EnvVars:     []string{"IMAP2GROUP_CLIENT_SECRET_FILE"},
			Destination: &cfg.ClientSecretFile,
			Value:       def.ClientSecretFile,
		},
		&cli.StringFlag{
			Name:        "cred-store",
			Usage:       "file the google oauth2 token is stored in",
			EnvVars:     []string{"IMAP2GROUP_CREDENTIAL_STORE"},
			Destination: &cfg.CredentialStore,
			Value:       def.CredentialStore,
		},
	}
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// OAuth2Config loads the client secret, scoped for the Groups Migration API.
func (cfg *GoogleConfig) OAuth2Config() (*oauth2.Config, error) {
	path, err := expandHome(cfg.ClientSecretFile)
	if err != nil {
		return nil, err
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read client secret: %w", err)
	}

	conf, err := google.ConfigFromJSON(b, groupsmigration.AppsGroupsMigrationScope)
	if err != nil {
		return nil, fmt.Errorf("parse client secret: %w", err)
	}

	return conf, nil
}

func tokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("decode %v: %w", path, err)
	}

	return tok, nil
}

func saveToken(path string, tok *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}

	if err := json.NewEncoder(f).Encode(tok); err != nil {
		_ = f.Close()
		return err
	}

	return f.Close()
}

// savingTokenSource writes refreshed tokens back to the credential store.
type savingTokenSource struct {
	mu   sync.Mutex
	base oauth2.TokenSource
	path string
	last string
}

func (s *savingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if tok.AccessToken != s.last {
		if err := saveToken(s.path, tok); err != nil {
			log.WithError(err).WithField("path", s.path).Warn("token_save_failed")
		}
		s.last = tok.AccessToken
	}

	return tok, nil
}

// Authorize runs the interactive consent flow and returns the new token.
func Authorize(ctx context.Context, conf *oauth2.Config) (*oauth2.Token, error) {
	code, err := oauthdialog.Open(conf)
	if err != nil {
		return nil, err
	}

	return conf.Exchange(ctx, code, oauth2.AccessTypeOffline)
}

// Login runs the consent flow and stores the resulting token.
func (cfg *GoogleConfig) Login(ctx context.Context) (*oauth2.Token, error) {
	conf, err := cfg.OAuth2Config()
	if err != nil {
		return nil, err
	}

	path, err := expandHome(cfg.CredentialStore)
	if err != nil {
		return nil, err
	}

	tok, err := Authorize(ctx, conf)
	if err != nil {
		return nil, err
	}

	if err := saveToken(path, tok); err != nil {
		return nil, err
	}

	log.WithField("path", path).Info("token_saved")
	return tok, nil
}

// TokenSource returns a token source backed by the credential store. If
// there is no stored token and interactive is set, the consent flow is
// run first.
func (cfg *GoogleConfig) TokenSource(ctx context.Context, interactive bool) (oauth2.TokenSource, error) {
	conf, err := cfg.OAuth2Config()
	if err != nil {
		return nil, err
	}

	path, err := expandHome(cfg.CredentialStore)
	if err != nil {
		return nil, err
	}

	tok, err := tokenFromFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		if !interactive {
			return nil, errNoToken
		}

		log.WithField("path", path).Info("token_missing_starting_login")
		if tok, err = cfg.Login(ctx); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	return &savingTokenSource{
		base: conf.TokenSource(ctx, tok),
		path: path,
		last: tok.AccessToken,
	}, nil
}
