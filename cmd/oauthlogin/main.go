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

package oauthlogin

import (
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/vs49688/imap2group/cmd/config"
)

type loginConfig struct {
	Google config.GoogleConfig
	Check  bool
}

func RegisterCommand(app *cli.App) *cli.App {
	cfg := &loginConfig{Google: config.DefaultGoogleConfig()}

	flags := append(cfg.Google.Parameters(), &cli.BoolFlag{
		Name:        "check",
		Usage:       "Only verify the stored token, refreshing it if needed",
		EnvVars:     []string{"IMAP2GROUP_OAUTH_CHECK"},
		Destination: &cfg.Check,
	})

	app.Commands = append(app.Commands, &cli.Command{
		Name:   "oauthlogin",
		Usage:  "Authorize access to the Groups Migration API and store the token",
		Flags:  flags,
		Action: func(context *cli.Context) error { return oauthlogin(context, cfg) },
	})
	return app
}

func check(ctx *cli.Context, cfg *config.GoogleConfig) error {
	ts, err := cfg.TokenSource(ctx.Context, false)
	if err != nil {
		return err
	}

	tok, err := ts.Token()
	if err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"path":   cfg.CredentialStore,
		"expiry": tok.Expiry,
		"valid":  tok.Valid(),
	}).Info("token_ok")
	return nil
}

func oauthlogin(ctx *cli.Context, cfg *loginConfig) error {
	if cfg.Check {
		return check(ctx, &cfg.Google)
	}

	conf, err := cfg.Google.OAuth2Config()
	if err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"auth_url":  conf.Endpoint.AuthURL,
		"token_url": conf.Endpoint.TokenURL,
		"client_id": conf.ClientID,
		"scopes":    conf.Scopes,
	}).Info("using_provider")

	tok, err := cfg.Google.Login(ctx.Context)
	if err != nil {
		return err
	}

	log.WithField("expiry", tok.Expiry).Info("token_acquired")
	log.Infof("Credentials stored in %v\n", cfg.Google.CredentialStore)
	log.Infof("> Keep It Secret, Keep It Safe\n")
	log.Infof(">   - Gandalf\n")

	return nil
}
