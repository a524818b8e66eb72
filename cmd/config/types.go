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
	"errors"
	"time"
)

var (
	errInvalidScheme = errors.New("invalid uri scheme")
	errMissingArgs   = errors.New("usage: run [options] <server> <username> <password> <group>")
	errNoVerifyPlain = errors.New("--ssl-noverify cannot be used with an imap:// server")
)

type IMAPConfig struct {
	Server       string `json:"server"`
	Username     string `json:"username"`
	Password     string `json:"-"`
	PasswordFile string `json:"password_file"`
	SSL          bool   `json:"ssl"`
	SSLNoVerify  bool   `json:"ssl_noverify"`
	AuthMethod   string `json:"auth_method"`
	Transport    string `json:"transport"`
	Debug        bool   `json:"debug"`
}

type GoogleConfig struct {
	ClientSecretFile string `json:"client_secret_file"`
	CredentialStore  string `json:"credential_store"`
}

type CliConfig struct {
	Source           IMAPConfig    `json:"source"`
	Google           GoogleConfig  `json:"google"`
	Group            string        `json:"group"`
	MboxFile         string        `json:"mbox_file"`
	MetricsListen    string        `json:"metrics_listen"`
	Verbose          bool          `json:"verbose"`
	LogLevel         string        `json:"log_level"`
	LogFormat        string        `json:"log_format"`
	Criteria         string        `json:"criteria"`
	ReportInterval   int           `json:"report_interval"`
	RateLimit        float64       `json:"rate_limit"`
	MaxRetries       int           `json:"max_retries"`
	MaxPressure      int           `json:"max_pressure"`
	PressureInterval time.Duration `json:"pressure_interval"`
	PollTimeout      time.Duration `json:"poll_timeout"`
}
