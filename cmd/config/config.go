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
	"fmt"
	"time"

	"github.com/urfave/cli/v2"
	"google.golang.org/api/option"

	"github.com/vs49688/imap2group/crawler"
	"github.com/vs49688/imap2group/imap"
	"github.com/vs49688/imap2group/pump"
	"github.com/vs49688/imap2group/sink"
	"github.com/vs49688/imap2group/worker"
)

func DefaultConfig() CliConfig {
	return CliConfig{
		Source:           DefaultIMAPConfig(),
		Google:           DefaultGoogleConfig(),
		LogLevel:         "info",
		LogFormat:        "text",
		Criteria:         imap.DefaultCriteria,
		ReportInterval:   worker.DefaultReportInterval,
		RateLimit:        10,
		MaxRetries:       3,
		MaxPressure:      100,
		PressureInterval: crawler.DefaultPressureInterval,
		PollTimeout:      worker.DefaultPollTimeout,
	}
}

func (cfg *CliConfig) Parameters() []cli.Flag {
	def := DefaultConfig()

	var flags []cli.Flag
	flags = append(flags, cfg.Source.makeIMAPParameters()...)
	flags = append(flags, cfg.Google.Parameters()...)
	flags = append(flags, []cli.Flag{
		&cli.BoolFlag{
			Name:        "verbose",
			Aliases:     []string{"v"},
			Usage:       "log everything, overrides --log-level",
			EnvVars:     []string{"IMAP2GROUP_VERBOSE"},
			Destination: &cfg.Verbose,
			Value:       def.Verbose,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "logging level",
			EnvVars:     []string{"IMAP2GROUP_LOG_LEVEL"},
			Destination: &cfg.LogLevel,
			Value:       def.LogLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "logging format (text/json)",
			EnvVars:     []string{"IMAP2GROUP_LOG_FORMAT"},
			Destination: &cfg.LogFormat,
			Value:       def.LogFormat,
		},
		&cli.StringFlag{
			Name:        "criteria",
			Usage:       "imap SEARCH criteria selecting the messages to migrate",
			EnvVars:     []string{"IMAP2GROUP_CRITERIA"},
			Destination: &cfg.Criteria,
			Value:       def.Criteria,
		},
		&cli.IntFlag{
			Name:        "report",
			Usage:       "print a status line every N messages",
			EnvVars:     []string{"IMAP2GROUP_REPORT"},
			Destination: &cfg.ReportInterval,
			Value:       def.ReportInterval,
		},
		&cli.Float64Flag{
			Name:        "rate",
			Usage:       "maximum uploads per second",
			EnvVars:     []string{"IMAP2GROUP_RATE"},
			Destination: &cfg.RateLimit,
			Value:       def.RateLimit,
		},
		&cli.IntFlag{
			Name:        "retries",
			Usage:       "maximum retries per message",
			EnvVars:     []string{"IMAP2GROUP_RETRIES"},
			Destination: &cfg.MaxRetries,
			Value:       def.MaxRetries,
		},
		&cli.IntFlag{
			Name:        "max-pressure",
			Usage:       "queue depth at which message discovery pauses",
			EnvVars:     []string{"IMAP2GROUP_MAX_PRESSURE"},
			Destination: &cfg.MaxPressure,
			Value:       def.MaxPressure,
		},
		&cli.DurationFlag{
			Name:        "pressure-interval",
			Usage:       "how often to recheck the queue depth while paused",
			EnvVars:     []string{"IMAP2GROUP_PRESSURE_INTERVAL"},
			Destination: &cfg.PressureInterval,
			Value:       def.PressureInterval,
			Hidden:      true,
		},
		&cli.DurationFlag{
			Name:        "poll-timeout",
			Usage:       "how long the worker waits on an empty queue before rechecking for a stop",
			EnvVars:     []string{"IMAP2GROUP_POLL_TIMEOUT"},
			Destination: &cfg.PollTimeout,
			Value:       def.PollTimeout,
			Hidden:      true,
		},
		&cli.StringFlag{
			Name:        "mbox",
			Usage:       "write messages to this mbox file instead of the group",
			EnvVars:     []string{"IMAP2GROUP_MBOX"},
			Destination: &cfg.MboxFile,
			Value:       def.MboxFile,
		},
		&cli.StringFlag{
			Name:        "metrics-listen",
			Usage:       "serve prometheus metrics on this address",
			EnvVars:     []string{"IMAP2GROUP_METRICS_LISTEN"},
			Destination: &cfg.MetricsListen,
			Value:       def.MetricsListen,
		},
	}...)

	return flags
}

// SetArgs takes the positional server, username, password and group.
func (cfg *CliConfig) SetArgs(args []string) error {
	if len(args) != 4 {
		return errMissingArgs
	}

	cfg.Source.Server = args[0]
	cfg.Source.Username = args[1]
	cfg.Source.Password = args[2]
	cfg.Group = args[3]
	return nil
}

func (cfg *CliConfig) BuildPumpConfig(pumpConfig *pump.Config) error {
	def := DefaultConfig()

	connConfig, factory, err := cfg.Source.Resolve()
	if err != nil {
		return err
	}

	criteria, err := imap.ParseCriteria(cfg.Criteria)
	if err != nil {
		return err
	}

	pumpConfig.Source = connConfig
	pumpConfig.SourceFactory = factory
	pumpConfig.Criteria = criteria

	pumpConfig.RateLimit = cfg.RateLimit
	pumpConfig.ReportInterval = cfg.ReportInterval

	pumpConfig.MaxRetries = cfg.MaxRetries
	if pumpConfig.MaxRetries < 0 {
		return fmt.Errorf("retries must not be negative")
	}

	pumpConfig.MaxPressure = cfg.MaxPressure
	if pumpConfig.MaxPressure <= 0 {
		pumpConfig.MaxPressure = def.MaxPressure
	}

	pumpConfig.PressureInterval = durationOrDefault(cfg.PressureInterval, def.PressureInterval)
	pumpConfig.PollTimeout = durationOrDefault(cfg.PollTimeout, def.PollTimeout)

	return nil
}

// BuildSink creates the destination: an mbox file if one was asked for,
// otherwise the group archive.
func (cfg *CliConfig) BuildSink(ctx context.Context) (sink.Sink, error) {
	if cfg.MboxFile != "" {
		return sink.NewMboxSink(cfg.MboxFile)
	}

	if cfg.Group == "" {
		return nil, fmt.Errorf("group is required")
	}

	ts, err := cfg.Google.TokenSource(ctx, true)
	if err != nil {
		return nil, err
	}

	return sink.NewGroupsSink(ctx, cfg.Group, option.WithTokenSource(ts))
}

func durationOrDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
