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

package run

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/vs49688/imap2group/cmd/config"
	"github.com/vs49688/imap2group/pump"
)

func RegisterCommand(app *cli.App) *cli.App {
	cfg := &config.CliConfig{}
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "run",
		Usage:     "Migrate every message on an IMAP account into a Google Group",
		ArgsUsage: "<server> <username> <password> <group>",
		Flags:     cfg.Parameters(),
		Action:    func(context *cli.Context) error { return run(context, cfg) },
	})
	return app
}

func configureLogging(cfg *config.CliConfig) {
	logLevel, err := log.ParseLevel(cfg.LogLevel)
	if err == nil {
		log.SetLevel(logLevel)
	}

	if cfg.Verbose {
		log.SetLevel(log.TraceLevel)
	}

	if cfg.LogFormat == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	}
}

func serveMetrics(addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).WithField("addr", addr).Error("metrics_listen_failed")
		}
	}()

	return srv
}

func run(ctx *cli.Context, cfg *config.CliConfig) error {
	if err := cfg.SetArgs(ctx.Args().Slice()); err != nil {
		return err
	}

	configureLogging(cfg)

	log.WithFields(log.Fields{
		"server":         cfg.Source.Server,
		"username":       cfg.Source.Username,
		"password_file":  cfg.Source.PasswordFile,
		"auth_method":    cfg.Source.AuthMethod,
		"ssl":            cfg.Source.SSL,
		"ssl_noverify":   cfg.Source.SSLNoVerify,
		"transport":      cfg.Source.Transport,
		"debug":          cfg.Source.Debug,
		"group":          cfg.Group,
		"mbox":           cfg.MboxFile,
		"criteria":       cfg.Criteria,
		"report":         cfg.ReportInterval,
		"rate":           cfg.RateLimit,
		"retries":        cfg.MaxRetries,
		"max_pressure":   cfg.MaxPressure,
		"metrics_listen": cfg.MetricsListen,
		"log_level":      cfg.LogLevel,
		"log_format":     cfg.LogFormat,
	}).Info("starting")

	pumpConfig := pump.Config{}
	if err := cfg.BuildPumpConfig(&pumpConfig); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	pumpConfig.Registerer = reg

	if cfg.MetricsListen != "" {
		srv := serveMetrics(cfg.MetricsListen, reg)
		defer func() { _ = srv.Close() }()
	}

	s, err := cfg.BuildSink(ctx.Context)
	if err != nil {
		return err
	}

	if c, ok := s.(io.Closer); ok {
		defer func() {
			if err := c.Close(); err != nil {
				log.WithError(err).Error("sink_close_failed")
			}
		}()
	}

	pumpConfig.Sink = s

	doneChan := make(chan error)
	stopChan := make(chan struct{})
	pumpConfig.DoneChan = doneChan
	pumpConfig.StopChan = stopChan

	p, err := pump.NewMailPump(&pumpConfig)
	if err != nil {
		return err
	}

	defer p.Close()

	sigchan := make(chan os.Signal, 10)
	signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigchan)

	sigcount := 0
	for {
		select {
		case sig := <-sigchan:
			log.WithFields(log.Fields{"signal": sig, "count": sigcount}).Trace("caught_signal")

			sigcount += 1
			if sigcount > 1 {
				log.WithFields(log.Fields{"signal": sig}).Warn("received_interrupt_force_exit")
				os.Exit(1)
			}
			log.WithFields(log.Fields{"signal": sig}).Info("received_interrupt")

			close(stopChan)
		case err := <-doneChan:
			summary := p.Summary()
			log.WithFields(summary.Fields()).Info("pump_terminated")
			fmt.Println(summary.String())

			// Per-message failures are in the summary, not the exit code.
			return err
		}
	}
}
