package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"calstats/internal/config"
	"calstats/internal/history"
	"calstats/internal/ics"
	appLog "calstats/internal/log"
	"calstats/internal/run"
)

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	once       bool
}

func main() {
	appLog.Info("calstats starting", "version", "0.1.0")

	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	if err := conf.Validate(); err != nil {
		appLog.Error("invalid config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	appLog.Info("effective config",
		"owner", conf.OwnerEmail,
		"workbook", conf.Workbook,
		"range_days_past", conf.RangeDaysPast,
		"range_days_future", conf.RangeDaysFuture,
		"work_hours", conf.WorkHoursPerDay(),
		"ics_count", len(conf.ICS),
		"once", flags.once,
	)

	loc := time.Local
	if conf.Timezone != "" {
		loc, err = time.LoadLocation(conf.Timezone)
		if err != nil {
			appLog.Error("invalid timezone", err, "timezone", conf.Timezone)
			os.Exit(1)
		}
	}

	sources := make([]ics.Source, 0, len(conf.ICS))
	for _, s := range conf.ICS {
		sources = append(sources, ics.Source{ID: s.ID, URL: s.URL})
	}
	client := ics.NewClient(ics.NewFetcher(conf.CacheDir), sources, loc)

	var archive *history.Archive
	if conf.HistoryDB != "" {
		archive, err = history.Open(conf.HistoryDB)
		if err != nil {
			appLog.Error("failed to open history archive", err, "path", conf.HistoryDB)
			os.Exit(1)
		}
		defer archive.Close()
	}

	runner := run.New(conf, client, archive)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	if flags.once {
		if err := runner.Run(ctx, time.Now().In(loc)); err != nil {
			appLog.Error("run failed", err)
			os.Exit(1)
		}
		appLog.Info("calstats exiting")
		return
	}

	// Daemon mode: re-run on the configured cron schedule. A failed run
	// logs and waits for the next tick; there is no in-run retry.
	c := cron.New()
	_, err = c.AddFunc(conf.RefreshCron, func() {
		if err := runner.Run(ctx, time.Now().In(loc)); err != nil {
			appLog.Error("scheduled run failed", err)
		}
	})
	if err != nil {
		appLog.Error("invalid refresh schedule", err, "refresh", conf.RefreshCron)
		os.Exit(1)
	}
	c.Start()
	appLog.Info("scheduler started", "refresh", conf.RefreshCron)

	<-ctx.Done()
	c.Stop()
	appLog.Info("calstats exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "./calstats.yaml", "Path to config file")
	flag.BoolVar(&cfg.once, "once", false, "Run one fetch+aggregate+report cycle and exit")

	flag.Parse()

	return cfg
}
