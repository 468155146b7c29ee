package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go-data-pipeline/internal/config"
	"go-data-pipeline/internal/logger"
	"go-data-pipeline/internal/notify"
	"go-data-pipeline/internal/scheduler"
	"go-data-pipeline/internal/store"
)

const serviceName = "etl-pipeline"

type options struct {
	cfgFile string
	v       *viper.Viper
}

func newRootCmd() *cobra.Command {
	opts := &options{v: config.New()}

	root := &cobra.Command{
		Use:   "pipeline",
		Short: "ETL pipeline execution and scheduling engine",
		Long: `pipeline runs extract, transform, load jobs described by stored
pipeline definitions, either on cron schedules or on demand.

Settings come from pipeline.yaml, ETL_* environment variables and flags.

Example:
  pipeline serve --addr :8080
  pipeline run payroll-sync
  pipeline configs import exported.yaml --overwrite`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       "1.0.0",
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.cfgFile, "config", "", "config file (default: ./pipeline.yaml)")
	flags.String("store-dir", "", "directory holding pipelines.json")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	cobra.CheckErr(opts.v.BindPFlag("store.dir", flags.Lookup("store-dir")))
	cobra.CheckErr(opts.v.BindPFlag("log.level", flags.Lookup("log-level")))

	root.AddCommand(
		newServeCmd(opts),
		newRunCmd(opts),
		newValidateCmd(opts),
		newConfigsCmd(opts),
		newHistoryCmd(opts),
	)
	return root
}

// app holds the components shared by subcommands.
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	store    *store.FileStore
	history  *store.HistoryStore
	closers  []func() error
	notifier notify.Notifier
}

func (o *options) load() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load(o.v, o.cfgFile)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger.New(cfg.Log, serviceName), nil
}

// newApp opens the definition store and, when configured, the history
// database and notification sinks.
func (o *options) newApp() (*app, error) {
	cfg, log, err := o.load()
	if err != nil {
		return nil, err
	}
	st, err := store.NewFileStore(cfg.Store.Dir)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log, store: st}

	if cfg.History.DB != "" {
		h, err := store.OpenHistory(cfg.History.DB, log)
		if err != nil {
			return nil, err
		}
		a.history = h
		a.closers = append(a.closers, h.Close)
	}

	var sinks notify.Multi
	if cfg.Notify.WebhookURL != "" {
		client := &http.Client{Timeout: cfg.Notify.Timeout}
		sinks = append(sinks, notify.NewWebhook(cfg.Notify.WebhookURL, cfg.Notify.Retry, client, log))
	}
	if cfg.Notify.Kafka.Enabled() {
		k, err := notify.NewKafka(cfg.Notify.Kafka, log)
		if err != nil {
			a.Close()
			return nil, err
		}
		sinks = append(sinks, k)
		a.closers = append(a.closers, k.Close)
	}
	a.notifier = notify.Nop
	if len(sinks) > 0 {
		a.notifier = sinks
	}
	return a, nil
}

func (a *app) scheduler() *scheduler.Scheduler {
	opts := []scheduler.Option{scheduler.WithNotifier(a.notifier)}
	if a.history != nil {
		opts = append(opts, scheduler.WithHistoryRecorder(a.history))
	}
	return scheduler.New(scheduler.Config{
		HistoryLimit:  a.cfg.History.Limit,
		NotifyTimeout: a.cfg.Notify.Timeout,
		Engine:        a.cfg.Engine,
	}, a.store, a.log, opts...)
}

// pruneHistory drops persisted entries older than history.max_age.
func (a *app) pruneHistory(ctx context.Context) {
	if a.history == nil || a.cfg.History.MaxAge <= 0 {
		return
	}
	n, err := a.history.Prune(ctx, timeNow().Add(-a.cfg.History.MaxAge))
	if err != nil {
		a.log.Warn("Failed to prune history", logger.ErrorFields(err))
		return
	}
	a.log.Info("Pruned history", logger.Fields("removed", n))
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

func requireHistory(a *app) error {
	if a.history == nil {
		return fmt.Errorf("history.db is not configured")
	}
	return nil
}
