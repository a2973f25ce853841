package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"

	"github.com/platinummonkey/adminkit/pkg/audit"
	"github.com/platinummonkey/adminkit/pkg/config"
	"github.com/platinummonkey/adminkit/pkg/observability"
)

var (
	schedule  = flag.String("schedule", "", "Cron schedule for audit log pruning (default: audit.prune_schedule)")
	retention = flag.Duration("retention", 0, "Delete audit entries older than this (default: audit.retention)")
	runOnce   = flag.Bool("run-once", false, "Prune once and exit")
)

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if cfg.Database.DSN() == "" {
		fmt.Fprintln(os.Stderr, "database URL or host and name are required")
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg.Observability.Level(), nil).WithField("component", "janitor")

	if *schedule == "" {
		*schedule = cfg.Audit.PruneSchedule
	}
	if *retention <= 0 {
		*retention = cfg.Audit.Retention
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		logger.WithError(err).Error("failed to open database")
		os.Exit(1)
	}
	defer db.Close()

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	err = db.PingContext(pingCtx)
	cancel()
	if err != nil {
		logger.WithError(err).Error("failed to ping database")
		os.Exit(1)
	}

	store := audit.NewStore(db, db)

	if *runOnce {
		if err := prune(store, *retention, logger); err != nil {
			os.Exit(1)
		}
		return
	}

	c := cron.New()
	if _, err := c.AddFunc(*schedule, func() {
		prune(store, *retention, logger)
	}); err != nil {
		logger.WithError(err).WithField("schedule", *schedule).Error("invalid prune schedule")
		os.Exit(1)
	}

	c.Start()
	logger.WithFields(map[string]interface{}{
		"schedule":  *schedule,
		"retention": retention.String(),
	}).Info("adminkit janitor started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	logger.Info("shutting down")

	<-c.Stop().Done()
	logger.Info("janitor stopped")
}

func prune(store *audit.Store, retention time.Duration, logger *observability.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cutoff := time.Now().Add(-retention)
	n, err := store.Prune(ctx, cutoff)
	if err != nil {
		logger.WithError(err).Error("audit prune failed")
		return err
	}
	logger.WithFields(map[string]interface{}{
		"deleted": n,
		"cutoff":  cutoff.UTC().Format(time.RFC3339),
	}).Info("audit log pruned")
	return nil
}
