package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vibast-solutions/ms-go-payment-events/config"
)

var (
	workerMode bool
)

type subscriptionJob struct {
	name     string
	interval time.Duration
	run      func(ctx context.Context, svc *services) error
}

func subscriptionJobs(cfg config.JobsConfig) []subscriptionJob {
	return []subscriptionJob{
		{name: "subscriptions_charge", interval: cfg.SubscriptionChargeInterval, run: chargeDue},
		{name: "subscriptions_expire", interval: cfg.SubscriptionExpireInterval, run: expireEnded},
	}
}

func chargeDue(ctx context.Context, svc *services) error {
	n, err := svc.subscriptions.ChargeDue(ctx, time.Now().UTC())
	if err != nil {
		return err
	}
	logrus.WithField("renewed", n).Debug("Due subscriptions charged")
	return nil
}

func expireEnded(ctx context.Context, svc *services) error {
	n, err := svc.subscriptions.ExpireEnded(ctx, time.Now().UTC())
	if err != nil {
		return err
	}
	logrus.WithField("expired", n).Debug("Ended subscriptions expired")
	return nil
}

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Run background jobs once or as workers",
}

var subscriptionsJobsCmd = &cobra.Command{
	Use:   "subscriptions",
	Short: "Run subscription lifecycle jobs",
}

var subscriptionsChargeCmd = &cobra.Command{
	Use:   "charge",
	Short: "Renew subscriptions whose next charge is due",
	Run: func(_ *cobra.Command, _ []string) {
		runCommand(
			"subscriptions_charge",
			func(cfg *config.Config) time.Duration { return cfg.Jobs.SubscriptionChargeInterval },
			chargeDue,
		)
	},
}

var subscriptionsExpireCmd = &cobra.Command{
	Use:   "expire",
	Short: "Expire subscriptions cancelled at period end once the period is over",
	Run: func(_ *cobra.Command, _ []string) {
		runCommand(
			"subscriptions_expire",
			func(cfg *config.Config) time.Duration { return cfg.Jobs.SubscriptionExpireInterval },
			expireEnded,
		)
	},
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(subscriptionsJobsCmd)
	subscriptionsJobsCmd.AddCommand(subscriptionsChargeCmd)
	subscriptionsJobsCmd.AddCommand(subscriptionsExpireCmd)

	jobsCmd.PersistentFlags().BoolVar(&workerMode, "worker", false, "Run continuously using configured interval")
}

func runCommand(
	name string,
	intervalResolver func(cfg *config.Config) time.Duration,
	fn func(ctx context.Context, svc *services) error,
) {
	cfg, svc, cleanup := mustCreateServices()
	defer cleanup()

	if workerMode {
		runWorker(name, intervalResolver(cfg), svc, fn)
		return
	}

	ctx := context.Background()
	runJob(name, func() error { return fn(ctx, svc) })
}

func runWorker(
	name string,
	interval time.Duration,
	svc *services,
	fn func(ctx context.Context, svc *services) error,
) {
	if interval <= 0 {
		logrus.WithField("job", name).Fatal("invalid worker interval")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runJob(name, func() error { return fn(ctx, svc) })

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	for {
		select {
		case <-quit:
			logrus.WithField("job", name).Info("Worker shutdown requested")
			return
		case <-ticker.C:
			runJob(name, func() error { return fn(ctx, svc) })
		}
	}
}

func runJob(name string, fn func() error) {
	start := time.Now()
	err := fn()
	latency := time.Since(start)
	if err != nil {
		logrus.WithError(err).WithField("job", name).WithField("latency", latency.String()).Error("job_failed")
		return
	}
	logrus.WithField("job", name).WithField("latency", latency.String()).Info("job_completed")
}
