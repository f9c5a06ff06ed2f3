package cmd

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vibast-solutions/ms-go-payment-events/app/service"
)

var busCmd = &cobra.Command{
	Use:   "bus",
	Short: "Event bus commands",
}

var busHealthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the configured event bus is reachable",
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg := mustLoadConfig()
		transport, closeTransport := newBusTransport(cfg.EventBus)
		if closeTransport != nil {
			defer closeTransport()
		}

		bus := service.NewEventBusForwarder(transport, service.EventBusConfig{Enabled: cfg.EventBus.Enabled}, nil)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		l := logrus.WithField("transport", cfg.EventBus.Transport)
		if err := bus.Health(ctx); err != nil {
			l.WithError(err).Error("Event bus unreachable")
			return err
		}
		l.Info("Event bus reachable")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(busCmd)
	busCmd.AddCommand(busHealthCmd)
}
