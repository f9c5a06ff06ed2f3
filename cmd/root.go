package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "payment-events",
	Short: "Payment event pipeline service",
	Long:  "Receives gateway and partner webhooks, fans events out to partners and the event bus, and runs the premium queue and subscription jobs.",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
