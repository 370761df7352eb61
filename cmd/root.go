// Package cmd defines and implements the CLI commands for the sitesignal
// executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sitesignal/sitesignal/pkg/config"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sitesignal",
		Short: "Web-content acquisition and signal extraction for lead enrichment",
		Long: `sitesignal fetches business websites resiliently (plain HTTP with
bot-detection classification, escalating to stealth headless rendering when
blocked) and extracts enrichment signals: locations, contact emails, and
ideal-customer-profile features.`,
		SilenceUsage: true,
	}

	cobra.OnInitialize(func() {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		}
		if err := config.InitConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "read config: %v\n", err)
			os.Exit(1)
		}
	})

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default searches ., /etc/sitesignal, $HOME/.sitesignal)")
	cmd.PersistentFlags().Bool("dev", false, "human-readable development logging")
	_ = viper.BindPFlag("log.development", cmd.PersistentFlags().Lookup("dev"))

	cmd.AddCommand(newEnrichCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
