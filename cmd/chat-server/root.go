package main

import (
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:          "chat-server",
		Short:        "Dibs AI real estate assistant",
		Long:         "chat-server runs the Dibs AI chat API with CRM-aware answers, and can answer a single question from the terminal.",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "",
		"path to a config file (defaults to configs/config.yaml plus config.<APP_ENVIRONMENT>.yaml)")

	rootCmd.AddCommand(
		newServeCmd(opts),
		newAskCmd(opts),
	)
	return rootCmd
}
