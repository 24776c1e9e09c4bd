package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "aurad",
	Short: "AURA clinic assistant backend",
	Long: `aurad runs the AURA backend: knowledge ingestion and retrieval,
intent-routed conversation handling, and the WhatsApp channel bridge.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the aurad version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("aurad version %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (YAML)")
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(seedCmd)
}
