package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

var configPath string

// -----------------------------------------------------------------------------

var rootCmd = &cobra.Command{
	Use:   "market-dashboard",
	Short: "Real-time crypto market dashboard backend",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the reconcilers and serve the dashboard API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(configPath)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version)
	},
}

// -----------------------------------------------------------------------------

func main() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config/default.yaml", "path to config file")
	rootCmd.AddCommand(serveCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
