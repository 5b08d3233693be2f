package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pk55-api/config"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:   "pk55-api",
	Short: "PK55 backend: auth, discount banner and image gallery",
	Long: `PK55 backend: auth, discount banner and image gallery.

Running without a subcommand starts the HTTP server.

Configuration is read from the environment, optionally seeded from a .env file.
` + config.Usage(),
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Path to a .env file (default: ./.env when present)")
	rootCmd.AddCommand(serveCmd, createUserCmd)
}

func envFiles() []string {
	if envFile == "" {
		return nil
	}
	return []string{envFile}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
