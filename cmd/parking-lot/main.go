package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"parking-facility/internal/config"
)

var v = config.New()

var rootCmd = &cobra.Command{
	Use:   "parking-lot",
	Short: "Parking facility entry, exit and pricing service",
	Long: `parking-lot assigns spots to arriving vehicles, tracks tickets and
prices each stay when the vehicle leaves.

The layout (floors, sections, spots) and the institution rules are read from
a YAML file. Tickets are kept in a SQLite ledger so active sessions survive a
restart. Every flag can also be set through a PARKING_* environment variable,
for example PARKING_LOG_LEVEL=debug.`,
	SilenceUsage: true,
}

func main() {
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func addPersistentFlags() {
	flags := rootCmd.PersistentFlags()
	flags.StringP("port", "p", "8080", "port for the HTTP server")
	flags.StringP("layout", "l", "layout.yaml", "layout YAML file")
	flags.String("database", "data/tickets.db", "SQLite ticket ledger")
	flags.String("environment", "development", "deployment environment")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("service-name", "parking-facility", "service name reported to telemetry")
	flags.String("otel-endpoint", "http://localhost:4318", "OTLP/HTTP collector endpoint")
	flags.Duration("metrics-interval", 5*time.Second, "OTLP metric export interval")
	flags.Duration("shutdown-timeout", 10*time.Second, "graceful shutdown timeout")
	flags.Bool("persist-layout", true, "write spot occupancy back to the layout file")
	flags.Int("history-size", 20, "default number of completed tickets listed")

	for _, name := range []string{
		"port", "layout", "database", "environment", "log-level", "service-name",
		"otel-endpoint", "metrics-interval", "shutdown-timeout", "persist-layout", "history-size",
	} {
		_ = v.BindPFlag(name, flags.Lookup(name))
	}
}

func registerCommands() {
	rootCmd.AddCommand(cliCmd())
	rootCmd.AddCommand(serverCmd())
	rootCmd.AddCommand(bothCmd())
	rootCmd.AddCommand(checkCmd())
}

func cliCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cli",
		Short: "Run the interactive operator console",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), config.Load(v), modeCLI)
		},
	}
}

func serverCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "Serve the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), config.Load(v), modeServer)
		},
	}
}

func bothCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "both",
		Short: "Serve the HTTP API and run the console side by side",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), config.Load(v), modeBoth)
		},
	}
}

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the layout file and print its capacity",
		RunE: func(cmd *cobra.Command, args []string) error {
			return check(cmd.Context(), config.Load(v), cmd.OutOrStdout())
		},
	}
}
