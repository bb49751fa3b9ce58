package main

import (
	"context"
	"fmt"
	"os"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"

	"github.com/jbweber/foundry-ovirt/internal/config"
	"github.com/jbweber/foundry-ovirt/internal/loader"
	"github.com/jbweber/foundry-ovirt/internal/metrics"
	"github.com/jbweber/foundry-ovirt/internal/output"
	"github.com/jbweber/foundry-ovirt/internal/ovirt"
)

var (
	version = "dev"
	commit  = "unknown"
)

// Global flags
var (
	configPath     string
	stateDir       string
	machineName    string
	logLevel       string
	logDevelopment bool
	metricsFile    string
)

// Output flags for status
var (
	outputFormat string
	noHeaders    bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "foundry-ovirt",
	Short: "Foundry oVirt - oVirt VM provisioning tool",
	Long: `Foundry oVirt provisions virtual machines on an oVirt engine from a
template and tracks each one as a machine record on disk.

A failed or interrupted provisioning is rolled back by destroying the VM
it created.`,
	Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Provider config file (OVIRT_* environment variables override it)")
	rootCmd.PersistentFlags().StringVar(&stateDir, "state-dir", ".foundry-ovirt", "Directory holding machine records")
	rootCmd.PersistentFlags().StringVarP(&machineName, "machine", "m", "default", "Machine name")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logDevelopment, "log-development", false, "Human-readable development logging")
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "", "Write Prometheus metrics to this file on exit")

	rootCmd.AddCommand(upCmd)
	rootCmd.AddCommand(destroyCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(testConnCmd)
}

var testConnCmd = &cobra.Command{
	Use:   "test-conn",
	Short: "Test oVirt connection",
	Long:  `Test connectivity and credentials against the configured oVirt engine.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		log, sync, err := newLogger(logLevel, logDevelopment)
		if err != nil {
			return err
		}
		defer sync()

		ctx := cmd.Context()
		cfg, err := config.LoadFromFile(ctx, configPath)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		fmt.Printf("Testing connection to %s...\n", cfg.URL)
		client, err := ovirt.ConnectWithContext(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer closeClient(client, log)

		fmt.Println("✓ Connected to oVirt engine")

		if err := client.Ping(); err != nil {
			return fmt.Errorf("connection test failed: %w", err)
		}
		fmt.Printf("✓ Authenticated as %s\n", cfg.Username)

		fmt.Println("\nConnection test successful!")
		return nil
	},
}

// session is everything an action needs for one machine.
type session struct {
	log    logr.Logger
	sync   func()
	cfg    *config.ProviderConfig
	store  *loader.Store
	client *ovirt.Client
	ui     *output.TerminalUI
}

// openSession loads the configuration and machine record and connects to
// oVirt. The caller must call close.
func openSession(ctx context.Context) (*session, error) {
	log, sync, err := newLogger(logLevel, logDevelopment)
	if err != nil {
		return nil, err
	}
	s := &session{log: log, sync: sync, store: loader.NewStore(stateDir)}

	s.cfg, err = config.LoadFromFile(ctx, configPath)
	if err != nil {
		sync()
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	s.client, err = ovirt.ConnectWithContext(ctx, s.cfg, log)
	if err != nil {
		sync()
		return nil, err
	}

	s.ui = output.NewTerminalUI(machineName, os.Stdin, os.Stdout, os.Stderr)
	return s, nil
}

func (s *session) close() {
	closeClient(s.client, s.log)
	if metricsFile != "" {
		if err := metrics.WriteTextfile(metricsFile); err != nil {
			s.log.Error(err, "Failed to write metrics", "path", metricsFile)
		}
	}
	s.sync()
}

func closeClient(client *ovirt.Client, log logr.Logger) {
	if err := client.Close(); err != nil {
		log.Error(err, "Failed to close oVirt connection")
	}
}
