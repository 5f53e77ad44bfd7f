// Package commands implements the nbresolve CLI.
package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/marcuoli/go-nameresolve/internal/config"
	"github.com/marcuoli/go-nameresolve/internal/logger"
	"github.com/marcuoli/go-nameresolve/pkg/nameresolve"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	// Global flags.
	cfgFile    string
	logLevel   string
	debugLevel string
	output     string

	// cfg is loaded before every command that needs it.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "nbresolve",
	Short: "nbresolve - NetBIOS, WINS and AD name resolution",
	Long: `nbresolve resolves NetBIOS names through lmhosts, WINS, DNS, AD SRV
records and subnet broadcast in a configurable order, finds domain
controllers, master browsers and PDCs, and queries node status.

Use "nbresolve [command] --help" for more information about a command.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

// Execute runs the root command. Cancelling ctx aborts lookups in flight
// and stops the API server.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// GetRootCmd returns the root command for testing purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/nbresolve/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")
	rootCmd.PersistentFlags().StringVar(&debugLevel, "debug", "", "resolver debug messages: off, basic, verbose (overrides config)")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "text", "output format: text, json, yaml")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(lookupCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(dclistCmd)
	rootCmd.AddCommand(masterCmd)
	rootCmd.AddCommand(pdcCmd)
	rootCmd.AddCommand(safCmd)
	rootCmd.AddCommand(negconnCmd)
	rootCmd.AddCommand(winsCmd)
	rootCmd.AddCommand(serveCmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// setup loads the configuration and initializes logging. Commands that do
// not touch the resolver skip it.
func setup(cmd *cobra.Command, args []string) error {
	switch cmd.Name() {
	case "init", "version":
		return nil
	}

	var err error
	if cfg, err = config.Load(cfgFile); err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Logging.Level = strings.ToUpper(logLevel)
	}
	if debugLevel != "" {
		cfg.Logging.Debug = strings.ToLower(debugLevel)
	}

	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	level, err := nameresolve.ParseDebugLevel(cfg.Logging.Debug)
	if err != nil {
		return err
	}
	nameresolve.SetDebugLevel(level)
	if level > nameresolve.DebugOff {
		// Resolver debug output is only visible at DEBUG.
		if err := logger.SetLevel("DEBUG"); err != nil {
			return err
		}
		nameresolve.SetDebugLogger(func(method nameresolve.Method, format string, args ...interface{}) {
			logger.Debug(fmt.Sprintf(format, args...), logger.KeyMethod, string(method))
		})
	}

	switch output {
	case "text", "json", "yaml":
	default:
		return fmt.Errorf("unknown output format %q", output)
	}
	return nil
}

// openResolver builds a resolver from the loaded configuration.
func openResolver(reg prometheus.Registerer) (*nameresolve.Resolver, io.Closer, error) {
	r, closer, err := config.BuildResolver(cfg, reg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build resolver: %w", err)
	}
	return r, closer, nil
}

func closeQuietly(c io.Closer) {
	if err := c.Close(); err != nil {
		logger.Warn("close cache", logger.Err(err))
	}
}

// PrintErr prints an error message to stderr.
func PrintErr(format string, args ...any) {
	rootCmd.PrintErrf(format+"\n", args...)
}
