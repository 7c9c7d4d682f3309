package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/jbweber/virtconn/internal/config"
	"github.com/jbweber/virtconn/internal/conn"
	"github.com/jbweber/virtconn/internal/logging"
	"github.com/jbweber/virtconn/internal/metrics"
	"github.com/jbweber/virtconn/internal/output"
)

var (
	version = "dev"
	commit  = "unknown"
)

// Global flags.
var (
	connectURI string
	configPath string
	logLevel   string
	logFormat  string
	outputFlag  string
	noHeaders   bool
	metricsFile string
)

// connOptions are appended to the options openConnection builds with.
var connOptions []conn.Option

// cfg is populated by the root command's PersistentPreRunE.
var cfg *config.Config

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "virtconn",
	Short: "virtconn - libvirt connection inspector",
	Long: `virtconn opens a libvirt connection and reports what it finds: guests,
storage pools and volumes, node devices, host capabilities, versions
and which optional features the connection supports.

The connection address comes from --connect, the config file,
VIRTCONN_URI or LIBVIRT_DEFAULT_URI, in that order. An empty address
lets the daemon pick its default hypervisor.`,
	Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		cfg = loaded
		logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Component: "virtconn"})
		return nil
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&connectURI, "connect", "c", "", "Connection address (libvirt URI or synthetic test address)")
	flags.StringVar(&configPath, "config", "", "Path to a YAML config file")
	flags.StringVar(&logLevel, "log-level", "", "Log level (trace, debug, info, warn, error, disabled)")
	flags.StringVar(&logFormat, "log-format", "", "Log format (auto, console, json)")
	flags.StringVarP(&outputFlag, "output", "o", "", "Output format (table, yaml, json)")
	flags.BoolVar(&noHeaders, "no-headers", false, "Omit headers in table output")
	flags.StringVar(&metricsFile, "metrics-file", "", "Write prometheus metrics to this file when the connection closes")

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(capsCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(supportCmd)
	rootCmd.AddCommand(uriCmd)
	rootCmd.AddCommand(testConnCmd)
}

// loadConfig reads the config file and environment, then applies any
// flags the user set explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	c, err := config.Load(configPath, ".env")
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("connect") {
		c.URI = connectURI
	}
	if flags.Changed("log-level") {
		c.LogLevel = logLevel
	}
	if flags.Changed("log-format") {
		c.LogFormat = logFormat
	}
	if flags.Changed("output") {
		c.Output = outputFlag
	}

	c.Normalize()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// openConnection opens a Connection for the configured address. Callers
// must Close it.
func openConnection(ctx context.Context) (*conn.Connection, error) {
	opts := append([]conn.Option{
		conn.WithDialer(cfg.Transport.Dialer()),
		conn.WithLogger(log.With().Str("component", "conn").Logger()),
	}, connOptions...)

	c, err := conn.New(cfg.URI, opts...)
	if err != nil {
		return nil, err
	}

	if err := c.Open(ctx, promptCredentials, newPrompter(os.Stdin, os.Stderr)); err != nil {
		return nil, err
	}

	if cfg.KeepAlive.Interval > 0 {
		if err := c.SetKeepAlive(cfg.KeepAlive.Interval, cfg.KeepAlive.Count); err != nil {
			log.Warn().Err(err).Msg("Failed to enable keep-alive")
		}
	}

	return c, nil
}

// closeConnection closes c and writes the metrics file if one was asked for.
func closeConnection(c *conn.Connection) int {
	status := c.Close()
	if status < 0 {
		fmt.Fprintf(os.Stderr, "Warning: failed to close connection to %s\n", c.URI())
	}
	writeMetrics()
	return status
}

func writeMetrics() {
	if metricsFile == "" {
		return
	}
	if err := metrics.WriteFile(metricsFile); err != nil {
		log.Warn().Err(err).Str("path", metricsFile).Msg("Failed to write metrics file")
	}
}

func newFormatter() (output.Formatter, error) {
	return output.NewFormatter(output.Options{
		Format:    output.Format(cfg.Output),
		NoHeaders: noHeaders,
	})
}

func printFields(fields []output.Field) error {
	formatter, err := newFormatter()
	if err != nil {
		return err
	}

	result, err := formatter.FormatFields(fields)
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}

	fmt.Print(result)
	return nil
}
