package main

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httpclient "github.com/romanperesypkin/http-client"
	"github.com/romanperesypkin/http-client/config"
)

const defaultAppName = "httpclient"

type rootOptions struct {
	configPath string
	envPrefix  string
	appName    string
	limit      int
	timeout    string
	propagate  bool
	debug      bool

	logger   *zap.Logger
	registry *prometheus.Registry
}

// NewRootCmd constructs the root CLI command.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&rootOptions{})
}

func newRootCmd(o *rootOptions) *cobra.Command {
	if o.registry == nil {
		o.registry = prometheus.NewRegistry()
	}

	rootCmd := &cobra.Command{
		Use:           "httpclient",
		Short:         "Instrumented HTTP client with Prometheus counters",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if o.logger != nil {
				return nil
			}
			logger, err := newLogger(o.debug)
			if err != nil {
				return fmt.Errorf("failed to build logger: %w", err)
			}
			o.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = o.logger.Sync()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&o.configPath, "config", "c", "", "Path to a YAML, JSON or TOML config file")
	flags.StringVar(&o.envPrefix, "env-prefix", "", "Read settings from environment variables with this prefix")
	flags.StringVar(&o.appName, "app", "", "Application name used as the metric prefix")
	flags.IntVar(&o.limit, "limit", httpclient.DefaultConnectionLimit, "Maximum simultaneous connections")
	flags.StringVar(&o.timeout, "timeout", "30", "Request timeout in seconds or as a duration")
	flags.BoolVar(&o.propagate, "propagate-errors", false, "Return transport exceptions instead of an absent result")
	flags.BoolVarP(&o.debug, "debug", "d", false, "Enable debug logging")

	rootCmd.AddCommand(newGetCmd(o))
	rootCmd.AddCommand(newPostCmd(o))
	rootCmd.AddCommand(newServeMetricsCmd(o))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// loadConfig resolves settings from file, then environment, then flags.
func (o *rootOptions) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)

	switch {
	case o.configPath != "":
		cfg, err = config.LoadFile(o.configPath, o.envPrefix)
	case o.envPrefix != "":
		cfg, err = config.LoadEnv(o.envPrefix)
	default:
		defaults := config.Default()
		cfg = &defaults
	}
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("app") {
		cfg.AppName = o.appName
	}
	if cfg.AppName == "" {
		cfg.AppName = defaultAppName
	}
	if flags.Changed("limit") {
		cfg.HTTPConnectionLimit = o.limit
	}
	if flags.Changed("timeout") {
		timeout, err := config.ParseSeconds(o.timeout)
		if err != nil {
			return nil, fmt.Errorf("--timeout: %w", err)
		}
		cfg.HTTPRequestTimeout = config.Seconds(timeout)
	}
	if flags.Changed("propagate-errors") {
		cfg.PropagateErrors = o.propagate
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (o *rootOptions) newClient(cmd *cobra.Command) (*httpclient.Client, error) {
	cfg, err := o.loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	return cfg.NewClient(
		httpclient.WithLogger(o.logger),
		httpclient.WithRegisterer(o.registry),
	)
}
