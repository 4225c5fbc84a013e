package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/aretw0/alertidx/internal/platform"
	"github.com/aretw0/alertidx/pkg/dao"
)

var (
	verbose     bool
	noColor     bool
	configPath  string
	storeURI    string
	metricsFile string

	registry = prometheus.NewRegistry()
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "alertidx",
	Short: "Read, update and search alerts stored in a document index",
	Long: `alertidx is the command line front of the alert index access layer.
It resolves sensor types to indices, versions every write and applies
patches and comments to the latest stored version of an alert.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}

		opts := &slog.HandlerOptions{
			Level: level,
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, opts))
		slog.SetDefault(logger)

		if noColor || !(isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())) {
			color.NoColor = true
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if metricsFile == "" {
			return
		}
		if err := prometheus.WriteToTextfile(metricsFile, registry); err != nil {
			fatal("Failed to write metrics", err)
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: alertidx.yaml found upwards from the working directory)")
	rootCmd.PersistentFlags().StringVar(&storeURI, "uri", "", "Store URI overriding the config (memory, kv:///path, fs:///path, https://host)")
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "", "Write update metrics to this file in the text exposition format")
}

// loadConfig resolves the access configuration from --config, the nearest
// alertidx.yaml and --uri, in that order of precedence for the file and with
// --uri overriding the file's store.
func loadConfig() (dao.AccessConfig, error) {
	path := configPath
	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return dao.AccessConfig{}, err
		}
		found, err := platform.FindConfig(wd)
		switch {
		case err == nil:
			path = found
		case storeURI == "":
			return dao.AccessConfig{}, fmt.Errorf("%w (use --config or --uri)", err)
		}
	}

	var cfg dao.AccessConfig
	if path != "" {
		var err error
		cfg, err = dao.LoadConfig(path)
		if err != nil {
			return dao.AccessConfig{}, err
		}
		slog.Debug("config loaded", "path", path)
	}
	if storeURI != "" {
		cfg.URI = storeURI
		cfg.Adapter = ""
	}
	return cfg, nil
}

// openDao builds an initialized Dao from the resolved configuration.
func openDao(ctx context.Context) *dao.Dao {
	cfg, err := loadConfig()
	if err != nil {
		fatal("Failed to load config", err)
	}
	d := dao.New(
		dao.WithLogger(slog.Default()),
		dao.WithRegisterer(registry),
	)
	if err := d.EnsureInitialized(ctx, cfg); err != nil {
		fatal("Failed to initialize index dao", err)
	}
	return d
}
