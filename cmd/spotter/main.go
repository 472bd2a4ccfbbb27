package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"spotter/internal/app"
)

func main() {
	rootCmd := newRootCmd(func(config app.Config) error {
		return app.NewApplication(config).Start()
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd builds the CLI; start receives the resolved configuration
func newRootCmd(start func(app.Config) error) *cobra.Command {
	flags := app.DefaultConfig()
	var configPath string
	var showVersion bool

	rootCmd := &cobra.Command{
		Use:   "spotter [lat long]",
		Short: "ADS-B aircraft tracker with a JSON API",
		Long: `Spotter connects to a dump1090-style feed, tracks every aircraft it hears
and serves the live picture over HTTP.

The observer position may be given as two positional arguments, with
--lat/--long, or in the config file. Settings resolve as defaults, then the
config file, then flags and arguments.

Negative coordinates look like flags, so pass them after "--" or with
--lat/--long.

Example usage:
  spotter 52.3086 4.7639
  spotter -- -33.9461 151.1772
  spotter --lat=-33.9461 --long=151.1772
  spotter --config /etc/spotter.yml --serve-addr 0.0.0.0:3000`,
		Args:          observerArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				app.ShowVersion(cmd.OutOrStdout())
				return nil
			}

			config, err := resolveConfig(cmd, flags, configPath, args)
			if err != nil {
				return err
			}
			if err := config.Validate(); err != nil {
				return err
			}
			return start(config)
		},
	}

	rootCmd.SetFlagErrorFunc(coordinateFlagError)

	f := rootCmd.Flags()
	f.Float64Var(&flags.Latitude, "lat", 0, "Observer latitude in degrees")
	f.Float64Var(&flags.Longitude, "long", 0, "Observer longitude in degrees")
	f.StringVarP(&flags.ServeAddr, "serve-addr", "s", app.DefaultServeAddr, "HTTP listen address")
	f.StringVarP(&flags.FeedAddr, "dump1090-addr", "d", app.DefaultFeedAddr, "Feed address (host:port)")
	f.StringVar(&flags.FeedFormat, "feed-format", app.DefaultFeedFormat, "Feed framing: avr or beast")
	f.DurationVar(&flags.MaxAge, "max-age", app.DefaultMaxAge, "Forget aircraft not heard from for this long")
	f.Float64Var(&flags.MaxRange, "max-range", app.DefaultMaxRange, "Discard positions further than this (km)")
	f.DurationVar(&flags.SweepInterval, "sweep-interval", 0, "Also evict on this interval (0 evicts only on traffic)")
	f.DurationVar(&flags.StatsInterval, "stats-interval", app.DefaultStatsInterval, "Statistics log interval (0 disables)")
	f.DurationVar(&flags.DialTimeout, "dial-timeout", app.DefaultDialTimeout, "Feed connect timeout")
	f.StringVarP(&flags.LogDir, "log-dir", "l", "", "Also write logs to daily files in this directory")
	f.BoolVarP(&flags.LogRotateUTC, "utc", "u", false, "Use UTC dates for log rotation")
	f.IntVar(&flags.LogRetentionDays, "log-retention-days", 0, "Remove log files older than this many days (0 keeps all)")
	f.BoolVarP(&flags.Verbose, "verbose", "v", false, "Verbose logging")
	f.StringVarP(&configPath, "config", "c", "", "YAML config file")
	f.BoolVar(&showVersion, "version", false, "Show version information")

	return rootCmd
}

// coordinateFlagError points at "--" when a negative coordinate was taken
// for a shorthand flag
func coordinateFlagError(cmd *cobra.Command, err error) error {
	msg := err.Error()
	idx := strings.LastIndex(msg, " in -")
	if !strings.HasPrefix(msg, "unknown shorthand flag") || idx < 0 {
		return err
	}
	if _, perr := strconv.ParseFloat(msg[idx+len(" in "):], 64); perr != nil {
		return err
	}
	return fmt.Errorf("%w (pass negative coordinates after \"--\" or use --lat/--long)", err)
}

// observerArgs accepts either no positional arguments or "lat long"
func observerArgs(cmd *cobra.Command, args []string) error {
	if len(args) != 0 && len(args) != 2 {
		return fmt.Errorf("expected 0 or 2 positional arguments (lat long), got %d", len(args))
	}
	return nil
}

// resolveConfig layers defaults, the config file, changed flags and
// positional arguments, in that order
func resolveConfig(cmd *cobra.Command, flags app.Config, configPath string, args []string) (app.Config, error) {
	config := app.DefaultConfig()
	if configPath != "" {
		if err := app.LoadFile(configPath, &config); err != nil {
			return config, err
		}
	}

	changed := cmd.Flags().Changed
	if changed("lat") {
		config.Latitude = flags.Latitude
	}
	if changed("long") {
		config.Longitude = flags.Longitude
	}
	if changed("serve-addr") {
		config.ServeAddr = flags.ServeAddr
	}
	if changed("dump1090-addr") {
		config.FeedAddr = flags.FeedAddr
	}
	if changed("feed-format") {
		config.FeedFormat = flags.FeedFormat
	}
	if changed("max-age") {
		config.MaxAge = flags.MaxAge
	}
	if changed("max-range") {
		config.MaxRange = flags.MaxRange
	}
	if changed("sweep-interval") {
		config.SweepInterval = flags.SweepInterval
	}
	if changed("stats-interval") {
		config.StatsInterval = flags.StatsInterval
	}
	if changed("dial-timeout") {
		config.DialTimeout = flags.DialTimeout
	}
	if changed("log-dir") {
		config.LogDir = flags.LogDir
	}
	if changed("utc") {
		config.LogRotateUTC = flags.LogRotateUTC
	}
	if changed("log-retention-days") {
		config.LogRetentionDays = flags.LogRetentionDays
	}
	if changed("verbose") {
		config.Verbose = flags.Verbose
	}

	if len(args) == 2 {
		lat, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return config, fmt.Errorf("invalid latitude %q: %w", args[0], err)
		}
		long, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return config, fmt.Errorf("invalid longitude %q: %w", args[1], err)
		}
		config.Latitude = lat
		config.Longitude = long
	}

	return config, nil
}
