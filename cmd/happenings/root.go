package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"happenings/internal/catalog"
	"happenings/internal/config"
	"happenings/internal/datekey"
	"happenings/internal/ics"
	appLog "happenings/internal/log"
	"happenings/internal/web"
)

var (
	cfgPath  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "happenings",
	Short: "Recurring community events and venue matching",
	Long: `happenings expands recurring event schedules into concrete dates and
matches free-text venue mentions against a venue catalog. It runs as an
HTTP API (serve) or as one-shot commands for scripts.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if logLevel != "" {
			appLog.SetLevel(appLog.ParseLevel(logLevel))
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "./config.yaml", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error (overrides config)")

	rootCmd.AddCommand(serveCmd, expandCmd, labelCmd, resolveCmd, importICSCmd)
}

// loadEnv loads the config, applies its log level and resolves the zone.
func loadEnv() (*config.Config, *time.Location, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config %s: %w", cfgPath, err)
	}
	if logLevel == "" {
		appLog.SetLevel(appLog.ParseLevel(cfg.LogLevel))
	}
	loc, err := datekey.LoadZone(cfg.Timezone)
	if err != nil {
		return nil, nil, err
	}
	return cfg, loc, nil
}

var serveListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, loc, err := loadEnv()
		if err != nil {
			return err
		}
		if serveListen != "" {
			cfg.Listen = serveListen
		}

		appLog.Info("effective config",
			"listen", cfg.Listen,
			"timezone", cfg.Timezone,
			"horizon_days", cfg.HorizonDays,
			"catalog", cfg.Catalog.Path,
			"refresh", cfg.Catalog.Refresh,
			"feeds", len(cfg.Catalog.Feeds),
		)

		// Root context with cancellation on SIGINT/SIGTERM.
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		store := catalog.NewStore(cfg.Catalog.Path)
		if len(cfg.Catalog.Feeds) > 0 {
			feeds := make([]ics.Feed, 0, len(cfg.Catalog.Feeds))
			for _, f := range cfg.Catalog.Feeds {
				feeds = append(feeds, ics.Feed{ID: f.ID, URL: f.URL})
			}
			store.WithFeeds(ics.NewFetcher(cfg.Catalog.CacheDir), feeds, loc)
		}
		if err := store.Reload(ctx); err != nil {
			return err
		}
		if cfg.Catalog.Refresh != "" {
			if err := store.StartRefresh(ctx, cfg.Catalog.Refresh, loc); err != nil {
				return err
			}
		}

		srv, err := web.NewServer(cfg, store)
		if err != nil {
			return err
		}
		if err := srv.ListenAndServe(ctx); err != nil {
			return err
		}
		appLog.Info("happenings exiting")
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "HTTP listen address (overrides config if set)")
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
