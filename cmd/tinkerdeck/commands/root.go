// Package commands implements the tinkerdeck command line.
package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/livetemplate/tinkerdeck/internal/config"
	"github.com/livetemplate/tinkerdeck/internal/journal"
	"github.com/livetemplate/tinkerdeck/internal/logger"
)

var (
	cfgFile string
	logMode string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "tinkerdeck",
	Short: "Present HTML and markdown slide decks",
	Long: `Tinkerdeck serves slide decks written as HTML or markdown. Each deck is
driven by keyboard and URL fragment: one slide is shown at a time, steps
inside a slide are revealed one by one, and embedded iframes only run
while their slide is visible.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default: tinkerdeck.yaml in the deck directory)")
	rootCmd.PersistentFlags().StringVar(&logMode, "log-mode", "", "log format: dev or prod (overrides log.mode)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// loadConfig loads the --config file, or the config found in dir.
// Flags override config.
func loadConfig(dir string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if cfgFile != "" {
		cfg, err = config.Load(cfgFile)
	} else {
		cfg, err = config.LoadFromDir(dir)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if logMode != "" {
		cfg.Log.Mode = logMode
	}
	if debug {
		cfg.Server.Debug = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return logger.New(cfg.Log.Mode, cfg.Server.Debug)
}

// openJournal opens the configured journal store. A relative sqlite DSN is
// resolved against dir.
func openJournal(cfg *config.Config, dir string) (*journal.SQLStore, error) {
	driver := journalDriver(cfg)
	dsn := cfg.GetJournalDSN()
	if driver == journal.DriverSQLite && dsn != "" && !filepath.IsAbs(dsn) && dsn != ":memory:" {
		dsn = filepath.Join(dir, dsn)
	}
	return journal.Open(driver, dsn)
}

func journalDriver(cfg *config.Config) string {
	if cfg.Journal.Driver == "" {
		return journal.DriverSQLite
	}
	return cfg.Journal.Driver
}
