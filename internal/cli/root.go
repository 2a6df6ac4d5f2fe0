package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lazypower/drift/internal/config"
	"github.com/lazypower/drift/internal/logger"
	"github.com/lazypower/drift/internal/store"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:          "drift",
	Short:        "A decay-ranked personal content feed",
	Long:         "Drift stores generated posts and serves them back through an infinite, decay-ranked feed. Single Go binary, SQLite storage.",
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.drift/config.toml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(postCmd)
	rootCmd.AddCommand(seenCmd)
	rootCmd.AddCommand(reactCmd)
	rootCmd.AddCommand(savedCmd)
	rootCmd.AddCommand(scrollCmd)
	rootCmd.AddCommand(generatorsCmd)
}

// loadConfig reads the configuration and initialises the root logger from it.
func loadConfig() (config.Config, error) {
	path := configPath
	if path == "" {
		var err error
		if path, err = config.DefaultPath(); err != nil {
			return config.Config{}, err
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	logger.Init(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	return cfg, nil
}

// openDB opens the database named by cfg, or the default path.
func openDB(cfg config.Config) (*store.DB, error) {
	dbPath := cfg.Database.Path
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("resolve db path: %w", err)
		}
	}
	return store.Open(dbPath)
}
