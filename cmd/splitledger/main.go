// Command splitledger is a terminal client for shared expense groups: it
// pulls a group from the server, prints balances and settlement plans, and
// can watch the group for live changes.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml"
	"github.com/spf13/cobra"

	"github.com/splitledger/splitledger"
	"github.com/splitledger/splitledger/pkg/logger"
)

type config struct {
	ServerURL string `toml:"server_url"`
	PushURL   string `toml:"push_url"`
	Token     string `toml:"token"`
	GroupID   int64  `toml:"group_id"`
	Offline   bool   `toml:"offline"`
	StateDir  string `toml:"state_dir"`
}

var (
	configPath string
	groupFlag  int64
	verbose    bool

	cfg config
)

var rootCmd = &cobra.Command{
	Use:           "splitledger",
	Short:         "Offline-first client for shared expense groups",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		if err := loadConfig(); err != nil {
			return err
		}
		if groupFlag != 0 {
			cfg.GroupID = groupFlag
		}
		if cfg.ServerURL == "" {
			return fmt.Errorf("no server_url configured (looked in %s)", configPath)
		}
		if cfg.GroupID == 0 {
			return fmt.Errorf("no group configured, set group_id or pass --group")
		}
		return nil
	},
}

func defaultConfigPath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "splitledger", "config.toml")
	}
	return "splitledger.toml"
}

func loadConfig() error {
	data, err := os.ReadFile(configPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parse %s: %w", configPath, err)
	}
	return nil
}

func newLogger() logger.Logger {
	if verbose {
		return logger.New(os.Stderr)
	}
	return logger.Nop{}
}

func newClient() *splitledger.Client {
	opts := []splitledger.Option{splitledger.WithLogger(newLogger())}
	if cfg.Offline {
		opts = append(opts, splitledger.WithOfflineQueue())
	}
	if cfg.StateDir != "" {
		opts = append(opts, splitledger.WithPersistence(cfg.StateDir))
	}
	return splitledger.New(cfg.ServerURL, cfg.PushURL, cfg.Token, opts...)
}

// withGroup runs fn against the configured group with a bounded context,
// closing the client afterwards.
func withGroup(fn func(ctx context.Context, g *splitledger.Group) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	c := newClient()
	defer func() { _ = c.Close(context.Background()) }()

	g, err := c.Group(ctx, cfg.GroupID)
	if err != nil {
		return err
	}
	return fn(ctx, g)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath(), "Path to the TOML config file.")
	rootCmd.PersistentFlags().Int64Var(&groupFlag, "group", 0, "Group id, overrides group_id from the config.")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log engine activity to stderr.")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
