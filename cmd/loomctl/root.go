// Package main provides loomctl, a native CLI over the canvas database.
// It drives the same storage and query stack the browser build embeds,
// which makes it the workbench for inspecting and seeding a database file.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/loomcanvas/goloom/internal/durable"
	"github.com/loomcanvas/goloom/internal/query"
	"github.com/loomcanvas/goloom/internal/store"
)

var (
	// flagConfig is set by the --config flag.
	flagConfig string

	// flagDataDir overrides the configured data directory.
	flagDataDir string

	// flagJSON switches list output to JSON.
	flagJSON bool

	// st and queries are the global stack, initialized on startup.
	st      *store.Store
	queries *query.Engine
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "loomctl",
	Short: "loomctl inspects and seeds a canvas database",
	Long: `loomctl opens a canvas database directory with the same storage
engine the browser build uses: an exclusive lock on the database file,
falling back to a volatile in-memory database when another process
holds it.`,
	PersistentPreRunE:  openStack,
	PersistentPostRunE: closeStack,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default: ~/.loomctl/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "database directory (default from config)")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output as JSON")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(tabsCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("loomctl v0.1.0")
	},
}

// openStack loads config and opens the store and query engine.
func openStack(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "version" {
		return nil
	}

	cfg, err := loadConfig(flagConfig)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	dir := flagDataDir
	if dir == "" {
		dir = cfg.GetString(cfgKeyDataDir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	cm := store.NewConnManager(durable.NewOSBackend(dir), cfg.GetString(cfgKeyDBName), nil)
	s := store.New(cm, nil)
	if err := s.Open(context.Background()); err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	if s.IsUsingMemoryFallback() {
		fmt.Fprintln(os.Stderr, "warning: database is locked by another process; using a volatile in-memory copy")
	}

	st = s
	queries = query.New(s.Conn(), nil)
	return nil
}

// closeStack releases the database.
func closeStack(cmd *cobra.Command, args []string) error {
	if st == nil {
		return nil
	}
	return st.Close(context.Background())
}
