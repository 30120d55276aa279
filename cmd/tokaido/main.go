// Command tokaido plays the Tokaido narration with synchronized text and
// manages the sync data behind it.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tokaido",
	Short: "Synchronized narration reader for the Tokaido road",
	Long: `tokaido follows the narration player and shows the text segment and
station being read, along the 53 stations of the Tokaido.

Run without a subcommand to open the terminal UI. The player daemon must be
running for playback and sync recording; the UI reconnects automatically.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runTUI,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Config file (default: <data dir>/config.yaml)")
	rootCmd.PersistentFlags().String("db", "", "SQLite database path (overrides config)")
	rootCmd.PersistentFlags().String("catalog", "", "Catalog file path (overrides config)")

	rootCmd.AddGroup(
		&cobra.Group{ID: "data", Title: "Sync data:"},
		&cobra.Group{ID: "serve", Title: "Servers:"},
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
