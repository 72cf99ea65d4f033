// townsim runs a small scripted tourist economy: a handful of towns routing
// visitors at each other, settling fares and milestone rewards, and syncing
// payment buffers to hopper-like extractors.
//
// Usage:
//
//	townsim run [--ticks N] [--config tuning.yaml] [--rewards rewards.json]
//	            [--items items.yaml] [--db townfare.db] [--data-dir DIR]
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	flagTicks    int
	flagRealtime bool
	flagConfig   string
	flagRewards  string
	flagItems    string
	flagDBPath   string
	flagDataDir  string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "townsim",
	Short: "Scripted tourist visitation economy demo",
}

func init() {
	runCmd.Flags().IntVar(&flagTicks, "ticks", 3000, "simulation ticks to run")
	runCmd.Flags().BoolVar(&flagRealtime, "realtime", false, "pace ticks at the tuned tick rate instead of running flat out")
	runCmd.Flags().StringVar(&flagConfig, "config", "", "tuning.yaml path (optional)")
	runCmd.Flags().StringVar(&flagRewards, "rewards", "", "rewards.json path (optional)")
	runCmd.Flags().StringVar(&flagItems, "items", "", "items.yaml path (optional)")
	runCmd.Flags().StringVar(&flagDBPath, "db", "", "persist town state to this SQLite file")
	runCmd.Flags().StringVar(&flagDataDir, "data-dir", "", "write settlement journal under this directory")
	rootCmd.AddCommand(runCmd)
}
