package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "meridian",
	Short: "Meridian - OpenAI-compatible multi-provider inference gateway",
	Long: `Meridian is an OpenAI-compatible inference gateway that routes chat
completion requests across many upstream LLM providers.

One request, many upstreams:
  - Tiered candidate routing (preferred, free, paid, emergency)
  - Automatic fallback on classified upstream failures
  - Per-provider health memory with class-specific cooldowns
  - Per-provider request and token budgets over minute windows
  - SSE streaming with automatic downgrade for non-streaming models`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "meridian.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
