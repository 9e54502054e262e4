// Package main is the escape engine binary: the Slack bot, a local console,
// and a safety policy checker.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "escape",
	Short: "LLM-narrated escape adventures for chat servers",
	Long: `escape runs consent-gated text adventures narrated by a language model.
Each player gets a private room; progress survives restarts.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(consoleCmd)
	rootCmd.AddCommand(validateCmd)
}
