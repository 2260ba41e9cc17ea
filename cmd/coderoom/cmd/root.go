package cmd

import (
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "coderoom",
	Short: "Real-time collaboration rooms with mesh audio",
	Long: `coderoom is a command-line client for collaboration rooms. It joins a
room over the signal server, negotiates direct audio links with every
other member, and keeps the shared editor state in sync.`,
}

// Execute runs the root command. Called once from main.
func Execute() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		pterm.Error.Println(err.Error())
		os.Exit(1)
	}
}
