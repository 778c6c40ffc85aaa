package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:           "coachd",
	Short:         "On-device AI nutrition and training coach",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(summarizeCmd)
	rootCmd.AddCommand(plansCmd)
	rootCmd.AddCommand(memoryCmd)
	rootCmd.AddCommand(personasCmd)
	rootCmd.AddCommand(docsCmd)
	rootCmd.AddCommand(stateCmd)
	rootCmd.AddCommand(configCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
