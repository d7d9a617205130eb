package main

import "github.com/spf13/cobra"

var rootCmd = &cobra.Command{
	Use:          "meeting-api",
	Short:        "Upload, transcribe and summarize meeting recordings",
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(runCmd)
}
