package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "medirec",
	Short: "Medicine recommendation front-end service",
	Long: `medirec serves the browser UI of the medicine recommendation system.

It mirrors the signed-in session, asks the prediction endpoint for a
diagnosis and keeps profiles, history and avatars in the configured backend.
Settings come from the environment (or a .env file).`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(serveCmd, symptomsCmd, predictCmd, migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
