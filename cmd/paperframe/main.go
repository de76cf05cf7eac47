package main

import (
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "paperframe",
	Short: "Paperframe - E-Paper Content Daemon",
	Long: `Paperframe drives a 7-color ACeP e-paper panel: it renders content
from plugin instances on a daily schedule and exposes an HTTP control
surface for managing plugins, instances and refreshes.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default searches ./paperframe.yaml and ~/.paperframe)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
