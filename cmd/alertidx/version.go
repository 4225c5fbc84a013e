package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/alertidx"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of alertidx",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("alertidx version %s\n", strings.TrimSpace(alertidx.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
