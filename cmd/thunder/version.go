package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/thunder"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of thunder",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "thunder version %s\n", strings.TrimSpace(thunder.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
