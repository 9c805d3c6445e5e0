package main

import (
	"fmt"

	"github.com/calehh/gp-node/app"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:     "version",
	Short:   "Print the gp version",
	Aliases: []string{"V"},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(app.VersionWithCommit(app.GitCommit))
	},
}
