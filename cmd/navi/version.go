package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/navihq/navi/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the navi version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("navi %s\n", version.Get())
	},
}
