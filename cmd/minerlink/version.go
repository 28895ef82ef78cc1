package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"minerlink/pkg/version"
)

func init() {
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the build version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(kv("version", version.Build))
		fmt.Println(kv("user agent", version.UserAgent()))
	},
}
