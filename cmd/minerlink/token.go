package main

import (
	"fmt"
	"time"

	"github.com/juju/errors"
	"github.com/spf13/cobra"
)

var tokenTTL time.Duration

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
}

var tokenCmd = &cobra.Command{
	Use:   "api-token",
	Short: "Print a bearer token for the local api",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.APIJWTSecret == "" {
			return errors.New("API_JWT_SECRET is not set; the api accepts unauthenticated requests")
		}
		tok, err := localToken(tokenTTL)
		if err != nil {
			return errors.Trace(err)
		}
		fmt.Println(tok)
		return nil
	},
}
