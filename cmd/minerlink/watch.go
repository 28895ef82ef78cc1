package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/juju/errors"
	"github.com/spf13/cobra"

	"minerlink/pkg/apiserver"
	"minerlink/pkg/auth"
	"minerlink/pkg/model"
)

var watchAddr string

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringVar(&watchAddr, "addr", "", "api address (default: MINERLINK_API_ADDR)")
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow connectivity updates from the api unit",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := watchAddr
		if addr == "" {
			addr = cfg.APIAddr
		}
		token, err := localToken(time.Hour)
		if err != nil {
			return errors.Trace(err)
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Println(DimText.Render("watching " + addr + " (ctrl-c to stop)"))
		return apiserver.Watch(ctx, apiserver.WatchConfig{
			Addr:      addr,
			Token:     token,
			Reconnect: 5 * time.Second,
		}, printMessage)
	},
}

func printMessage(msg apiserver.Message) {
	ts := msg.Time.Local().Format(time.DateTime)
	if msg.Type != apiserver.TypeConnectivity {
		fmt.Printf("%s %s %s\n", DimText.Render(ts), msg.Type, string(msg.Payload))
		return
	}
	var docs []model.SystemInfo
	if err := json.Unmarshal(msg.Payload, &docs); err != nil || len(docs) == 0 || len(docs[0].ComputeResources) == 0 {
		fmt.Printf("%s %s\n", DimText.Render(ts), Warning.Render("unreadable connectivity update"))
		return
	}
	n := docs[0].ComputeResources[0].Network
	if n.SSH == "" {
		fmt.Printf("%s %s %s\n", DimText.Render(ts), DotUnhealthy, "no tunnel")
		return
	}
	fmt.Printf("%s %s %s\n", DimText.Render(ts), DotHealthy, n.SSH)
}

// localToken signs a token with the configured secret, or returns "" when
// the api runs without authentication.
func localToken(ttl time.Duration) (string, error) {
	if cfg.APIJWTSecret == "" {
		return "", nil
	}
	iss, err := auth.NewIssuer(cfg.APIJWTSecret)
	if err != nil {
		return "", errors.Trace(err)
	}
	return iss.Generate("cli", ttl)
}
