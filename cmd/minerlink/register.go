package main

import (
	"fmt"

	"github.com/juju/errors"
	"github.com/spf13/cobra"

	"minerlink/pkg/config"
	"minerlink/pkg/connectivity"
	"minerlink/pkg/model"
	"minerlink/pkg/registry"
)

var (
	registerNetwork     string
	registerName        string
	registerDescription string
)

func init() {
	rootCmd.AddCommand(registerCmd)
	registerCmd.Flags().StringVar(&registerNetwork, "network", "", "network this node joins")
	registerCmd.Flags().StringVar(&registerName, "name", "", "miner name (default: the ssh username)")
	registerCmd.Flags().StringVar(&registerDescription, "description", "", "free-form description")
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Register this node with the registry",
	RunE: func(cmd *cobra.Command, args []string) error {
		if registerNetwork != "" {
			if err := config.SaveNetworkConfig(cfg.NetworkConfigPath(), config.NetworkConfig{Network: registerNetwork}); err != nil {
				return errors.Annotate(err, "saving network config")
			}
		}

		rec, err := registry.LoadRecord(cfg.RegistrationPath())
		if err != nil {
			return errors.Trace(err)
		}
		if rec != nil {
			fmt.Println(kv("miner", rec.MinerID) + DimText.Render("  (already registered)"))
			return nil
		}

		docs, err := connectivity.LoadSystemInfo(cfg.SystemInfoPath())
		if errors.Is(err, errors.NotFound) {
			return errors.New("no system info yet; run `minerlink start system` and wait for the tunnel")
		}
		if err != nil {
			return errors.Trace(err)
		}
		if len(docs) == 0 || len(docs[0].ComputeResources) == 0 {
			return errors.NotValidf("system info %s", cfg.SystemInfoPath())
		}
		doc := docs[0]
		network := doc.ComputeResources[0].Network
		name := registerName
		if name == "" {
			name = network.Username
		}

		cl := newRegistry()
		if cl == nil {
			return errors.NotValidf("empty SERVER_URL")
		}
		resp, err := cl.Register(cmd.Context(), model.RegistrationRequest{
			Name:             name,
			Location:         doc.Location,
			Description:      registerDescription,
			ComputeResources: doc.ComputeResources,
		})
		if err != nil {
			return errors.Trace(err)
		}
		if err := registry.SaveRecord(cfg.RegistrationPath(), model.RegistrationRecord{
			MinerID:  resp.MinerID,
			Username: network.Username,
			Network:  &network,
		}); err != nil {
			return errors.Annotate(err, "saving registration record")
		}
		fmt.Println(Healthy.Render("registered"))
		fmt.Println(kv("miner", resp.MinerID))
		if resp.Message != "" {
			fmt.Println(kv("message", resp.Message))
		}
		return nil
	},
}
