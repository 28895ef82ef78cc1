package main

import (
	"fmt"

	"github.com/juju/errors"
	"github.com/spf13/cobra"

	"minerlink/pkg/supervisor"
)

func init() {
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(restartCmd)
	stopCmd.Flags().BoolVar(&stopForce, "force", false, "kill without waiting for a graceful exit")
	restartCmd.Flags().BoolVar(&stopForce, "force", false, "kill without waiting for a graceful exit")
}

var stopForce bool

var startCmd = &cobra.Command{
	Use:   "start [unit...]",
	Short: "Start background units (default: all, system first)",
	RunE: func(cmd *cobra.Command, args []string) error {
		names, err := resolveUnits(args)
		if err != nil {
			return err
		}
		return startUnits(newSupervisor(), names)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop [unit...]",
	Short: "Stop background units (default: all)",
	RunE: func(cmd *cobra.Command, args []string) error {
		names, err := resolveUnits(args)
		if err != nil {
			return err
		}
		return stopUnits(newSupervisor(), names, stopForce)
	},
}

var restartCmd = &cobra.Command{
	Use:   "restart [unit...]",
	Short: "Stop and start background units",
	RunE: func(cmd *cobra.Command, args []string) error {
		names, err := resolveUnits(args)
		if err != nil {
			return err
		}
		sup := newSupervisor()
		if err := stopUnits(sup, names, stopForce); err != nil {
			return err
		}
		return startUnits(sup, names)
	},
}

// startUnits starts every unit it can and returns the first error.
// A unit that is already running is reported but is not an error.
func startUnits(sup *supervisor.Supervisor, names []string) error {
	var firstErr error
	for _, name := range names {
		pid, err := startUnit(sup, name)
		switch {
		case err == nil:
			fmt.Printf("%s %s started (pid %d)\n", DotHealthy, Bold.Render(name), pid)
		case errors.Is(err, supervisor.ErrAlreadyRunning):
			fmt.Printf("%s %s already running (pid %d)\n", DotHealthy, Bold.Render(name), pid)
		default:
			fmt.Printf("%s %s %s\n", DotUnhealthy, Bold.Render(name), DimText.Render("not started"))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func stopUnits(sup *supervisor.Supervisor, names []string, force bool) error {
	var firstErr error
	for i := len(names) - 1; i >= 0; i-- {
		name := names[i]
		running, pid := sup.Status(name)
		if !running {
			fmt.Printf("%s %s %s\n", DotUnhealthy, Bold.Render(name), DimText.Render("not running"))
			continue
		}
		if err := sup.Stop(name, force); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		fmt.Printf("%s %s stopped (was pid %d)\n", DotUnhealthy, Bold.Render(name), pid)
	}
	return firstErr
}
