package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/juju/errors"
	"github.com/spf13/cobra"

	"minerlink/pkg/config"
	"minerlink/pkg/connectivity"
	"minerlink/pkg/journal"
	"minerlink/pkg/registry"
)

var statusEvents int

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().IntVar(&statusEvents, "events", 5, "number of recent tunnel events to show")
}

var statusCmd = &cobra.Command{
	Use:   "status [unit...]",
	Short: "Show units, connectivity and recent tunnel events",
	RunE: func(cmd *cobra.Command, args []string) error {
		names, err := resolveUnits(args)
		if err != nil {
			return err
		}
		fmt.Println(Title.Render("minerlink status"))

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, TableHeader.Render("UNIT")+"\t"+
			TableHeader.Render("PID")+"\t"+
			TableHeader.Render("LOG"))
		for _, u := range newSupervisor().Units(names) {
			pid := "-"
			if u.Running {
				pid = fmt.Sprint(u.PID)
			}
			fmt.Fprintf(w, "%s %s\t%s\t%s\n", statusDot(u.Running), Bold.Render(u.Name), pid, DimText.Render(u.StderrLog))
		}
		w.Flush()
		fmt.Println()

		printConnectivity()
		if statusEvents > 0 {
			printEvents(cmd.Context(), statusEvents)
		}
		return nil
	},
}

func printConnectivity() {
	docs, err := connectivity.LoadSystemInfo(cfg.SystemInfoPath())
	switch {
	case errors.Is(err, errors.NotFound):
		fmt.Println(kv("ssh", DimText.Render("not published yet")))
	case err != nil:
		fmt.Println(kv("ssh", Warning.Render(err.Error())))
	case len(docs) > 0 && len(docs[0].ComputeResources) > 0:
		n := docs[0].ComputeResources[0].Network
		ssh := n.SSH
		if ssh == "" {
			ssh = DimText.Render("no tunnel")
		}
		fmt.Println(kv("ssh", ssh))
		fmt.Println(kv("internal ip", n.InternalIP))
		if docs[0].Location != "" {
			fmt.Println(kv("location", docs[0].Location))
		}
	}

	rec, err := registry.LoadRecord(cfg.RegistrationPath())
	switch {
	case err != nil:
		fmt.Println(kv("miner", Warning.Render(err.Error())))
	case rec == nil:
		fmt.Println(kv("miner", DimText.Render("not registered")))
	default:
		fmt.Println(kv("miner", rec.MinerID))
	}
	if nc, err := config.LoadNetworkConfig(cfg.NetworkConfigPath()); err == nil && nc.Network != "" {
		fmt.Println(kv("network", nc.Network))
	}
	fmt.Println()
}

func printEvents(ctx context.Context, limit int) {
	if _, err := os.Stat(cfg.JournalPath()); err != nil {
		return
	}
	j, err := journal.Open(ctx, cfg.JournalPath())
	if err != nil {
		logger.Debugf("journal unavailable: %v", err)
		return
	}
	defer j.Close()
	evs, err := j.Recent(ctx, limit)
	if err != nil || len(evs) == 0 {
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, TableHeader.Render("TIME")+"\t"+
		TableHeader.Render("EVENT")+"\t"+
		TableHeader.Render("DETAIL"))
	for _, ev := range evs {
		detail := ev.Detail
		if ev.Host != "" {
			detail = fmt.Sprintf("%s:%d %s", ev.Host, ev.Port, detail)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", ev.Time.Local().Format(time.DateTime), ev.Kind, detail)
	}
	w.Flush()
}
