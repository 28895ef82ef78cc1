package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/juju/errors"
	"github.com/spf13/cobra"
)

var (
	logLines  int
	logStderr bool
)

func init() {
	rootCmd.AddCommand(logsCmd)
	logsCmd.Flags().IntVarP(&logLines, "lines", "n", 50, "number of lines to show")
	logsCmd.Flags().BoolVar(&logStderr, "stderr", false, "show the stderr log instead of stdout")
}

var logsCmd = &cobra.Command{
	Use:   "logs <unit>",
	Short: "Show the tail of a unit's log",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		if !isUnit(name) && name != "tunnel" {
			return errors.NotValidf("unit %q", name)
		}
		stdout, stderr := newSupervisor().LogFiles(name)
		path := stdout
		if logStderr {
			path = stderr
		}
		lines, err := tail(path, logLines)
		if err != nil {
			return errors.Trace(err)
		}
		fmt.Println(DimText.Render("==> " + path + " <=="))
		for _, l := range lines {
			fmt.Println(l)
		}
		return nil
	},
}

// tail returns the last n lines of path.
func tail(path string, n int) ([]string, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, errors.NotFoundf("log %s", path)
	}
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer f.Close()
	if n <= 0 {
		return nil, nil
	}
	ring := make([]string, 0, n)
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		if len(ring) == n {
			ring = ring[1:]
		}
		ring = append(ring, sc.Text())
	}
	return ring, errors.Trace(sc.Err())
}
