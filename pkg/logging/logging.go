// Package logging installs the loggo writer shared by the CLI and every unit.
package logging

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/juju/errors"
	"github.com/juju/loggo"
)

// Setup replaces the default loggo writer with a timestamped simple writer
// on w and sets the root level, e.g. "INFO" or "DEBUG".
func Setup(level string, w io.Writer) error {
	lvl, ok := loggo.ParseLevel(strings.ToUpper(strings.TrimSpace(level)))
	if !ok || lvl == loggo.UNSPECIFIED {
		return errors.NotValidf("log level %q", level)
	}
	writer := loggo.NewSimpleWriter(w, formatter)
	if _, err := loggo.ReplaceDefaultWriter(writer); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(loggo.ConfigureLoggers(fmt.Sprintf("<root>=%s", lvl.String())))
}

func formatter(entry loggo.Entry) string {
	ts := entry.Timestamp.In(time.UTC).Format("2006-01-02 15:04:05")
	return fmt.Sprintf("%s %-7s %s %s", ts, entry.Level.String(), entry.Module, entry.Message)
}
