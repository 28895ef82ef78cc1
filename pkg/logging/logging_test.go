package logging

import (
	"bytes"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/juju/loggo"
)

func TestSetupWritesFormattedEntries(t *testing.T) {
	c := qt.New(t)
	defer loggo.ResetLogging()

	var buf bytes.Buffer
	c.Assert(Setup("debug", &buf), qt.IsNil)

	loggo.GetLogger("minerlink.test").Debugf("tunnel %s", "up")
	c.Assert(buf.String(), qt.Matches, `(?s)\d{4}-\d\d-\d\d \d\d:\d\d:\d\d DEBUG +minerlink\.test tunnel up.*`)
}

func TestSetupRejectsUnknownLevel(t *testing.T) {
	c := qt.New(t)
	defer loggo.ResetLogging()
	c.Assert(Setup("chatty", &bytes.Buffer{}), qt.ErrorMatches, `log level "chatty" not valid`)
}
