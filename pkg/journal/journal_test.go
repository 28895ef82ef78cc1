package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
)

func openTest(c *qt.C) *Journal {
	j, err := Open(context.Background(), filepath.Join(c.TempDir(), "nested", "state.db"))
	c.Assert(err, qt.IsNil)
	c.Cleanup(func() { j.Close() })
	return j
}

func TestRecordAndRecent(t *testing.T) {
	c := qt.New(t)
	j := openTest(c)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	j.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	c.Assert(j.Record(ctx, KindStart, "0.tcp.ngrok.io", 12345, ""), qt.IsNil)
	c.Assert(j.Record(ctx, KindLivenessFailed, "", 0, "connection refused"), qt.IsNil)
	c.Assert(j.Record(ctx, KindPublished, "0.tcp.ngrok.io", 12345, "not registered"), qt.IsNil)

	evs, err := j.Recent(ctx, 2)
	c.Assert(err, qt.IsNil)
	c.Assert(evs, qt.HasLen, 2)
	c.Assert(evs[0].Kind, qt.Equals, KindPublished)
	c.Assert(evs[0].Port, qt.Equals, uint16(12345))
	c.Assert(evs[0].Time, qt.Equals, base.Add(3*time.Second))
	c.Assert(evs[1].Kind, qt.Equals, KindLivenessFailed)
	c.Assert(evs[1].Detail, qt.Equals, "connection refused")
	c.Assert(evs[1].Host, qt.Equals, "")
}

func TestPrune(t *testing.T) {
	c := qt.New(t)
	j := openTest(c)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		c.Assert(j.Record(ctx, KindStartFailed, "", 0, ""), qt.IsNil)
	}
	n, err := j.Prune(ctx, 2)
	c.Assert(err, qt.IsNil)
	c.Assert(n, qt.Equals, int64(3))

	evs, err := j.Recent(ctx, 0)
	c.Assert(err, qt.IsNil)
	c.Assert(evs, qt.HasLen, 2)
	c.Assert(evs[0].ID > evs[1].ID, qt.IsTrue)
}

func TestReopenKeepsEvents(t *testing.T) {
	c := qt.New(t)
	path := filepath.Join(c.TempDir(), "state.db")
	ctx := context.Background()

	j, err := Open(ctx, path)
	c.Assert(err, qt.IsNil)
	c.Assert(j.Record(ctx, KindAlert, "", 0, "5 consecutive failures"), qt.IsNil)
	c.Assert(j.Close(), qt.IsNil)

	j, err = Open(ctx, path)
	c.Assert(err, qt.IsNil)
	defer j.Close()
	evs, err := j.Recent(ctx, 10)
	c.Assert(err, qt.IsNil)
	c.Assert(evs, qt.HasLen, 1)
	c.Assert(evs[0].Detail, qt.Equals, "5 consecutive failures")
}
