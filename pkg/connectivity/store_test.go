package connectivity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/juju/errors"

	"minerlink/pkg/journal"
	"minerlink/pkg/model"
	"minerlink/pkg/probe"
	"minerlink/pkg/registry"
)

type fakeRegistry struct {
	mu        sync.Mutex
	updateErr error
	getErr    error
	stale     bool
	stored    map[string]model.NetworkInfo
}

func (f *fakeRegistry) UpdateNetwork(ctx context.Context, id string, n model.NetworkInfo) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	if f.stored == nil {
		f.stored = map[string]model.NetworkInfo{}
	}
	if !f.stale {
		f.stored[id] = n
	}
	return nil
}

func (f *fakeRegistry) GetMiner(ctx context.Context, id string) (model.MinerDetails, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return model.MinerDetails{}, f.getErr
	}
	n, ok := f.stored[id]
	if !ok {
		return model.MinerDetails{MinerID: id}, nil
	}
	return model.MinerDetails{MinerID: id, Network: &n}, nil
}

type fakeProbe struct{ err error }

func (p fakeProbe) Hardware(ctx context.Context) (probe.Hardware, error) {
	return probe.Hardware{ResourceType: "GPU", RAMBytes: 32 << 30}, p.err
}
func (fakeProbe) Usage(ctx context.Context) (model.UsageMetrics, error) {
	return model.UsageMetrics{}, nil
}
func (fakeProbe) Host(ctx context.Context) (model.HostInfo, error) { return model.HostInfo{}, nil }

type fakeMirror struct{ err error }

func (m fakeMirror) Mirror(ctx context.Context, n model.NetworkInfo) error { return m.err }

type recorded struct {
	Kind, Detail string
}

type fakeRecorder struct{ events []recorded }

func (r *fakeRecorder) Record(ctx context.Context, kind, host string, port uint16, detail string) error {
	r.events = append(r.events, recorded{kind, detail})
	return nil
}

type fixture struct {
	store    *Store
	dir      string
	registry *fakeRegistry
	recorder *fakeRecorder
}

func newFixture(c *qt.C, location string) *fixture {
	geo := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if location == "" {
			http.Error(w, "rate limited", http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(location))
	}))
	c.Cleanup(geo.Close)
	dir := c.TempDir()
	f := &fixture{dir: dir, registry: &fakeRegistry{}, recorder: &fakeRecorder{}}
	f.store = NewStore(Config{
		SystemInfoPath:   filepath.Join(dir, "system_info.json"),
		RegistrationPath: filepath.Join(dir, "user_info.json"),
		InternalIP:       "192.168.1.20",
		LocationURL:      geo.URL,
	}, Deps{Registry: f.registry, Probe: fakeProbe{}, Recorder: f.recorder})
	return f
}

func (f *fixture) register(c *qt.C, id string) {
	c.Assert(registry.SaveRecord(f.store.cfg.RegistrationPath, model.RegistrationRecord{MinerID: id, Username: "root"}), qt.IsNil)
}

func TestPersistWritesSingleDocument(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, `{"city":"Lagos","region":"Lagos","country":"NG"}`)
	d := f.store.Build("root", "pw", "0.tcp.ngrok.io", 14000)

	path, err := f.store.Persist(context.Background(), d)
	c.Assert(err, qt.IsNil)
	docs, err := LoadSystemInfo(path)
	c.Assert(err, qt.IsNil)
	c.Assert(docs, qt.HasLen, 1)
	c.Assert(docs[0].Location, qt.Equals, "Lagos, Lagos, NG")
	r := docs[0].ComputeResources[0]
	c.Assert(r.ID, qt.Not(qt.Equals), "")
	c.Assert(r.ResourceType, qt.Equals, "GPU")
	c.Assert(r.RAM, qt.Equals, "32.00GB")
	c.Assert(r.Network, qt.DeepEquals, model.NetworkInfo{
		InternalIP: "192.168.1.20",
		SSH:        "ssh://root@0.tcp.ngrok.io:14000",
		OpenPorts:  []string{"22"},
		Password:   "pw",
		Username:   "root",
	})
	st, err := os.Stat(path)
	c.Assert(err, qt.IsNil)
	c.Assert(st.Mode().Perm(), qt.Equals, os.FileMode(0o600))
}

func TestPersistKeepsResourceID(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, "")
	ctx := context.Background()

	path, err := f.store.Persist(ctx, f.store.Build("root", "pw", "a.ngrok.io", 1))
	c.Assert(err, qt.IsNil)
	first, err := LoadSystemInfo(path)
	c.Assert(err, qt.IsNil)

	_, err = f.store.Persist(ctx, f.store.Build("root", "pw", "b.ngrok.io", 2))
	c.Assert(err, qt.IsNil)
	second, err := LoadSystemInfo(path)
	c.Assert(err, qt.IsNil)

	c.Assert(second[0].ComputeResources[0].ID, qt.Equals, first[0].ComputeResources[0].ID)
	c.Assert(second[0].ComputeResources[0].Network.SSH, qt.Equals, "ssh://root@b.ngrok.io:2")
	c.Assert(second[0].Location, qt.Equals, "")
}

func TestPersistSurvivesProbeFailure(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, "")
	f.store.deps.Probe = fakeProbe{err: errors.New("no /proc")}
	path, err := f.store.Persist(context.Background(), f.store.Build("root", "pw", "", 0))
	c.Assert(err, qt.IsNil)
	docs, err := LoadSystemInfo(path)
	c.Assert(err, qt.IsNil)
	c.Assert(docs[0].ComputeResources[0].ResourceType, qt.Equals, "CPU")
	c.Assert(docs[0].ComputeResources[0].Network.SSH, qt.Equals, "")
}

func TestLoadSystemInfoMissing(t *testing.T) {
	c := qt.New(t)
	_, err := LoadSystemInfo(filepath.Join(c.TempDir(), "nope.json"))
	c.Assert(errors.Is(err, errors.NotFound), qt.IsTrue)
}

func TestSyncSkipsUnregisteredNode(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, "")
	report, err := f.store.SyncIfRegistered(context.Background(), f.store.Build("root", "pw", "h", 1))
	c.Assert(err, qt.IsNil)
	c.Assert(report, qt.HasLen, 0)
	c.Assert(f.registry.stored, qt.IsNil)
}

func TestSyncPushesAndVerifies(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, "")
	f.register(c, "m-7")
	d := f.store.Build("root", "pw", "h", 9)

	report, err := f.store.SyncIfRegistered(context.Background(), d)
	c.Assert(err, qt.IsNil)
	c.Assert(report, qt.DeepEquals, model.SyncReport{
		model.SyncRegistryPush:   true,
		model.SyncRegistryVerify: true,
	})
	c.Assert(f.registry.stored["m-7"].SSH, qt.Equals, "ssh://root@h:9")
}

func TestSyncReportsPartialFailure(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, "")
	f.register(c, "m-7")
	f.registry.stale = true
	f.store.deps.Mirror = fakeMirror{err: errors.New("consul down")}

	report, err := f.store.SyncIfRegistered(context.Background(), f.store.Build("root", "pw", "h", 9))
	c.Assert(err, qt.IsNil)
	c.Assert(report.OK(), qt.IsFalse)
	c.Assert(report.Failed(), qt.DeepEquals, []string{model.SyncConsulMirror, model.SyncRegistryVerify})
	c.Assert(report[model.SyncRegistryPush], qt.IsTrue)
}

func TestSyncPushFailureSkipsVerify(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, "")
	f.register(c, "m-7")
	f.registry.updateErr = errors.New("503")

	report, err := f.store.SyncIfRegistered(context.Background(), f.store.Build("root", "pw", "h", 9))
	c.Assert(err, qt.IsNil)
	c.Assert(report, qt.DeepEquals, model.SyncReport{model.SyncRegistryPush: false})
}

func TestSyncUnreadableRecord(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, "")
	c.Assert(os.WriteFile(f.store.cfg.RegistrationPath, []byte("{not json"), 0o600), qt.IsNil)
	_, err := f.store.SyncIfRegistered(context.Background(), f.store.Build("root", "pw", "h", 9))
	c.Assert(err, qt.ErrorMatches, "reading registration record: .*")
}

func TestPublishAndSyncJournals(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, "")
	f.register(c, "m-1")

	out, err := f.store.PublishAndSync(context.Background(), "root", "pw", "0.tcp.ngrok.io", 12000)
	c.Assert(err, qt.IsNil)
	c.Assert(out.Path, qt.Equals, filepath.Join(f.dir, "system_info.json"))
	c.Assert(out.Descriptor.SSHURI, qt.Equals, "ssh://root@0.tcp.ngrok.io:12000")
	c.Assert(out.Report.OK(), qt.IsTrue)
	c.Assert(f.recorder.events, qt.DeepEquals, []recorded{
		{journal.KindPublished, out.Path},
		{journal.KindSync, "registry_push=ok registry_verify=ok"},
	})
}

func TestPublishAndSyncUnregistered(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, "")
	out, err := f.store.PublishAndSync(context.Background(), "root", "pw", "h", 1)
	c.Assert(err, qt.IsNil)
	c.Assert(out.Report, qt.HasLen, 0)
	c.Assert(f.recorder.events, qt.HasLen, 1)
}
