// Package connectivity owns the node's connectivity descriptor: building it,
// persisting system_info.json and syncing it to the registry.
package connectivity

import (
	"context"
	"net/http"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/juju/errors"
	"github.com/juju/loggo"

	"minerlink/pkg/fsutil"
	"minerlink/pkg/journal"
	"minerlink/pkg/model"
	"minerlink/pkg/probe"
	"minerlink/pkg/registry"
)

var logger = loggo.GetLogger("minerlink.connectivity")

// Registry is the part of the registry client the store pushes to.
type Registry interface {
	UpdateNetwork(ctx context.Context, minerID string, network model.NetworkInfo) error
	GetMiner(ctx context.Context, minerID string) (model.MinerDetails, error)
}

// Mirror copies the network object to a secondary location.
type Mirror interface {
	Mirror(ctx context.Context, network model.NetworkInfo) error
}

// Recorder journals publish cycles.
type Recorder interface {
	Record(ctx context.Context, kind, host string, port uint16, detail string) error
}

type Config struct {
	SystemInfoPath   string
	RegistrationPath string
	// InternalIP skips detection when set.
	InternalIP  string
	LocationURL string
	HTTPClient  *http.Client
}

// Deps are optional collaborators; nil values disable the matching step.
type Deps struct {
	Registry Registry
	Probe    probe.SystemProbe
	Mirror   Mirror
	Recorder Recorder
}

type Store struct {
	cfg        Config
	deps       Deps
	internalIP string

	mu       sync.Mutex
	resolved bool
	location string
	hardware probe.Hardware
}

// Published is the outcome of one publish cycle.
type Published struct {
	Descriptor model.ConnectivityDescriptor
	Path       string
	Report     model.SyncReport
}

func NewStore(cfg Config, deps Deps) *Store {
	if cfg.LocationURL == "" {
		cfg.LocationURL = defaultLocationURL
	}
	ip := cfg.InternalIP
	if ip == "" {
		ip = DetectInternalIP()
	}
	return &Store{cfg: cfg, deps: deps, internalIP: ip}
}

func (s *Store) InternalIP() string { return s.internalIP }

func (s *Store) Build(username, password, host string, port uint16) model.ConnectivityDescriptor {
	return Build(s.internalIP, username, password, host, port)
}

// Persist atomically replaces system_info.json with a single document
// describing d. The compute resource id survives across cycles.
func (s *Store) Persist(ctx context.Context, d model.ConnectivityDescriptor) (string, error) {
	s.resolve(ctx)
	id := s.resourceID()

	s.mu.Lock()
	info := model.SystemInfo{
		Location:         s.location,
		ComputeResources: []model.ComputeResource{s.hardware.Resource(id, d.Network())},
	}
	s.mu.Unlock()

	path := s.cfg.SystemInfoPath
	if err := fsutil.WriteJSONAtomic(path, []model.SystemInfo{info}, 0o600); err != nil {
		return "", errors.Annotate(err, "persisting system info")
	}
	logger.Infof("system info saved to %s", path)
	return path, nil
}

// resolve looks up location and hardware once per store.
func (s *Store) resolve(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resolved {
		return
	}
	s.resolved = true
	s.location = locate(ctx, s.cfg.HTTPClient, s.cfg.LocationURL)
	s.hardware = probe.Hardware{ResourceType: "CPU"}
	if s.deps.Probe == nil {
		return
	}
	hw, err := s.deps.Probe.Hardware(ctx)
	if err != nil {
		logger.Warningf("hardware probe failed: %v", err)
		return
	}
	s.hardware = hw
}

func (s *Store) resourceID() string {
	existing, err := LoadSystemInfo(s.cfg.SystemInfoPath)
	if err == nil && len(existing) > 0 && len(existing[0].ComputeResources) > 0 {
		if id := existing[0].ComputeResources[0].ID; id != "" {
			return id
		}
	}
	return uuid.NewString()
}

// SyncIfRegistered pushes d to the registry when this node has a
// registration record. Remote failures are reported per component; only an
// unreadable record is an error.
func (s *Store) SyncIfRegistered(ctx context.Context, d model.ConnectivityDescriptor) (model.SyncReport, error) {
	rec, err := registry.LoadRecord(s.cfg.RegistrationPath)
	if err != nil {
		return nil, errors.Annotate(err, "reading registration record")
	}
	report := model.SyncReport{}
	if rec == nil {
		logger.Debugf("node not registered, skipping sync")
		return report, nil
	}
	network := d.Network()

	if s.deps.Registry == nil {
		logger.Warningf("miner %s is registered but no registry url is configured", rec.MinerID)
		report[model.SyncRegistryPush] = false
	} else {
		report[model.SyncRegistryPush] = s.push(ctx, rec.MinerID, network)
		if report[model.SyncRegistryPush] {
			report[model.SyncRegistryVerify] = s.verify(ctx, rec.MinerID, network)
		}
	}

	if s.deps.Mirror != nil {
		err := s.deps.Mirror.Mirror(ctx, network)
		if err != nil {
			logger.Warningf("mirror failed: %v", err)
		}
		report[model.SyncConsulMirror] = err == nil
	}
	return report, nil
}

func (s *Store) push(ctx context.Context, minerID string, network model.NetworkInfo) bool {
	if err := s.deps.Registry.UpdateNetwork(ctx, minerID, network); err != nil {
		logger.Warningf("registry update for miner %s failed: %v", minerID, err)
		return false
	}
	return true
}

func (s *Store) verify(ctx context.Context, minerID string, want model.NetworkInfo) bool {
	m, err := s.deps.Registry.GetMiner(ctx, minerID)
	if err != nil {
		logger.Warningf("registry verify for miner %s failed: %v", minerID, err)
		return false
	}
	got := m.CurrentNetwork()
	if got == nil || got.SSH != want.SSH || got.Username != want.Username || got.Password != want.Password {
		logger.Warningf("registry holds stale network for miner %s", minerID)
		return false
	}
	return true
}

// PublishAndSync builds, persists and syncs a descriptor, journaling both steps.
func (s *Store) PublishAndSync(ctx context.Context, username, password, host string, port uint16) (Published, error) {
	d := s.Build(username, password, host, port)
	out := Published{Descriptor: d}

	path, err := s.Persist(ctx, d)
	if err != nil {
		return out, errors.Trace(err)
	}
	out.Path = path
	s.record(ctx, journal.KindPublished, d, path)
	if d.SSHURI != "" {
		logger.Infof("ssh command: ssh %s@%s -p %d", d.Username, d.PublicHost, d.PublicPort)
	}

	report, err := s.SyncIfRegistered(ctx, d)
	if err != nil {
		logger.Errorf("sync skipped: %v", err)
		return out, nil
	}
	out.Report = report
	if len(report) > 0 {
		s.record(ctx, journal.KindSync, d, report.String())
		if !report.OK() {
			logger.Warningf("partial sync, failed: %v", report.Failed())
		}
	}
	return out, nil
}

func (s *Store) record(ctx context.Context, kind string, d model.ConnectivityDescriptor, detail string) {
	if s.deps.Recorder == nil {
		return
	}
	_ = s.deps.Recorder.Record(ctx, kind, d.PublicHost, d.PublicPort, detail)
}

// LoadSystemInfo reads system_info.json.
func LoadSystemInfo(path string) ([]model.SystemInfo, error) {
	var docs []model.SystemInfo
	if err := fsutil.ReadJSON(path, &docs); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errors.NewNotFound(err, "system info")
		}
		return nil, errors.Trace(err)
	}
	return docs, nil
}
