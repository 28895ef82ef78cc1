// Package apiserver is the local API unit: node status over HTTP and a
// websocket stream of connectivity updates.
package apiserver

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/juju/errors"
	"github.com/juju/loggo"

	"minerlink/pkg/auth"
	"minerlink/pkg/connectivity"
	"minerlink/pkg/model"
	"minerlink/pkg/version"
)

var logger = loggo.GetLogger("minerlink.apiserver")

const redacted = "********"

type UnitLister interface {
	Units(names []string) []model.ProcessUnit
}

type EventSource interface {
	Recent(ctx context.Context, limit int) ([]model.TunnelEvent, error)
}

type Config struct {
	Addr           string
	SystemInfoPath string
	UnitNames      []string
	// Issuer enables bearer authentication when set.
	Issuer *auth.Issuer
}

type Server struct {
	cfg    Config
	units  UnitLister
	events EventSource
	hub    *hub
}

// New builds the server. events may be nil when the journal is unavailable.
func New(cfg Config, units UnitLister, events EventSource) *Server {
	return &Server{cfg: cfg, units: units, events: events, hub: newHub()}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": version.Build})
	})
	mux.HandleFunc("/api/v1/connectivity", s.authed(s.handleConnectivity))
	mux.HandleFunc("/api/v1/units", s.authed(s.handleUnits))
	mux.HandleFunc("/api/v1/tunnel/events", s.authed(s.handleEvents))
	mux.HandleFunc("/api/v1/ws", s.authed(s.handleWS))
	return mux
}

// Run serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		if err := s.watchFile(ctx, nil); err != nil {
			logger.Errorf("connectivity watch stopped: %v", err)
		}
	}()
	go func() {
		<-ctx.Done()
		s.hub.closeAll()
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		_ = srv.Shutdown(shutdownCtx)
	}()
	logger.Infof("api listening on %s", s.cfg.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Annotate(err, "api server")
	}
	return nil
}

func (s *Server) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Issuer == nil {
			next(w, r)
			return
		}
		token := r.URL.Query().Get("token")
		if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
			token = strings.TrimPrefix(h, "Bearer ")
		}
		if _, err := s.cfg.Issuer.Parse(token); err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleConnectivity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	docs, err := s.loadDocs()
	if errors.Is(err, errors.NotFound) {
		http.Error(w, "connectivity not published yet", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

func (s *Server) handleUnits(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.units.Units(s.cfg.UnitNames))
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.events == nil {
		http.Error(w, "journal unavailable", http.StatusServiceUnavailable)
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 1000 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	evs, err := s.events.Recent(r.Context(), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if evs == nil {
		evs = []model.TunnelEvent{}
	}
	writeJSON(w, http.StatusOK, evs)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	var first *Message
	if msg, err := s.connectivityMessage(); err == nil {
		first = &msg
	}
	s.hub.serve(w, r, first)
}

func (s *Server) connectivityMessage() (Message, error) {
	docs, err := s.loadDocs()
	if err != nil {
		return Message{}, errors.Trace(err)
	}
	return newMessage(TypeConnectivity, docs)
}

// loadDocs reads the connectivity document with passwords masked.
func (s *Server) loadDocs() ([]model.SystemInfo, error) {
	docs, err := connectivity.LoadSystemInfo(s.cfg.SystemInfoPath)
	if err != nil {
		return nil, err
	}
	for i := range docs {
		for j := range docs[i].ComputeResources {
			if docs[i].ComputeResources[j].Network.Password != "" {
				docs[i].ComputeResources[j].Network.Password = redacted
			}
		}
	}
	return docs, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warningf("failed to write response: %v", err)
	}
}
