package apiserver

import (
	"context"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/juju/errors"
)

// watchFile broadcasts the connectivity document each time path is
// replaced. The directory is watched since writers rename over the file.
func (s *Server) watchFile(ctx context.Context, ready chan<- struct{}) error {
	path := s.cfg.SystemInfoPath
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Annotate(err, "watch dir")
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Annotate(err, "new watcher")
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return errors.Annotatef(err, "watching %s", dir)
	}
	if ready != nil {
		close(ready)
	}
	name := filepath.Base(path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != name || ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			msg, err := s.connectivityMessage()
			if err != nil {
				logger.Debugf("skip update: %v", err)
				continue
			}
			s.hub.broadcast(msg)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warningf("watch error: %v", err)
		}
	}
}
