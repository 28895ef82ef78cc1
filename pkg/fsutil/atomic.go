// Package fsutil holds small file helpers shared by the state writers.
package fsutil

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/juju/errors"
)

// WriteFileAtomic replaces path with data so that readers observe either the
// previous content or the complete new content, never a partial write.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Annotatef(err, "creating directory %s", dir)
	}
	file, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return errors.Annotate(err, "creating temporary file")
	}
	tmp := file.Name()
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(tmp)
		return errors.Annotate(err, "writing temporary file")
	}
	if err := file.Chmod(perm); err != nil {
		file.Close()
		os.Remove(tmp)
		return errors.Annotate(err, "setting file mode")
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tmp)
		return errors.Annotate(err, "syncing temporary file")
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return errors.Annotate(err, "closing temporary file")
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return errors.Annotatef(err, "renaming into place %s", path)
	}
	if parent, err := os.Open(dir); err == nil {
		parent.Sync()
		parent.Close()
	}
	return nil
}

// WriteJSONAtomic marshals v with indentation and writes it with WriteFileAtomic.
func WriteJSONAtomic(path string, v interface{}, perm os.FileMode) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return errors.Annotatef(err, "encoding %s", filepath.Base(path))
	}
	return WriteFileAtomic(path, append(data, '\n'), perm)
}

// ReadJSON decodes path into v. A missing file is reported with an error
// satisfying errors.Is(err, os.ErrNotExist).
func ReadJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Trace(err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Annotatef(err, "decoding %s", path)
	}
	return nil
}
