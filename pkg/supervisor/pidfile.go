package supervisor

import (
	"os"
	"strconv"
	"strings"

	"github.com/juju/errors"

	"minerlink/pkg/fsutil"
)

// readPID returns 0 and no error when the file does not exist.
func readPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Annotatef(err, "reading pid file %s", path)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, errors.NotValidf("pid file %s content %q", path, strings.TrimSpace(string(data)))
	}
	return pid, nil
}

func writePID(path string, pid int) error {
	return fsutil.WriteFileAtomic(path, []byte(strconv.Itoa(pid)+"\n"), 0o644)
}

func removePID(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Annotatef(err, "removing pid file %s", path)
	}
	return nil
}
