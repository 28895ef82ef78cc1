package registry

import (
	"os"

	"github.com/juju/errors"

	"minerlink/pkg/fsutil"
	"minerlink/pkg/model"
)

// LoadRecord reads the registration record. A missing file or a record
// without a miner id yields nil and no error.
func LoadRecord(path string) (*model.RegistrationRecord, error) {
	var rec model.RegistrationRecord
	if err := fsutil.ReadJSON(path, &rec); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.Trace(err)
	}
	if rec.MinerID == "" {
		return nil, nil
	}
	return &rec, nil
}

// SaveRecord writes the record readable only by the owner since it holds
// the node password.
func SaveRecord(path string, rec model.RegistrationRecord) error {
	return errors.Trace(fsutil.WriteJSONAtomic(path, rec, 0o600))
}
