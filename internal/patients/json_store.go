package patients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"nephro-assistant/pkg"
)

// ErrDataSourceMissing is returned when the backing patient data does not
// exist.  No patient can be identified without it, so callers must fail the
// operation rather than report "not found".
var ErrDataSourceMissing = errors.New("patient data source not found")

// JSONStore serves lookups from a JSON array of patient records.  The file
// is read on first use and kept in memory; a missing file is retried on the
// next lookup.
type JSONStore struct {
	path    string
	mu      sync.Mutex
	records []pkg.PatientRecord
	loaded  bool
}

// NewJSONStore returns a store reading from path.
func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path}
}

// Load reads the file if it has not been read yet and returns all records.
func (s *JSONStore) Load() ([]pkg.PatientRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return s.records, nil
	}

	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrDataSourceMissing, s.path)
	}
	if err != nil {
		return nil, fmt.Errorf("read patient data: %w", err)
	}
	var records []pkg.PatientRecord
	if err := json.Unmarshal(b, &records); err != nil {
		return nil, fmt.Errorf("decode patient data %s: %w", s.path, err)
	}
	for i, r := range records {
		if NormalizeName(r.PatientName) == "" {
			return nil, fmt.Errorf("patient data %s: record %d has no patient_name", s.path, i)
		}
	}
	s.records, s.loaded = records, true
	return records, nil
}

// FindByName implements core.PatientLookup.
func (s *JSONStore) FindByName(_ context.Context, name string) ([]pkg.PatientRecord, error) {
	records, err := s.Load()
	if err != nil {
		return nil, err
	}
	return Match(records, name), nil
}
