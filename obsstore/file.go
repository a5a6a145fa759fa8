package obsstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog/log"
)

// FileStore persists the observation as a JSON document. Saves write a
// temporary file in the same directory and rename it over the target, so a
// reader sees either the previous document or the new one.
type FileStore struct {
	path string
	now  func() time.Time

	mu      sync.Mutex
	version uint64
	primed  bool
}

var _ Store = (*FileStore)(nil)

// NewFileStore returns a store backed by path. The directory is created on
// first save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, now: time.Now}
}

// Path returns the backing file.
func (s *FileStore) Path() string { return s.path }

// Save implements Writer.
func (s *FileStore) Save(ctx context.Context, own, counterparty int) (Observation, error) {
	if err := ctx.Err(); err != nil {
		return Observation{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.primed {
		// continue the sequence of a previous run
		if prev, err := s.read(); err == nil {
			s.version = prev.Version
		}
		s.primed = true
	}

	obs := Observation{
		Version:      s.version + 1,
		Own:          own,
		Counterparty: counterparty,
		UpdatedAt:    s.now().UTC(),
	}
	if err := obs.validate(); err != nil {
		return Observation{}, err
	}
	data, err := sonic.Marshal(obs)
	if err != nil {
		return Observation{}, fmt.Errorf("encode observation: %w", err)
	}
	if err := writeAtomic(s.path, data); err != nil {
		return Observation{}, err
	}
	s.version = obs.Version
	return obs, nil
}

// Load implements Reader.
func (s *FileStore) Load(ctx context.Context) (Observation, error) {
	if err := ctx.Err(); err != nil {
		return Observation{}, err
	}
	return s.read()
}

func (s *FileStore) read() (Observation, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Observation{}, ErrNoObservation
		}
		return Observation{}, fmt.Errorf("read observation: %w", err)
	}
	var obs Observation
	if err := sonic.Unmarshal(data, &obs); err != nil {
		return Observation{}, fmt.Errorf("decode observation %s: %w", s.path, err)
	}
	if err := obs.validate(); err != nil {
		return Observation{}, err
	}
	return obs, nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		if rmErr := os.Remove(tmpName); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			log.Warn().Err(rmErr).Str("file", tmpName).Msg("[ObsStore] failed to remove temp file")
		}
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
