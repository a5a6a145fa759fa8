// Package selection persists the operator's chosen proposal and the
// direction that will be proposed next, so a restart resumes the
// alternation where it stopped.
package selection

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/originbots/tradebot/negotiation"
	toml "github.com/pelletier/go-toml/v2"
)

const (
	schemaVersion = 1
	fileMode      = 0o600
	dirMode       = 0o700
	tempPattern   = ".selection-*.toml"
)

// ErrNotFound is returned by Load when nothing has been saved yet.
var ErrNotFound = errors.New("no saved selection")

// Selection is the persisted state.
type Selection struct {
	Base   negotiation.Proposal
	Active *negotiation.Proposal
}

// Pair returns the negotiation pair for the selection.
func (s Selection) Pair() negotiation.Pair {
	return negotiation.NewPair(s.Base, s.Active)
}

type fileSchema struct {
	Version   int                   `toml:"version"`
	UpdatedAt time.Time             `toml:"updated_at"`
	Proposal  negotiation.Proposal  `toml:"proposal"`
	Active    *negotiation.Proposal `toml:"active,omitempty"`
}

// Store reads and writes one TOML file.
type Store struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

var _ negotiation.ActiveSaver = (*Store)(nil)

func NewStore(path string) *Store {
	return &Store{path: path, now: time.Now}
}

func (s *Store) Load(ctx context.Context) (Selection, error) {
	if err := ctx.Err(); err != nil {
		return Selection{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.read()
	if err != nil {
		return Selection{}, err
	}
	return Selection{Base: file.Proposal, Active: file.Active}, nil
}

// Save replaces the stored selection.
func (s *Store) Save(ctx context.Context, sel Selection) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := sel.Base.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.write(fileSchema{Proposal: sel.Base, Active: sel.Active})
}

// SaveActive records the next direction, keeping the stored base proposal.
func (s *Store) SaveActive(ctx context.Context, active negotiation.Proposal) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.read()
	if errors.Is(err, ErrNotFound) {
		file = fileSchema{Proposal: active}
	} else if err != nil {
		return err
	}
	file.Active = &active
	return s.write(file)
}

func (s *Store) read() (fileSchema, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fileSchema{}, ErrNotFound
		}
		return fileSchema{}, fmt.Errorf("read selection: %w", err)
	}
	var file fileSchema
	if err := toml.Unmarshal(data, &file); err != nil {
		return fileSchema{}, fmt.Errorf("decode selection: %w", err)
	}
	if file.Version != schemaVersion {
		return fileSchema{}, fmt.Errorf("unsupported selection version %d", file.Version)
	}
	return file, nil
}

func (s *Store) write(file fileSchema) error {
	file.Version = schemaVersion
	file.UpdatedAt = s.now().UTC().Truncate(time.Second)

	data, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode selection: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, tempPattern)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Chmod(fileMode); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace file: %w", err)
	}
	cleanup = false
	return nil
}
