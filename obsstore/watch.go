package obsstore

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Watch emits the observation every time the backing file is replaced with a
// newer version. The current record, if any, is emitted first. The channel is
// closed when ctx ends or the watcher fails.
func (s *FileStore) Watch(ctx context.Context) (<-chan Observation, error) {
	dir := filepath.Dir(s.path)
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	out := make(chan Observation, 1)
	go func() {
		defer close(out)
		defer w.Close()

		var last uint64
		emit := func() bool {
			obs, err := s.read()
			if err != nil {
				if !errors.Is(err, ErrNoObservation) {
					log.Debug().Err(err).Msg("[ObsStore] watch read failed")
				}
				return true
			}
			if obs.Version == last {
				return true
			}
			last = obs.Version
			select {
			case out <- obs:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !emit() {
			return
		}
		target := filepath.Clean(s.path)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target || !ev.Has(fsnotify.Create|fsnotify.Write|fsnotify.Rename) {
					continue
				}
				if !emit() {
					return
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Warn().Err(err).Str("file", s.path).Msg("[ObsStore] watcher error")
			}
		}
	}()
	return out, nil
}

// Subscribe polls r every interval and emits each new version. It works with
// any Reader, including a MemStore.
func Subscribe(ctx context.Context, r Reader, interval time.Duration) <-chan Observation {
	out := make(chan Observation, 1)
	go func() {
		defer close(out)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		var last uint64
		for {
			obs, err := r.Load(ctx)
			if err == nil && obs.Version != last {
				last = obs.Version
				select {
				case out <- obs:
				case <-ctx.Done():
					return
				}
			} else if err != nil && !errors.Is(err, ErrNoObservation) && ctx.Err() == nil {
				log.Debug().Err(err).Msg("[ObsStore] subscribe load failed")
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return out
}
