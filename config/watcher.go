package config

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

const settleTime = time.Second / 10

var ErrNotWatchable = errors.New("config backend cannot be watched")

// Watch reloads the document whenever the backing file changes on disk,
// until ctx is cancelled. Only file backed stores can be watched.
func (s *Store) Watch(ctx context.Context) error {
	fb, ok := s.backend.(*FileBackend)
	if !ok {
		return ErrNotWatchable
	}
	path, err := filepath.Abs(fb.Path)
	if err != nil {
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// Watch the directory; saves replace the file by rename.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return err
	}
	go func() {
		defer watcher.Close()
		for {
			if err := waitForChange(ctx, watcher, path); err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Errorf("Error waiting for config file change: %v", err)
				continue
			}
			changed, err := s.reload()
			if err != nil {
				log.Errorf("Failed to load new config: %v", err)
				continue
			}
			if changed {
				log.Infof("Reloaded configuration from %v", path)
			}
		}
	}()
	return nil
}

func waitForChange(ctx context.Context, watcher *fsnotify.Watcher, path string) error {
wait:
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-watcher.Errors:
			return err
		case ev := <-watcher.Events:
			if filepath.Clean(ev.Name) == path && ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
				break wait
			}
		}
	}
	// Let the writer finish before reading.
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(settleTime):
	}
	for {
		select {
		case <-watcher.Events:
		default:
			return ctx.Err()
		}
	}
}

// reload replaces the in-memory document with the stored one. The store's
// own saves also land here; those leave the document unchanged and are
// skipped.
func (s *Store) reload() (bool, error) {
	s.l.Lock()
	doc, err := s.backend.Load()
	if err != nil {
		s.l.Unlock()
		return false, err
	}
	changed := !doc.equal(s.doc)
	if changed {
		s.doc = doc
	}
	s.l.Unlock()
	if !changed {
		return false, nil
	}
	reloads.Inc()
	s.notify(Keys...)
	return true, nil
}
