// Package persona supplies the process-wide system instruction sent with
// every completion request.
package persona

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Source holds the current persona instruction. It is shared by every
// conversation and safe for concurrent use.
type Source struct {
	path    string
	current atomic.Pointer[string]
	logger  *zap.Logger
}

// Static returns a Source that always yields instruction.
func Static(instruction string) *Source {
	s := &Source{logger: zap.NewNop()}
	s.set(instruction)
	return s
}

// FromFile loads the instruction from path. The file can later be watched
// for changes with Watch.
func FromFile(path string, logger *zap.Logger) (*Source, error) {
	s := &Source{path: path, logger: logger}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Instruction returns the current persona instruction; empty means none.
func (s *Source) Instruction() string {
	if p := s.current.Load(); p != nil {
		return *p
	}
	return ""
}

// Watch reloads the instruction whenever the file changes, until ctx is
// done. It returns once the watcher is running. A Static source has nothing
// to watch.
func (s *Source) Watch(ctx context.Context) error {
	if s.path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating persona watcher: %w", err)
	}

	// Editors often replace files instead of writing them in place, so the
	// directory is watched rather than the file.
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watching %s: %w", s.path, err)
	}

	go func() {
		defer watcher.Close()
		target := filepath.Clean(s.path)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target || !event.Has(fsnotify.Write|fsnotify.Create) {
					continue
				}
				if err := s.load(); err != nil {
					s.logger.Warn("keeping previous persona", zap.Error(err))
					continue
				}
				s.logger.Info("persona reloaded", zap.String("path", s.path))
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Warn("persona watcher error", zap.Error(err))
			}
		}
	}()

	return nil
}

func (s *Source) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("reading persona file: %w", err)
	}
	s.set(strings.TrimSpace(string(data)))
	return nil
}

func (s *Source) set(instruction string) {
	s.current.Store(&instruction)
}
