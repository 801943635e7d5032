package store

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"sync"

	"github.com/robfig/cron/v3"

	"shiftplan/internal/config"
	appLog "shiftplan/internal/log"
	"shiftplan/internal/model"
)

// FileStore keeps the settings document in a YAML file. The file is read
// as one snapshot when the store opens; WatchFile re-reads it on a cron
// schedule so edits made outside the process reach subscribers.
type FileStore struct {
	feed

	path string

	// mu guards lastData and serializes writers against reloads.
	mu       sync.Mutex
	lastData []byte

	cron *cron.Cron
}

// OpenFileStore loads path. A missing file is an empty template list; it
// is created on the first write.
func OpenFileStore(path string) (*FileStore, error) {
	s := &FileStore{path: path}

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	templates, err := decodeDocument(data)
	if err != nil {
		return nil, err
	}
	warnInvalid(templates)

	s.lastData = data
	s.publish(templates)

	appLog.Info("template store opened", "driver", "file", "path", path, "templates", len(templates))
	return s, nil
}

// WatchFile schedules Reload with a cron spec such as "@every 10s" or
// "*/1 * * * *".
func (s *FileStore) WatchFile(spec string) error {
	c := cron.New()
	if _, err := c.AddFunc(spec, func() {
		if err := s.Reload(); err != nil {
			appLog.Error("template store reload failed", err, "path", s.path)
		}
	}); err != nil {
		return err
	}
	c.Start()

	s.mu.Lock()
	s.cron = c
	s.mu.Unlock()
	appLog.Info("template store watching file", "path", s.path, "schedule", spec)
	return nil
}

// Reload re-reads the file and publishes its templates if the content
// changed since the last read or write.
func (s *FileStore) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			data = nil
		} else {
			return err
		}
	}
	if bytes.Equal(data, s.lastData) {
		return nil
	}

	templates, err := decodeDocument(data)
	if err != nil {
		return err
	}
	warnInvalid(templates)

	s.lastData = data
	s.publish(templates)
	appLog.Info("template store reloaded", "path", s.path, "templates", len(templates))
	return nil
}

func (s *FileStore) Upsert(_ context.Context, t model.ShiftTemplate) error {
	if err := t.Validate(); err != nil {
		return err
	}
	return s.update(func(templates []model.ShiftTemplate) []model.ShiftTemplate {
		return upserted(templates, t)
	}, "template saved", "id", t.ID, "summary", t.Summary)
}

func (s *FileStore) Remove(_ context.Context, id string) error {
	return s.update(func(templates []model.ShiftTemplate) []model.ShiftTemplate {
		return removed(templates, id)
	}, "template removed", "id", id)
}

func (s *FileStore) update(change func([]model.ShiftTemplate) []model.ShiftTemplate, msg string, kv ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := change(s.Snapshot())
	data, err := encodeDocument(next)
	if err != nil {
		return err
	}
	if err := config.WriteFileAtomic(s.path, data); err != nil {
		return err
	}

	s.lastData = data
	s.publish(next)
	appLog.Info(msg, kv...)
	return nil
}

// Close stops the reload schedule and waits for a running reload.
func (s *FileStore) Close() error {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
	return nil
}

func warnInvalid(templates []model.ShiftTemplate) {
	for _, t := range templates {
		if err := t.Validate(); err != nil {
			appLog.Warn("stored template is invalid", "id", t.ID, "err", err)
		}
	}
}
