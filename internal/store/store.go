// Package store keeps the user's shift templates. The whole collection is
// one settings document; writers replace it wholesale and every change is
// pushed to subscribers as a fresh snapshot.
package store

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"

	"shiftplan/internal/config"
	"shiftplan/internal/model"
)

// Store is the template store seen by the wizard.
type Store interface {
	// Snapshot returns a copy of the latest template list.
	Snapshot() []model.ShiftTemplate

	// Subscribe registers fn for snapshots. fn receives the current
	// snapshot immediately and each later one in arrival order. fn must
	// not call Subscribe itself.
	Subscribe(fn func([]model.ShiftTemplate)) (cancel func())

	// Upsert replaces the template with the same ID in place, or appends
	// it when absent.
	Upsert(ctx context.Context, t model.ShiftTemplate) error

	// Remove deletes the template with the given ID; unknown IDs are ignored.
	Remove(ctx context.Context, id string) error

	Close() error
}

// Open builds the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case config.StoreDriverRedis:
		return DialRedisStore(ctx, cfg.RedisURL, cfg.RedisKey, cfg.RedisChannel)
	default:
		fs, err := OpenFileStore(cfg.Path)
		if err != nil {
			return nil, err
		}
		if cfg.ReloadCron != "" {
			if err := fs.WatchFile(cfg.ReloadCron); err != nil {
				fs.Close()
				return nil, err
			}
		}
		return fs, nil
	}
}

// Find returns the template with the given ID from templates.
func Find(templates []model.ShiftTemplate, id string) (model.ShiftTemplate, bool) {
	i := slices.IndexFunc(templates, func(t model.ShiftTemplate) bool { return t.ID == id })
	if i < 0 {
		return model.ShiftTemplate{}, false
	}
	return templates[i], true
}

// document is the persisted settings document.
type document struct {
	Templates []model.ShiftTemplate `yaml:"templates"`
}

func decodeDocument(data []byte) ([]model.ShiftTemplate, error) {
	var doc document
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decode templates: %w", err)
		}
	}
	if doc.Templates == nil {
		doc.Templates = []model.ShiftTemplate{}
	}
	return doc.Templates, nil
}

func encodeDocument(templates []model.ShiftTemplate) ([]byte, error) {
	data, err := yaml.Marshal(document{Templates: templates})
	if err != nil {
		return nil, fmt.Errorf("encode templates: %w", err)
	}
	return data, nil
}

// upserted returns a copy of templates with t replacing the entry of the
// same ID, or appended when there is none.
func upserted(templates []model.ShiftTemplate, t model.ShiftTemplate) []model.ShiftTemplate {
	out := slices.Clone(templates)
	i := slices.IndexFunc(out, t.SameEntity)
	if i < 0 {
		return append(out, t)
	}
	out[i] = t
	return out
}

// removed returns a copy of templates without the entry with the given ID.
func removed(templates []model.ShiftTemplate, id string) []model.ShiftTemplate {
	return slices.DeleteFunc(slices.Clone(templates), func(t model.ShiftTemplate) bool { return t.ID == id })
}

// feed fans snapshots out to subscribers.
type feed struct {
	mu       sync.Mutex
	snapshot []model.ShiftTemplate
	subs     map[int]func([]model.ShiftTemplate)
	nextID   int

	// notifyMu serializes deliveries so subscribers see snapshots in
	// publish order.
	notifyMu sync.Mutex
}

func (f *feed) Snapshot() []model.ShiftTemplate {
	f.mu.Lock()
	defer f.mu.Unlock()
	return cloneTemplates(f.snapshot)
}

func (f *feed) Subscribe(fn func([]model.ShiftTemplate)) func() {
	f.notifyMu.Lock()
	defer f.notifyMu.Unlock()

	f.mu.Lock()
	if f.subs == nil {
		f.subs = make(map[int]func([]model.ShiftTemplate))
	}
	id := f.nextID
	f.nextID++
	f.subs[id] = fn
	current := cloneTemplates(f.snapshot)
	f.mu.Unlock()

	fn(current)

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, id)
			f.mu.Unlock()
		})
	}
}

// publish stores templates as the new snapshot and notifies subscribers.
// Snapshots equal to the current one are not re-delivered.
func (f *feed) publish(templates []model.ShiftTemplate) {
	f.notifyMu.Lock()
	defer f.notifyMu.Unlock()

	f.mu.Lock()
	if f.snapshot != nil && reflect.DeepEqual(f.snapshot, templates) {
		f.mu.Unlock()
		return
	}
	f.snapshot = cloneTemplates(templates)
	subs := make([]func([]model.ShiftTemplate), 0, len(f.subs))
	for _, fn := range f.subs {
		subs = append(subs, fn)
	}
	f.mu.Unlock()

	for _, fn := range subs {
		fn(cloneTemplates(templates))
	}
}

// cloneTemplates deep-copies templates so no two holders share ShiftTimes.
func cloneTemplates(templates []model.ShiftTemplate) []model.ShiftTemplate {
	out := make([]model.ShiftTemplate, len(templates))
	for i, t := range templates {
		if t.Times != nil {
			times := *t.Times
			t.Times = &times
		}
		out[i] = t
	}
	return out
}
