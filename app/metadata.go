package app

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/artpar/reportgate/domain/lookup"
	"github.com/artpar/reportgate/domain/mapper"
	"github.com/artpar/reportgate/domain/receiver"
	"github.com/artpar/reportgate/domain/schema"
	"github.com/artpar/reportgate/domain/sender"
)

// Metadata loads and serves the static definitions the pipeline runs on:
// schemas, lookup tables, receivers, and senders. The on-disk layout is
//
//	<dir>/tables/*.csv
//	<dir>/schemas/*.yml
//	<dir>/organizations.yml
//
// Loading is all-or-nothing; a reload that fails keeps the previous set.
type Metadata struct {
	dir     string
	mappers mapper.Registry
	logger  zerolog.Logger

	mu            sync.RWMutex
	current       *metadataSet
	onReload      []func()
	onReloadError []func()

	watcher *fsnotify.Watcher
	stopCh  chan struct{}
}

type metadataSet struct {
	schemas   map[string]*schema.Schema
	tables    map[string]*lookup.Table
	receivers map[string]*receiver.Receiver
	senders   map[string]*sender.Sender
}

type organizationsFile struct {
	Receivers []receiver.Receiver `yaml:"receivers"`
	Senders   []sender.Sender     `yaml:"senders"`
}

// NewMetadata creates a metadata service over a directory and performs the
// initial load.
func NewMetadata(dir string, logger zerolog.Logger) (*Metadata, error) {
	m := &Metadata{
		dir:     dir,
		mappers: mapper.NewRegistry(),
		logger:  logger,
		stopCh:  make(chan struct{}),
	}
	if err := m.Reload(); err != nil {
		return nil, err
	}
	return m, nil
}

// Mappers exposes the mapper registry, for schema loading outside the
// metadata directory (tests, validation tooling).
func (m *Metadata) Mappers() mapper.Registry { return m.mappers }

// Reload re-reads the whole metadata directory. On failure the previous set
// stays in place.
func (m *Metadata) Reload() error {
	set, err := m.load()
	if err != nil {
		m.logger.Error().Err(err).Str("dir", m.dir).Msg("metadata reload failed, keeping old set")
		m.mu.RLock()
		callbacks := m.onReloadError
		m.mu.RUnlock()
		for _, fn := range callbacks {
			fn()
		}
		return err
	}

	m.mu.Lock()
	m.current = set
	callbacks := m.onReload
	m.mu.Unlock()

	for _, fn := range callbacks {
		fn()
	}
	m.logger.Info().
		Int("schemas", len(set.schemas)).
		Int("tables", len(set.tables)).
		Int("receivers", len(set.receivers)).
		Int("senders", len(set.senders)).
		Msg("metadata loaded")
	return nil
}

func (m *Metadata) load() (*metadataSet, error) {
	set := &metadataSet{
		schemas:   make(map[string]*schema.Schema),
		tables:    make(map[string]*lookup.Table),
		receivers: make(map[string]*receiver.Receiver),
		senders:   make(map[string]*sender.Sender),
	}

	// Tables first; schemas resolve against them.
	tableFiles, err := filepath.Glob(filepath.Join(m.dir, "tables", "*.csv"))
	if err != nil {
		return nil, err
	}
	for _, path := range tableFiles {
		name := strings.TrimSuffix(filepath.Base(path), ".csv")
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open table %s: %w", name, err)
		}
		table, err := lookup.Load(name, f)
		f.Close()
		if err != nil {
			return nil, err
		}
		set.tables[name] = table
	}

	schemaFiles, err := filepath.Glob(filepath.Join(m.dir, "schemas", "*.yml"))
	if err != nil {
		return nil, err
	}
	for _, path := range schemaFiles {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", path, err)
		}
		s, err := schema.Load(data, m.mappers, tableSet(set.tables))
		if err != nil {
			return nil, err
		}
		if _, ok := set.schemas[s.Name]; ok {
			return nil, fmt.Errorf("duplicate schema %q", s.Name)
		}
		set.schemas[s.Name] = s
	}

	orgPath := filepath.Join(m.dir, "organizations.yml")
	if data, err := os.ReadFile(orgPath); err == nil {
		var orgs organizationsFile
		if err := yaml.Unmarshal(data, &orgs); err != nil {
			return nil, fmt.Errorf("parse %s: %w", orgPath, err)
		}
		for i := range orgs.Receivers {
			r := orgs.Receivers[i]
			if err := r.Validate(); err != nil {
				return nil, err
			}
			if _, ok := set.schemas[r.SchemaName]; !ok {
				return nil, fmt.Errorf("receiver %s references unknown schema %q", r.FullName(), r.SchemaName)
			}
			set.receivers[r.FullName()] = &r
		}
		for i := range orgs.Senders {
			s := orgs.Senders[i]
			if err := s.Validate(); err != nil {
				return nil, err
			}
			set.senders[s.FullName()] = &s
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read %s: %w", orgPath, err)
	}

	return set, nil
}

// tableSet adapts the loaded table map to the schema loader's contract.
type tableSet map[string]*lookup.Table

func (t tableSet) Table(name string) (*lookup.Table, bool) {
	table, ok := t[name]
	return table, ok
}

func (m *Metadata) snapshot() *metadataSet {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// FindSchema returns the named schema, or nil.
func (m *Metadata) FindSchema(name string) *schema.Schema {
	return m.snapshot().schemas[name]
}

// Table implements the schema table source over the loaded tables.
func (m *Metadata) Table(name string) (*lookup.Table, bool) {
	table, ok := m.snapshot().tables[name]
	return table, ok
}

// FindReceiver resolves a receiver by its organization-qualified name.
func (m *Metadata) FindReceiver(fullName string) (*receiver.Receiver, bool) {
	r, ok := m.snapshot().receivers[fullName]
	return r, ok
}

// ReceiversForTopic returns every receiver subscribed to a topic, in a
// stable name order.
func (m *Metadata) ReceiversForTopic(topic string) []*receiver.Receiver {
	var out []*receiver.Receiver
	for _, r := range m.snapshot().receivers {
		if strings.EqualFold(r.Topic, topic) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName() < out[j].FullName() })
	return out
}

// FindSender resolves a sender by its organization-qualified name.
func (m *Metadata) FindSender(fullName string) (*sender.Sender, bool) {
	s, ok := m.snapshot().senders[fullName]
	return s, ok
}

// OnReload registers a callback invoked after every successful reload.
func (m *Metadata) OnReload(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onReload = append(m.onReload, fn)
}

// OnReloadError registers a callback invoked whenever a reload fails and the
// previous set is kept.
func (m *Metadata) OnReloadError(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onReloadError = append(m.onReloadError, fn)
}

// Watch starts watching the metadata directory for changes; any change
// triggers a reload.
func (m *Metadata) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	m.watcher = watcher

	for _, dir := range []string{m.dir, filepath.Join(m.dir, "schemas"), filepath.Join(m.dir, "tables")} {
		if _, err := os.Stat(dir); err != nil {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	go m.watchLoop()
	m.logger.Info().Str("dir", m.dir).Msg("watching metadata for changes")
	return nil
}

func (m *Metadata) watchLoop() {
	for {
		select {
		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			m.logger.Debug().Str("file", event.Name).Msg("metadata change detected")
			// Reload failures keep the old set; nothing more to do here.
			_ = m.Reload()
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			m.logger.Error().Err(err).Msg("metadata watcher error")
		case <-m.stopCh:
			return
		}
	}
}

// Stop stops the watcher.
func (m *Metadata) Stop() {
	close(m.stopCh)
	if m.watcher != nil {
		m.watcher.Close()
	}
}
