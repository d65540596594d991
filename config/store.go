// Package config persists the hastycam configuration document and serves
// typed reads and writes of its keys, falling back to defaults for keys
// that were never written.
package config

import (
	"encoding/json"
	"sync"

	"github.com/davecgh/go-spew/spew"
	log "github.com/sirupsen/logrus"
)

// Listener is notified after a key has changed, either through the Store
// or by the backing file being edited.
type Listener interface {
	ConfigUpdated(key Key)
}

// Store is a key/value view of a Config document. All methods are safe for
// concurrent use; writes are last-writer-wins unless done through one of
// the Update methods.
type Store struct {
	// Listeners must be set before the store is shared.
	Listeners []Listener

	backend  Backend
	defaults Document

	l   sync.Mutex
	doc Document
}

// Open returns a store backed by the JSON file at path. The file is created
// on first write.
func Open(path string, defaults Config) (*Store, error) {
	return OpenBackend(NewFileBackend(path), defaults)
}

func OpenBackend(b Backend, defaults Config) (*Store, error) {
	def, err := encode(defaults)
	if err != nil {
		return nil, err
	}
	doc, err := b.Load()
	if err != nil {
		return nil, err
	}
	log.Debugf("Loaded configuration: %v", spew.Sdump(doc))
	return &Store{
		backend:  b,
		defaults: def,
		doc:      doc,
	}, nil
}

// Get decodes the value stored under key into out, or the default value if
// the key has not been set.
func (s *Store) Get(key Key, out interface{}) error {
	if err := checkKey(key); err != nil {
		return err
	}
	s.l.Lock()
	raw := s.get(key)
	s.l.Unlock()
	return json.Unmarshal(raw, out)
}

func (s *Store) get(key Key) json.RawMessage {
	if v, ok := s.doc[key]; ok {
		return v
	}
	return s.defaults[key]
}

// Set replaces the whole value stored under key. It returns once the
// backend has durably written the document.
func (s *Store) Set(key Key, value interface{}) error {
	if err := checkKey(key); err != nil {
		return err
	}
	s.l.Lock()
	err := s.set(key, value)
	s.l.Unlock()
	if err != nil {
		return err
	}
	s.notify(key)
	return nil
}

func (s *Store) set(key Key, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	doc := s.doc.clone()
	doc[key] = raw
	return s.save(key, doc)
}

func (s *Store) save(key Key, doc Document) error {
	if err := s.backend.Save(doc); err != nil {
		writeErrors.WithLabelValues(string(key)).Inc()
		return err
	}
	writes.WithLabelValues(string(key)).Inc()
	s.doc = doc
	return nil
}

// Remove drops the value stored under key, so that Get returns the default
// again.
func (s *Store) Remove(key Key) error {
	if err := checkKey(key); err != nil {
		return err
	}
	s.l.Lock()
	doc := s.doc.clone()
	delete(doc, key)
	err := s.save(key, doc)
	s.l.Unlock()
	if err != nil {
		return err
	}
	s.notify(key)
	return nil
}

// All returns the defaults overlaid with every stored value.
func (s *Store) All() (Config, error) {
	s.l.Lock()
	doc := make(Document, len(Keys))
	for _, k := range Keys {
		doc[k] = s.get(k)
	}
	s.l.Unlock()
	return decode(doc)
}

func (s *Store) notify(keys ...Key) {
	for _, k := range keys {
		for _, l := range s.Listeners {
			l.ConfigUpdated(k)
		}
	}
}
