package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"hastycam/feed"
)

// Config is the full persisted configuration document.
type Config struct {
	Feeds []feed.Feed `json:"feeds"`
}

// Key names a top level field of Config.
type Key string

const (
	KeyFeeds Key = "feeds"
)

// Keys lists every key of the schema, in document order.
var Keys = []Key{KeyFeeds}

var (
	ErrUnknownKey = errors.New("unknown config key")

	errNotFound = errors.New("not found")
)

// Defaults returns the configuration used for any key that has never been set.
func Defaults() Config {
	return Config{
		Feeds: []feed.Feed{},
	}
}

// Document holds the encoded value of each key that is present.
type Document map[Key]json.RawMessage

func (d Document) clone() Document {
	c := make(Document, len(d))
	for k, v := range d {
		c[k] = v
	}
	return c
}

// equal compares two documents ignoring JSON formatting.
func (d Document) equal(o Document) bool {
	if len(d) != len(o) {
		return false
	}
	for k, v := range d {
		w, ok := o[k]
		if !ok || !bytes.Equal(compact(v), compact(w)) {
			return false
		}
	}
	return true
}

func compact(raw json.RawMessage) []byte {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return raw
	}
	return buf.Bytes()
}

func checkKey(key Key) error {
	for _, k := range Keys {
		if k == key {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownKey, key)
}

// encode splits a Config into one document entry per key.
func encode(c Config) (Document, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	var raw map[Key]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, err
	}
	doc := make(Document, len(Keys))
	for _, k := range Keys {
		if v, ok := raw[k]; ok {
			doc[k] = v
		}
	}
	return doc, nil
}

// decode assembles a Config from a document.
func decode(doc Document) (Config, error) {
	var c Config
	b, err := json.Marshal(doc)
	if err != nil {
		return c, err
	}
	if err := json.Unmarshal(b, &c); err != nil {
		return c, err
	}
	if c.Feeds == nil {
		c.Feeds = []feed.Feed{}
	}
	return c, nil
}
