package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Backend persists a whole configuration document.
type Backend interface {
	// Load returns the stored document. A backend that has never been
	// written returns an empty document.
	Load() (Document, error)

	// Save replaces the stored document. It must not return before the
	// write is durable.
	Save(doc Document) error
}

// FileBackend keeps the document as a single JSON file.
type FileBackend struct {
	Path string
}

func NewFileBackend(path string) *FileBackend {
	return &FileBackend{Path: path}
}

func (b *FileBackend) Load() (Document, error) {
	f, err := os.Open(b.Path)
	if errors.Is(err, os.ErrNotExist) {
		return Document{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	doc := Document{}
	if err := json.NewDecoder(f).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse %v: %w", b.Path, err)
	}
	return doc, nil
}

// Save writes to a temporary file next to Path and renames it into place,
// so readers never observe a half written document.
func (b *FileBackend) Save(doc Document) error {
	dir := filepath.Dir(b.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	js, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(b.Path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(js); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), b.Path)
}

// ConfigEntry is one key of the document as stored in SQL.
type ConfigEntry struct {
	Name      string `gorm:"primaryKey;size:64"`
	Value     string `gorm:"type:text"`
	UpdatedAt time.Time
}

// SQLBackend keeps one row per key in the config_entries table.
type SQLBackend struct {
	db *gorm.DB
}

// OpenMySQL connects to the database described by dsn, e.g.
// "user:pass@tcp(127.0.0.1:3306)/hastycam?parseTime=true".
func OpenMySQL(dsn string) (*SQLBackend, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return NewSQLBackend(db)
}

func NewSQLBackend(db *gorm.DB) (*SQLBackend, error) {
	if err := db.AutoMigrate(&ConfigEntry{}); err != nil {
		return nil, err
	}
	return &SQLBackend{db: db}, nil
}

func (b *SQLBackend) Load() (Document, error) {
	var entries []ConfigEntry
	if err := b.db.Select("name", "value").Find(&entries).Error; err != nil {
		return nil, err
	}
	doc := make(Document, len(entries))
	for _, e := range entries {
		doc[Key(e.Name)] = json.RawMessage(e.Value)
	}
	return doc, nil
}

func (b *SQLBackend) Save(doc Document) error {
	return b.db.Transaction(func(tx *gorm.DB) error {
		names := make([]string, 0, len(doc))
		now := time.Now()
		for k, v := range doc {
			e := &ConfigEntry{Name: string(k), Value: string(v), UpdatedAt: now}
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(e).Error; err != nil {
				return err
			}
			names = append(names, string(k))
		}
		q := tx.Where("1 = 1")
		if len(names) > 0 {
			q = tx.Where("name NOT IN ?", names)
		}
		return q.Delete(&ConfigEntry{}).Error
	})
}
