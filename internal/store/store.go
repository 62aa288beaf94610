// Package store persists data-source templates: saved request configurations
// together with the fields inferred from their last response.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"apimapper/internal/config"
	"apimapper/internal/logging"
)

// ErrNotFound is returned when no template has the requested id.
var ErrNotFound = errors.New("template not found")

const fileExt = ".json"

// FileStore keeps one JSON file per template in a directory.
type FileStore struct {
	dir string
	mu  sync.RWMutex
	now func() time.Time
}

// NewFileStore opens (and creates) a store rooted at dir.
func NewFileStore(dir string) (*FileStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("template store directory is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating template store directory '%s': %w", dir, err)
	}
	return &FileStore{dir: dir, now: time.Now}, nil
}

// Dir returns the store directory.
func (s *FileStore) Dir() string { return s.dir }

// Save writes tpl, assigning an id and creation time when they are unset,
// and returns the stored template.
func (s *FileStore) Save(tpl config.DataSourceTemplate) (config.DataSourceTemplate, error) {
	tpl.Name = strings.TrimSpace(tpl.Name)
	if tpl.Name == "" {
		return tpl, fmt.Errorf("template name is required")
	}
	if tpl.ID == "" {
		tpl.ID = uuid.New().String()
	} else if _, err := uuid.Parse(tpl.ID); err != nil {
		return tpl, fmt.Errorf("invalid template id '%s': %w", tpl.ID, err)
	}
	if tpl.CreatedAt.IsZero() {
		tpl.CreatedAt = s.now().UTC()
	}
	if tpl.Fields == nil {
		tpl.Fields = []config.FieldInfo{}
	}

	data, err := json.MarshalIndent(tpl, "", "  ")
	if err != nil {
		return tpl, fmt.Errorf("encoding template '%s': %w", tpl.Name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := atomicWriteFile(s.path(tpl.ID), data, 0o644); err != nil {
		return tpl, fmt.Errorf("writing template '%s': %w", tpl.Name, err)
	}
	logging.Logf(logging.Info, "Saved template '%s' (%s)", tpl.Name, tpl.ID)
	return tpl, nil
}

// Get loads one template.
func (s *FileStore) Get(id string) (config.DataSourceTemplate, error) {
	var tpl config.DataSourceTemplate
	if _, err := uuid.Parse(id); err != nil {
		return tpl, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	s.mu.RLock()
	data, err := os.ReadFile(s.path(id))
	s.mu.RUnlock()
	if errors.Is(err, os.ErrNotExist) {
		return tpl, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return tpl, fmt.Errorf("reading template %s: %w", id, err)
	}
	if err := json.Unmarshal(data, &tpl); err != nil {
		return tpl, fmt.Errorf("decoding template %s: %w", id, err)
	}
	return tpl, nil
}

// List returns every template, oldest first. Unreadable files are skipped
// with a warning.
func (s *FileStore) List() ([]config.DataSourceTemplate, error) {
	s.mu.RLock()
	entries, err := os.ReadDir(s.dir)
	s.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("listing templates in '%s': %w", s.dir, err)
	}

	out := make([]config.DataSourceTemplate, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != fileExt {
			continue
		}
		id := strings.TrimSuffix(e.Name(), fileExt)
		tpl, err := s.Get(id)
		if err != nil {
			logging.Logf(logging.Warning, "Skipping template file '%s': %v", e.Name(), err)
			continue
		}
		out = append(out, tpl)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Name < out[j].Name
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Delete removes a template.
func (s *FileStore) Delete(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	err := os.Remove(s.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("deleting template %s: %w", id, err)
	}
	logging.Logf(logging.Info, "Deleted template %s", id)
	return nil
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.dir, id+fileExt)
}

// InferFields describes the columns of the first row. Non-object rows yield
// no fields.
func InferFields(rows []interface{}) []config.FieldInfo {
	fields := []config.FieldInfo{}
	if len(rows) == 0 {
		return fields
	}
	raw, err := json.Marshal(rows[0])
	if err != nil {
		return fields
	}
	row := gjson.ParseBytes(raw)
	if !row.IsObject() {
		return fields
	}
	row.ForEach(func(key, value gjson.Result) bool {
		fields = append(fields, config.FieldInfo{Name: key.String(), Type: fieldType(value)})
		return true
	})
	return fields
}

func fieldType(v gjson.Result) string {
	switch v.Type {
	case gjson.String:
		return "string"
	case gjson.Number:
		return "number"
	case gjson.True, gjson.False:
		return "boolean"
	case gjson.Null:
		return "null"
	default:
		if v.IsArray() {
			return "array"
		}
		return "object"
	}
}
