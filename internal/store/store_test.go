package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apimapper/internal/config"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(filepath.Join(t.TempDir(), "templates"))
	require.NoError(t, err)
	return s
}

func sampleTemplate(name string) config.DataSourceTemplate {
	return config.DataSourceTemplate{
		Name: name,
		Config: config.RequestConfig{
			Method:          "GET",
			URL:             "https://api.example.com/users",
			TransformerPath: "data.items",
			Params:          []config.QueryParam{{Name: "page", Value: "1", Enabled: true}},
		},
	}
}

func TestFileStore_SaveAndGet(t *testing.T) {
	s := newTestStore(t)

	saved, err := s.Save(sampleTemplate("  users  "))
	require.NoError(t, err)
	_, err = uuid.Parse(saved.ID)
	require.NoError(t, err, "saved template should get a uuid")
	assert.Equal(t, "users", saved.Name)
	assert.False(t, saved.CreatedAt.IsZero())
	assert.NotNil(t, saved.Fields)
	assert.FileExists(t, filepath.Join(s.Dir(), saved.ID+".json"))

	got, err := s.Get(saved.ID)
	require.NoError(t, err)
	assert.Equal(t, saved.Name, got.Name)
	assert.Equal(t, saved.Config, got.Config)
	assert.True(t, saved.CreatedAt.Equal(got.CreatedAt))
}

func TestFileStore_SaveOverwritesExistingID(t *testing.T) {
	s := newTestStore(t)
	saved, err := s.Save(sampleTemplate("first"))
	require.NoError(t, err)

	saved.Name = "renamed"
	_, err = s.Save(saved)
	require.NoError(t, err)

	list, err := s.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "renamed", list[0].Name)
}

func TestFileStore_SaveValidation(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Save(sampleTemplate(" "))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name is required")

	tpl := sampleTemplate("bad id")
	tpl.ID = "../escape"
	_, err = s.Save(tpl)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid template id")
}

func TestFileStore_GetMissing(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get(uuid.New().String())
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Get("../../etc/passwd")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStore_ListOrderAndSkipsJunk(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	_, err := s.Save(sampleTemplate("one"))
	require.NoError(t, err)
	_, err = s.Save(sampleTemplate("two"))
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), uuid.New().String()+".json"), []byte("{broken"), 0o644))

	list, err := s.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "one", list[0].Name)
	assert.Equal(t, "two", list[1].Name)
}

func TestFileStore_Delete(t *testing.T) {
	s := newTestStore(t)
	saved, err := s.Save(sampleTemplate("gone"))
	require.NoError(t, err)

	require.NoError(t, s.Delete(saved.ID))
	_, err = s.Get(saved.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete(saved.ID), ErrNotFound)
	assert.ErrorIs(t, s.Delete("not-a-uuid"), ErrNotFound)
}

func TestNewFileStore_EmptyDir(t *testing.T) {
	_, err := NewFileStore("")
	assert.Error(t, err)
}

func TestInferFields(t *testing.T) {
	rows := []interface{}{
		map[string]interface{}{
			"name":   "Ann",
			"age":    31,
			"active": true,
			"tags":   []interface{}{"a"},
			"team":   map[string]interface{}{"id": 1},
			"note":   nil,
		},
		map[string]interface{}{"ignored": "only the first row is read"},
	}

	fields := InferFields(rows)
	byName := map[string]string{}
	for _, f := range fields {
		byName[f.Name] = f.Type
	}
	assert.Equal(t, map[string]string{
		"name":   "string",
		"age":    "number",
		"active": "boolean",
		"tags":   "array",
		"team":   "object",
		"note":   "null",
	}, byName)

	assert.Empty(t, InferFields(nil))
	assert.Empty(t, InferFields([]interface{}{"scalar"}))
	assert.NotNil(t, InferFields(nil))
}
