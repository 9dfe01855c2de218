// Package jsonfile implements repository.RecipeStore on a single JSON file.
//
// The whole collection lives in one file as a JSON array. Every Load reads
// the file and every Save rewrites it; nothing is cached in between.
package jsonfile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/moby/sys/atomicwriter"

	"github.com/sakif/recipe-box/internal/apperror"
	"github.com/sakif/recipe-box/internal/model"
	"github.com/sakif/recipe-box/internal/repository"
)

// FileName is the name of the collection file inside the data directory.
const FileName = "recipes.json"

var _ repository.RecipeStore = (*Store)(nil)

// Store owns the path of the collection file.
type Store struct {
	path   string
	logger *slog.Logger
}

// New returns a Store backed by path. The parent directory is created and
// an empty collection is written when the file does not exist yet.
func New(path string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("jsonfile: creating data directory: %w", err)
	}

	s := &Store{path: path, logger: logger}

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := s.Save(context.Background(), []model.Recipe{}); err != nil {
			return nil, fmt.Errorf("jsonfile: seeding %s: %w", path, err)
		}
	}

	return s, nil
}

// Path returns the location of the collection file.
func (s *Store) Path() string {
	return s.path
}

// Load reads the collection. Any failure degrades to an empty collection;
// a corrupt or unreadable file is logged at warn level so it does not look
// like a fresh install in the logs.
func (s *Store) Load(ctx context.Context) []model.Recipe {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Debug("recipe file missing, using empty collection",
				slog.String("path", s.path))
		} else {
			s.logger.Warn("recipe file unreadable, using empty collection",
				slog.String("path", s.path),
				slog.String("error", err.Error()),
			)
		}
		return []model.Recipe{}
	}

	var recipes []model.Recipe
	if err := json.Unmarshal(data, &recipes); err != nil {
		s.logger.Warn("recipe file corrupt, using empty collection",
			slog.String("path", s.path),
			slog.String("error", err.Error()),
		)
		return []model.Recipe{}
	}

	if recipes == nil {
		return []model.Recipe{}
	}
	for i := range recipes {
		recipes[i].EnsureSlices()
	}
	return recipes
}

// Save replaces the file with the given collection. The new content is
// written to a temporary file and renamed over the old one, so a reader
// sees either the previous or the new collection, never a partial write.
func (s *Store) Save(ctx context.Context, recipes []model.Recipe) error {
	if err := ctx.Err(); err != nil {
		return apperror.StorageWrite("saving recipes", err)
	}
	if recipes == nil {
		recipes = []model.Recipe{}
	}
	for i := range recipes {
		recipes[i].EnsureSlices()
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(recipes); err != nil {
		return apperror.StorageWrite("encoding recipes", err)
	}

	if err := atomicwriter.WriteFile(s.path, buf.Bytes(), 0o644); err != nil {
		return apperror.StorageWrite("writing "+s.path, err)
	}
	return nil
}
