package store

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dense-analysis/coinfolio/internal/model"
)

// FileBackend keeps the portfolio in a JSON file.
type FileBackend struct {
	path string
}

func NewFileBackend(dir string, key string) *FileBackend {
	if dir == "" {
		dir = "."
	}

	return &FileBackend{path: filepath.Join(dir, key+".json")}
}

// Path is the file the portfolio is written to.
func (backend *FileBackend) Path() string {
	return backend.path
}

func (backend *FileBackend) Load(ctx context.Context) ([]model.Holding, error) {
	data, err := os.ReadFile(backend.path)

	if errors.Is(err, fs.ErrNotExist) {
		return []model.Holding{}, nil
	}

	if err != nil {
		return nil, err
	}

	return decode(data)
}

// Save writes to a temporary file and renames it over the old one, so a
// crash never leaves a partly written portfolio behind.
func (backend *FileBackend) Save(ctx context.Context, items []model.Holding) error {
	data, err := encode(items)

	if err != nil {
		return err
	}

	dir := filepath.Dir(backend.path)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	file, err := os.CreateTemp(dir, filepath.Base(backend.path)+".*.tmp")

	if err != nil {
		return err
	}

	defer os.Remove(file.Name())

	if _, err := file.Write(data); err != nil {
		file.Close()

		return err
	}

	if err := file.Close(); err != nil {
		return err
	}

	return os.Rename(file.Name(), backend.path)
}

func (backend *FileBackend) Close() error {
	return nil
}
