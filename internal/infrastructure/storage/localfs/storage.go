package localfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/kirillkom/crop-disease-analyzer/internal/core/domain"
)

const defaultBasePath = "./data/images"

// Storage keeps uploaded images under one directory. All access goes through
// an os.Root, so keys cannot reach outside it even through symlinks.
type Storage struct {
	root *os.Root
}

func New(basePath string) (*Storage, error) {
	if strings.TrimSpace(basePath) == "" {
		basePath = defaultBasePath
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	root, err := os.OpenRoot(basePath)
	if err != nil {
		return nil, fmt.Errorf("open storage root: %w", err)
	}
	return &Storage{root: root}, nil
}

func (s *Storage) Close() error {
	return s.root.Close()
}

// Save writes to a temporary name first so readers never see a partial image.
func (s *Storage) Save(ctx context.Context, key string, data io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name, err := cleanKey(key)
	if err != nil {
		return err
	}
	if dir := path.Dir(name); dir != "." {
		if err := s.root.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create key dir: %w", err)
		}
	}

	tmpName := path.Join(path.Dir(name), ".upload-"+uuid.NewString())
	tmp, err := s.root.Create(tmpName)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = s.root.Remove(tmpName)
		}
	}()

	_, copyErr := io.Copy(tmp, data)
	closeErr := tmp.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	if err := s.root.Rename(tmpName, name); err != nil {
		return fmt.Errorf("commit file: %w", err)
	}
	committed = true
	return nil
}

func (s *Storage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	name, err := cleanKey(key)
	if err != nil {
		return nil, err
	}
	f, err := s.root.Open(name)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, domain.WrapError(domain.ErrNotFound, "open image", err)
	case err != nil:
		return nil, fmt.Errorf("open file: %w", err)
	}
	return f, nil
}

// cleanKey turns a slash-separated key into a local relative path.
func cleanKey(key string) (string, error) {
	name := path.Clean(strings.TrimSpace(key))
	if key == "" || !fs.ValidPath(name) || name == "." {
		return "", domain.WrapError(domain.ErrInvalidInput, "resolve storage key", fmt.Errorf("key %q escapes storage root", key))
	}
	return name, nil
}
