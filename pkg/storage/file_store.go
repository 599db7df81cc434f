package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

const ImagesPath = "/images/"

// FileStore saves images to a local directory served under ImagesPath.
type FileStore struct {
	basePath  string
	publicURL string
}

func NewFileStore(basePath, publicURL string) (*FileStore, error) {
	if strings.TrimSpace(basePath) == "" {
		return nil, errors.New("storage base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, errors.Wrap(err, "create storage dir")
	}
	return &FileStore{
		basePath:  basePath,
		publicURL: strings.TrimRight(publicURL, "/"),
	}, nil
}

func (f *FileStore) Dir() string {
	return f.basePath
}

func (f *FileStore) Store(_ context.Context, name string, r io.Reader, _ int64, _ string) (string, error) {
	name = safeFilename(name)
	path := filepath.Join(f.basePath, name)
	out, err := os.Create(path)
	if err != nil {
		return "", errors.Wrap(err, "create file")
	}
	if _, err := io.Copy(out, r); err != nil {
		_ = out.Close()
		_ = os.Remove(path)
		return "", errors.Wrap(err, "write file")
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(path)
		return "", errors.Wrap(err, "close file")
	}
	return f.publicURL + ImagesPath + name, nil
}

func (f *FileStore) Release(_ context.Context, ref string) error {
	_, name, ok := strings.Cut(ref, ImagesPath)
	if !ok || name == "" {
		return errors.Errorf("unknown image reference %q", ref)
	}
	err := os.Remove(filepath.Join(f.basePath, safeFilename(name)))
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "remove file")
	}
	return nil
}

func safeFilename(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "." || name == string(os.PathSeparator) || name == "" {
		return "image"
	}
	return name
}
