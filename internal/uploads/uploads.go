// Package uploads stores complaint photos on disk under generated names.
// Only the file name is stored in the database; the bytes are served as-is
// from /uploads.
package uploads

import (
	"civicdesk/backend/internal/apperr"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var allowedExt = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".gif":  true,
	".heic": true,
}

// Store writes uploads into Dir.
type Store struct {
	Dir string
}

// NewStore creates dir if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Store{Dir: dir}, nil
}

// Save copies the uploaded file and returns its generated name.
func (s *Store) Save(fh *multipart.FileHeader) (string, error) {
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if !allowedExt[ext] {
		return "", apperr.Validation("unsupported_file", "only image uploads are accepted")
	}

	src, err := fh.Open()
	if err != nil {
		return "", apperr.Storage("open upload", err)
	}
	defer src.Close()

	name := uuid.NewString() + ext
	dst, err := os.OpenFile(s.Path(name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", apperr.Storage("create upload", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		_ = os.Remove(s.Path(name))
		return "", apperr.Storage("write upload", err)
	}
	if err := dst.Close(); err != nil {
		return "", apperr.Storage("write upload", err)
	}
	return name, nil
}

// Path returns the on-disk path of a stored file.
func (s *Store) Path(name string) string {
	return filepath.Join(s.Dir, filepath.Base(name))
}

// Remove deletes a stored file, ignoring files that are already gone.
func (s *Store) Remove(name string) error {
	err := os.Remove(s.Path(name))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
