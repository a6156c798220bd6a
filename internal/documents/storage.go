package documents

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// Storage keeps uploaded files on an afero filesystem: the OS disk under a root
// directory in production, a memory fs in tests. Keys are slash-separated and relative.
type Storage struct {
	fs afero.Fs
}

func NewStorage(fs afero.Fs) *Storage { return &Storage{fs: fs} }

// NewDiskStorage roots storage at dir, creating it if needed.
func NewDiskStorage(dir string) (*Storage, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("documents: storage root: %w", err)
	}
	return &Storage{fs: afero.NewBasePathFs(afero.NewOsFs(), dir)}, nil
}

// Key builds "<employeeID>/<uuid>-<safe name>".
func Key(employeeID uint, fileName string) string {
	return fmt.Sprintf("%d/%s-%s", employeeID, uuid.NewString(), SafeName(fileName))
}

// SafeName strips directories and anything outside [A-Za-z0-9._-].
func SafeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}
	s := strings.TrimLeft(b.String(), ".")
	if s == "" {
		return "file"
	}
	if len(s) > 120 {
		s = s[len(s)-120:]
	}
	return s
}

// Put writes r under key and returns the byte count and sha256. A partial file is removed on error.
func (s *Storage) Put(key string, r io.Reader) (int64, string, error) {
	if err := s.fs.MkdirAll(path.Dir(key), 0o750); err != nil {
		return 0, "", err
	}
	f, err := s.fs.Create(key)
	if err != nil {
		return 0, "", err
	}
	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(f, h), r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = s.fs.Remove(key)
		return 0, "", err
	}
	return n, hex.EncodeToString(h.Sum(nil)), nil
}

func (s *Storage) Open(key string) (afero.File, error) { return s.fs.Open(key) }

func (s *Storage) Remove(key string) error {
	err := s.fs.Remove(key)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Ping checks that the storage root can be written.
func (s *Storage) Ping() error {
	f, err := afero.TempFile(s.fs, ".", ".ping-")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	return s.fs.Remove(name)
}
