// Package storage keeps uploaded import files on the local filesystem.
package storage

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/gofrs/flock"

	"async-import/internal/domain"
)

const (
	maxFileNameLength = 255
	lockFileName      = ".cleanup.lock"
	dirPerm           = 0o750
	filePerm          = 0o640
)

// AllowedExtensions lists the upload extensions accepted by Save.
var AllowedExtensions = []string{"csv", "xls", "xlsx", "json"}

// ErrLocked is returned by Lock when another process holds the lock.
var ErrLocked = errors.New("upload directory is locked")

// LocalStore saves uploads under a single directory with generated names.
type LocalStore struct {
	dir     string
	maxSize int64
	now     func() time.Time
}

// NewLocalStore creates the upload directory if needed. A maxSize of 0
// disables the size limit.
func NewLocalStore(dir string, maxSize int64) (*LocalStore, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve upload dir %s: %w", dir, err)
	}
	if err := os.MkdirAll(abs, dirPerm); err != nil {
		return nil, fmt.Errorf("create upload dir %s: %w", abs, err)
	}
	// Resolve symlinks so containment checks compare real paths.
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		abs = real
	}
	return &LocalStore{dir: abs, maxSize: maxSize, now: time.Now}, nil
}

// Dir returns the absolute upload directory.
func (s *LocalStore) Dir() string {
	return s.dir
}

// Save stores the upload under a generated name and returns that name. Only
// the extension of originalName is used.
func (s *LocalStore) Save(originalName string, r io.Reader) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(originalName), "."))
	if !allowedExtension(ext) {
		return "", fmt.Errorf("%w: file extension %q not allowed (allowed: %s)",
			domain.ErrUnsupportedInput, ext, strings.Join(AllowedExtensions, ", "))
	}

	name, err := s.generateName(ext)
	if err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp upload: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	src := r
	if s.maxSize > 0 {
		src = io.LimitReader(r, s.maxSize+1)
	}
	n, err := io.Copy(tmp, src)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}
	if n == 0 {
		return "", fmt.Errorf("%w: uploaded file is empty", domain.ErrValidationFailed)
	}
	if s.maxSize > 0 && n > s.maxSize {
		return "", fmt.Errorf("%w: uploaded file exceeds %d bytes", domain.ErrValidationFailed, s.maxSize)
	}

	if err := os.Chmod(tmpName, filePerm); err != nil {
		return "", fmt.Errorf("chmod upload: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(s.dir, name)); err != nil {
		return "", fmt.Errorf("store upload: %w", err)
	}
	return name, nil
}

// Path resolves a stored file name to its absolute path. Names that could
// address anything outside the upload directory are rejected with
// domain.ErrSecurityViolation.
func (s *LocalStore) Path(name string) (string, error) {
	if err := checkName(name); err != nil {
		return "", err
	}

	path := filepath.Join(s.dir, name)
	if filepath.Dir(path) != s.dir {
		return "", fmt.Errorf("%w: path escapes upload directory", domain.ErrSecurityViolation)
	}
	if real, err := filepath.EvalSymlinks(path); err == nil && filepath.Dir(real) != s.dir {
		return "", fmt.Errorf("%w: %q resolves outside upload directory", domain.ErrSecurityViolation, name)
	}
	return path, nil
}

// Delete removes a stored file. Missing files are not an error.
func (s *LocalStore) Delete(name string) error {
	path, err := s.Path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", name, err)
	}
	return nil
}

// Lock takes an exclusive, non-blocking lock on the upload directory. It
// returns ErrLocked when another process holds it.
func (s *LocalStore) Lock() (func() error, error) {
	fl := flock.New(filepath.Join(s.dir, lockFileName))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire upload dir lock: %w", err)
	}
	if !locked {
		return nil, ErrLocked
	}
	return fl.Unlock, nil
}

func (s *LocalStore) generateName(ext string) (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate file name: %w", err)
	}
	return fmt.Sprintf("%s_%s.%s", s.now().Format("20060102150405"), hex.EncodeToString(buf), ext), nil
}

func checkName(name string) error {
	if name == "" || len(name) > maxFileNameLength {
		return fmt.Errorf("%w: invalid file name length", domain.ErrSecurityViolation)
	}
	if strings.HasPrefix(name, ".") || strings.Contains(name, "..") {
		return fmt.Errorf("%w: unsafe file name %q", domain.ErrSecurityViolation, name)
	}
	for _, r := range name {
		if unicode.IsControl(r) || strings.ContainsRune(`/\<>:"|?*`, r) {
			return fmt.Errorf("%w: unsafe file name %q", domain.ErrSecurityViolation, name)
		}
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if !allowedExtension(ext) {
		return fmt.Errorf("%w: file extension %q not allowed", domain.ErrSecurityViolation, ext)
	}
	return nil
}

func allowedExtension(ext string) bool {
	for _, e := range AllowedExtensions {
		if e == ext {
			return true
		}
	}
	return false
}
