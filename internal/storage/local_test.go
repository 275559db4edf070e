package storage

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"async-import/internal/domain"
)

func newStore(t *testing.T, maxSize int64) *LocalStore {
	t.Helper()
	s, err := NewLocalStore(t.TempDir(), maxSize)
	require.NoError(t, err)
	s.now = func() time.Time { return time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC) }
	return s
}

func TestLocalStore_SaveAndPath(t *testing.T) {
	s := newStore(t, 0)

	name, err := s.Save("Users Export.CSV", strings.NewReader("email\na@example.com\n"))
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^20260506070809_[0-9a-f]{16}\.csv$`), name)

	path, err := s.Path(name)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.Dir(), name), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "email\na@example.com\n", string(data))

	other, err := s.Save("users.csv", strings.NewReader("x"))
	require.NoError(t, err)
	assert.NotEqual(t, name, other)
}

func TestLocalStore_SaveRejects(t *testing.T) {
	s := newStore(t, 10)

	_, err := s.Save("payload.exe", strings.NewReader("MZ"))
	assert.ErrorIs(t, err, domain.ErrUnsupportedInput)

	_, err = s.Save("empty.csv", strings.NewReader(""))
	assert.ErrorIs(t, err, domain.ErrValidationFailed)

	_, err = s.Save("big.csv", strings.NewReader(strings.Repeat("a", 11)))
	assert.ErrorIs(t, err, domain.ErrValidationFailed)

	entries, err := os.ReadDir(s.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries, "rejected uploads must not leave files behind")
}

func TestLocalStore_PathRejectsUnsafeNames(t *testing.T) {
	s := newStore(t, 0)

	for _, name := range []string{
		"",
		"../etc/passwd.csv",
		"..csv",
		"a/b.csv",
		`a\b.csv`,
		".hidden.csv",
		"name\x00.csv",
		"line\nbreak.csv",
		"tab\tname.csv",
		"what?.csv",
		"star*.csv",
		"pipe|.csv",
		"script.sh",
		strings.Repeat("a", 252) + ".csv",
	} {
		_, err := s.Path(name)
		assert.ErrorIs(t, err, domain.ErrSecurityViolation, "name %q", name)
	}
}

func TestLocalStore_PathRejectsSymlinkEscape(t *testing.T) {
	s := newStore(t, 0)

	outside := filepath.Join(t.TempDir(), "secret.csv")
	require.NoError(t, os.WriteFile(outside, []byte("x"), 0o600))
	require.NoError(t, os.Symlink(outside, filepath.Join(s.Dir(), "link.csv")))

	_, err := s.Path("link.csv")
	assert.ErrorIs(t, err, domain.ErrSecurityViolation)
}

func TestLocalStore_Delete(t *testing.T) {
	s := newStore(t, 0)

	name, err := s.Save("users.json", strings.NewReader(`[{"a":1}]`))
	require.NoError(t, err)

	require.NoError(t, s.Delete(name))
	require.NoError(t, s.Delete(name), "deleting twice is not an error")

	_, err = os.Stat(filepath.Join(s.Dir(), name))
	assert.True(t, os.IsNotExist(err))

	assert.ErrorIs(t, s.Delete("../x.csv"), domain.ErrSecurityViolation)
}

func TestLocalStore_Lock(t *testing.T) {
	s := newStore(t, 0)

	unlock, err := s.Lock()
	require.NoError(t, err)

	_, err = s.Lock()
	assert.ErrorIs(t, err, ErrLocked)

	require.NoError(t, unlock())

	unlock, err = s.Lock()
	require.NoError(t, err)
	require.NoError(t, unlock())
}
