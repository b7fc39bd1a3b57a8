package auth

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/AzureAD/microsoft-authentication-library-for-go/apps/cache"
)

// fileTokenCache persists the MSAL token cache to a single file with owner-only
// permissions. It implements cache.ExportReplace so the MSAL clients load it
// before each token lookup and flush it after each acquisition, giving the
// cache an explicit lifecycle instead of process-wide state.
type fileTokenCache struct {
	path string
	mu   sync.Mutex
}

func newFileTokenCache(path string) *fileTokenCache {
	return &fileTokenCache{path: path}
}

func (c *fileTokenCache) Replace(_ context.Context, u cache.Unmarshaler, _ cache.ReplaceHints) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	return u.Unmarshal(data)
}

func (c *fileTokenCache) Export(_ context.Context, m cache.Marshaler, _ cache.ExportHints) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := m.Marshal()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(c.path, data, 0o600)
}

// clear deletes the persisted cache file.
func (c *fileTokenCache) clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.Remove(c.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
