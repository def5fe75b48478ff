// Package credentials stores the server contexts used by the cfmgr client
// commands: a server URL plus the API key or bearer token to send.
package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"
)

const (
	// DefaultConfigDir is the directory below $XDG_CONFIG_HOME.
	DefaultConfigDir = "cfmgr"
	// ConfigFileName holds the contexts. It lives next to the server's
	// config.yaml.
	ConfigFileName = "contexts.json"
	// FilePermissions for the contexts file (read/write for owner only).
	FilePermissions = 0600
	// DirPermissions for the config directory.
	DirPermissions = 0700
)

var (
	// ErrNoCurrentContext indicates no context is currently set.
	ErrNoCurrentContext = errors.New("no current context set")
	// ErrContextNotFound indicates the requested context doesn't exist.
	ErrContextNotFound = errors.New("context not found")
	// ErrContextExists is returned when renaming onto a taken name.
	ErrContextExists = errors.New("context already exists")
	// ErrNotLoggedIn indicates the current context carries no credential.
	ErrNotLoggedIn = errors.New("not logged in - run 'cfmgr login' first")
)

// Context is a connection to one cfmgr server.
type Context struct {
	ServerURL string    `json:"server_url"`
	APIKey    string    `json:"api_key,omitempty"`
	Token     string    `json:"token,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// HasCredentials reports whether an API key or a bearer token is stored.
func (c *Context) HasCredentials() bool {
	return c.APIKey != "" || c.Token != ""
}

// IsExpired reports whether the bearer token has expired, or expires
// within the next minute. API keys and tokens without an expiry never
// expire.
func (c *Context) IsExpired() bool {
	if c.Token == "" || c.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().Add(60 * time.Second).After(c.ExpiresAt)
}

// file is the on-disk layout of contexts.json.
type file struct {
	CurrentContext string              `json:"current_context"`
	Contexts       map[string]*Context `json:"contexts"`
}

// Store is the contexts file loaded in memory. Every mutation rewrites
// the file; it is not safe for concurrent use.
type Store struct {
	path string
	data file
}

// NewStore opens $XDG_CONFIG_HOME/cfmgr/contexts.json (or the ~/.config
// equivalent).
func NewStore() (*Store, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("cannot determine home directory: %w", err)
		}
		base = filepath.Join(home, ".config")
	}
	return NewStoreAt(filepath.Join(base, DefaultConfigDir, ConfigFileName))
}

// NewStoreAt opens the contexts file at path. A missing file is an empty
// store and is created by the first write.
func NewStoreAt(path string) (*Store, error) {
	s := &Store{path: path}
	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	default:
		if err := json.Unmarshal(raw, &s.data); err != nil {
			return nil, fmt.Errorf("cannot read %s: %w", path, err)
		}
	}
	if s.data.Contexts == nil {
		s.data.Contexts = make(map[string]*Context)
	}
	return s, nil
}

// save replaces the file atomically so a crash never leaves half a file.
func (s *Store) save() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, DirPermissions); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}
	raw, err := json.MarshalIndent(&s.data, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".contexts-*.json")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(FilePermissions); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

// ConfigPath returns the path of the contexts file.
func (s *Store) ConfigPath() string {
	return s.path
}

// GetCurrentContextName returns "" when no context is selected.
func (s *Store) GetCurrentContextName() string {
	return s.data.CurrentContext
}

// GetCurrentContext returns ErrNoCurrentContext when none is selected.
func (s *Store) GetCurrentContext() (*Context, error) {
	if s.data.CurrentContext == "" {
		return nil, ErrNoCurrentContext
	}
	return s.GetContext(s.data.CurrentContext)
}

// GetContext returns an error wrapping ErrContextNotFound for unknown names.
func (s *Store) GetContext(name string) (*Context, error) {
	if ctx, ok := s.data.Contexts[name]; ok {
		return ctx, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrContextNotFound, name)
}

// ListContexts returns the context names in order.
func (s *Store) ListContexts() []string {
	return slices.Sorted(maps.Keys(s.data.Contexts))
}

// SetContext stores ctx under name, replacing any previous one. The first
// context stored becomes current.
func (s *Store) SetContext(name string, ctx *Context) error {
	s.data.Contexts[name] = ctx
	if s.data.CurrentContext == "" {
		s.data.CurrentContext = name
	}
	return s.save()
}

// UseContext makes name the current context.
func (s *Store) UseContext(name string) error {
	if _, err := s.GetContext(name); err != nil {
		return err
	}
	s.data.CurrentContext = name
	return s.save()
}

// RenameContext moves a context to a new name, keeping it current if it
// was. Renaming onto an existing context fails with ErrContextExists.
func (s *Store) RenameContext(from, to string) error {
	ctx, err := s.GetContext(from)
	if err != nil || from == to {
		return err
	}
	if _, taken := s.data.Contexts[to]; taken {
		return fmt.Errorf("%w: %s", ErrContextExists, to)
	}
	delete(s.data.Contexts, from)
	s.data.Contexts[to] = ctx
	if s.data.CurrentContext == from {
		s.data.CurrentContext = to
	}
	return s.save()
}

// DeleteContext removes a context. Deleting the current one leaves no
// context selected.
func (s *Store) DeleteContext(name string) error {
	if _, err := s.GetContext(name); err != nil {
		return err
	}
	delete(s.data.Contexts, name)
	if s.data.CurrentContext == name {
		s.data.CurrentContext = ""
	}
	return s.save()
}

// ClearCurrentContext drops the credentials of the current context and
// keeps its server URL, so a later login can reuse it.
func (s *Store) ClearCurrentContext() error {
	ctx, err := s.GetCurrentContext()
	if err != nil {
		return err
	}
	ctx.APIKey, ctx.Token, ctx.ExpiresAt = "", "", time.Time{}
	return s.save()
}

var nonNameChars = regexp.MustCompile(`[^a-z0-9.-]+`)

// GenerateContextName derives a context name from a server URL, such as
// "localhost-8080" for http://localhost:8080.
func GenerateContextName(serverURL string) string {
	u, err := url.Parse(serverURL)
	if err != nil || u.Host == "" {
		return "default"
	}
	name := nonNameChars.ReplaceAllString(strings.ToLower(u.Host), "-")
	name = strings.Trim(name, "-")
	if name == "" {
		return "default"
	}
	return name
}
