// ABOUTME: YAML persistence for the groupmanager plugin's groups and users.
// ABOUTME: A missing file loads as a document with a single default group.

package groupmanager

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultGroup is created when the groups file does not exist.
const DefaultGroup = "default"

// Document is the on-disk shape of the groups file.
type Document struct {
	Groups map[string]*Group `yaml:"groups"`
	Users  map[string]*User  `yaml:"users"`
}

// Group is a named permission set. Entries prefixed with "-" deny.
type Group struct {
	Default     bool     `yaml:"default,omitempty"`
	Permissions []string `yaml:"permissions,omitempty"`
	Inherits    []string `yaml:"inherits,omitempty"`
}

// User is one player's membership and personal nodes.
type User struct {
	Group       string   `yaml:"group"`
	Subgroups   []string `yaml:"subgroups,omitempty"`
	Permissions []string `yaml:"permissions,omitempty"`
}

func newDocument() *Document {
	return &Document{
		Groups: map[string]*Group{DefaultGroup: {Default: true}},
		Users:  make(map[string]*User),
	}
}

// defaultGroup returns the group flagged default, falling back to the
// alphabetically first group.
func (d *Document) defaultGroup() string {
	names := make([]string, 0, len(d.Groups))
	for name, g := range d.Groups {
		if g.Default {
			return name
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		return ""
	}
	sort.Strings(names)
	return names[0]
}

// FileStore reads and writes the groups file.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Path() string {
	return s.path
}

// Load reads the groups file.
func (s *FileStore) Load() (*Document, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return newDocument(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read groups file: %w", err)
	}

	doc := &Document{}
	if err := yaml.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("failed to parse groups file: %w", err)
	}
	if doc.Groups == nil {
		doc.Groups = make(map[string]*Group)
	}
	if len(doc.Groups) == 0 {
		doc.Groups[DefaultGroup] = &Group{Default: true}
	}
	if doc.Users == nil {
		doc.Users = make(map[string]*User)
	}
	for name, g := range doc.Groups {
		if g == nil {
			doc.Groups[name] = &Group{}
		}
	}
	// Player names are case-insensitive.
	users := make(map[string]*User, len(doc.Users))
	for name, u := range doc.Users {
		if u == nil {
			u = &User{}
		}
		users[strings.ToLower(name)] = u
	}
	doc.Users = users
	return doc, nil
}

// Save writes doc to the groups file, creating its directory if needed.
func (s *FileStore) Save(doc *Document) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal groups: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create groups directory: %w", err)
	}
	// Replace the file atomically.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write groups file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace groups file: %w", err)
	}
	return nil
}
