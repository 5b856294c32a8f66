// Package params is a key-value parameter table persisted as TOML.
// Values are strings; list values are space-separated. Nested TOML tables
// are addressed with dot-notation keys such as "polar.method".
package params

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// ErrMalformedLine is returned by Apply for lines without an operator.
var ErrMalformedLine = errors.New("malformed parameter line")

// Store is one parameter table bound to a file.
type Store struct {
	path   string
	values map[string]string
}

// New creates an empty table that will be saved to path.
func New(path string) *Store {
	return &Store{path: path, values: make(map[string]string)}
}

// Load reads the table at path. A missing file yields an empty table.
func Load(path string) (*Store, error) {
	s := New(path)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("reading parameter file: %w", err)
	}

	var loaded map[string]any
	if err := toml.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("parsing parameter file %s: %w", path, err)
	}
	for key, value := range flattenMap(loaded, "") {
		s.values[key] = stringify(value)
	}
	return s, nil
}

// flattenMap converts nested maps to dot-notation keys.
func flattenMap(m map[string]any, prefix string) map[string]any {
	result := make(map[string]any)
	for key, value := range m {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}
		if nested, ok := value.(map[string]any); ok {
			for k, v := range flattenMap(nested, fullKey) {
				result[k] = v
			}
		} else {
			result[fullKey] = value
		}
	}
	return result
}

// stringify renders a decoded TOML value in table form. Arrays become
// space-separated lists.
func stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case []any:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = stringify(item)
		}
		return strings.Join(parts, " ")
	default:
		return fmt.Sprint(v)
	}
}

// Path returns the file the table is bound to.
func (s *Store) Path() string {
	return s.path
}

// Save writes the table to its file.
func (s *Store) Save() error {
	data, err := toml.Marshal(s.values)
	if err != nil {
		return fmt.Errorf("encoding parameter table: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("writing parameter file: %w", err)
	}
	return nil
}

// Get returns the value of key.
func (s *Store) Get(key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}

// String returns the value of key, or def when absent.
func (s *Store) String(key, def string) string {
	if v, ok := s.values[key]; ok {
		return v
	}
	return def
}

// Int returns the integer value of key, or def when absent.
func (s *Store) Int(key string, def int) (int, error) {
	v, ok := s.values[key]
	if !ok {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("parameter %s: %w", key, err)
	}
	return n, nil
}

// Set stores value under key, replacing any previous value.
func (s *Store) Set(key, value string) {
	s.values[key] = value
}

// Remove deletes key and reports whether it existed.
func (s *Store) Remove(key string) bool {
	_, ok := s.values[key]
	delete(s.values, key)
	return ok
}

// Keys returns all keys, sorted.
func (s *Store) Keys() []string {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of entries.
func (s *Store) Len() int {
	return len(s.values)
}

// Apply edits the table with one assignment line:
//
//	key=value   set
//	key:=value  replace
//	key+=value  prepend value to the list
//	key-=value  remove value from the list
func (s *Store) Apply(line string) error {
	idx := strings.Index(line, "=")
	if idx <= 0 {
		return fmt.Errorf("%w: %q", ErrMalformedLine, line)
	}
	op := byte('=')
	keyEnd := idx
	switch line[idx-1] {
	case ':', '+', '-':
		op = line[idx-1]
		keyEnd = idx - 1
	}
	key := strings.TrimSpace(line[:keyEnd])
	if key == "" {
		return fmt.Errorf("%w: %q has no key", ErrMalformedLine, line)
	}
	value := strings.TrimLeft(line[idx+1:], " \t")

	switch op {
	case '=', ':':
		s.values[key] = value
	case '+':
		if old, ok := s.values[key]; ok && old != "" {
			value = value + " " + old
		}
		s.values[key] = value
	case '-':
		old, ok := s.values[key]
		if !ok {
			return nil
		}
		kept := make([]string, 0)
		for _, item := range strings.Fields(old) {
			if item != value {
				kept = append(kept, item)
			}
		}
		s.values[key] = strings.Join(kept, " ")
	}
	return nil
}
