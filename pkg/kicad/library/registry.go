package library

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// SourceEntry describes one registered external library source.
type SourceEntry struct {
	Name       string `json:"-"`
	Path       string `json:"path"`
	SourceType string `json:"source_type"` // "git" or "local"
	URL        string `json:"url,omitempty"`
}

type registryFile struct {
	Sources map[string]SourceEntry `json:"sources"`
}

// Registry persists named external library source directories so resolved
// symbols can come from user-managed checkouts as well as system installs.
// The registry lives at ~/.config/kicadedit/library_sources.json.
type Registry struct {
	path    string
	sources map[string]SourceEntry
}

// DefaultRegistryPath returns the registry file location for this user.
func DefaultRegistryPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "kicadedit", "library_sources.json"), nil
}

// OpenRegistry loads the registry at path, creating an empty one when the
// file does not exist yet. A corrupt registry file is an error rather than
// a silent reset.
func OpenRegistry(path string) (*Registry, error) {
	r := &Registry{path: path, sources: map[string]SourceEntry{}}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return r, nil
	}
	if err != nil {
		return nil, err
	}

	var file registryFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("corrupt library registry %s: %w", path, err)
	}
	if file.Sources != nil {
		r.sources = file.Sources
	}
	return r, nil
}

func (r *Registry) save() error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(registryFile{Sources: r.sources}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(r.path, data, 0o644)
}

// Register adds or replaces a source by name.
func (r *Registry) Register(name, path, sourceType, url string) error {
	r.sources[name] = SourceEntry{Path: path, SourceType: sourceType, URL: url}
	return r.save()
}

// Unregister removes a source. It reports whether the source existed.
func (r *Registry) Unregister(name string) (bool, error) {
	if _, ok := r.sources[name]; !ok {
		return false, nil
	}
	delete(r.sources, name)
	return true, r.save()
}

// Get returns a source by name.
func (r *Registry) Get(name string) (SourceEntry, bool) {
	entry, ok := r.sources[name]
	if ok {
		entry.Name = name
	}
	return entry, ok
}

// List returns all sources sorted by name.
func (r *Registry) List() []SourceEntry {
	entries := make([]SourceEntry, 0, len(r.sources))
	for name, entry := range r.sources {
		entry.Name = name
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries
}

// SymbolLibraries finds .kicad_sym files across registered sources. An
// empty sourceName selects all sources.
func (r *Registry) SymbolLibraries(sourceName string) []string {
	var results []string
	for name, entry := range r.sources {
		if sourceName != "" && name != sourceName {
			continue
		}
		root := entry.Path
		filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return nil
			}
			if !info.IsDir() && strings.HasSuffix(path, ".kicad_sym") {
				results = append(results, path)
			}
			return nil
		})
	}
	sort.Strings(results)
	return results
}

// FootprintLibraries finds .pretty directories across registered sources.
func (r *Registry) FootprintLibraries(sourceName string) []string {
	var results []string
	for name, entry := range r.sources {
		if sourceName != "" && name != sourceName {
			continue
		}
		root := entry.Path
		if strings.HasSuffix(root, ".pretty") && dirExists(root) {
			results = append(results, root)
			continue
		}
		filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return nil
			}
			if info.IsDir() && strings.HasSuffix(path, ".pretty") {
				results = append(results, path)
				return filepath.SkipDir
			}
			return nil
		})
	}
	sort.Strings(results)
	return results
}
