package strategy

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/jonlambert/deliver/internal/errors"
)

// fileNamePattern restricts discovered strategy filenames to a conservative
// character set.
var fileNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Entry is one discovered strategy: a name plus a deferred loader.
type Entry struct {
	Name string
	load func() (*Strategy, error)
}

// Registry discovers strategies from the built-in set and one or more
// project-local search paths.
type Registry struct {
	builtins    []*Strategy
	searchPaths []string
}

// NewRegistry creates a registry over the built-in strategies and the
// given project-local search paths. Paths that do not exist are skipped
// during discovery.
func NewRegistry(searchPaths ...string) *Registry {
	return &Registry{
		builtins:    Builtins(),
		searchPaths: searchPaths,
	}
}

// Discover enumerates every available strategy. Built-ins come first in
// their declared order; project-local files follow in directory order. A
// project-local strategy with the same name as a built-in replaces the
// built-in's loader but keeps its enumeration position, so the override
// does not change which name a prefix match resolves to.
func (r *Registry) Discover() ([]Entry, error) {
	entries := make([]Entry, 0, len(r.builtins))
	index := make(map[string]int, len(r.builtins))

	for _, b := range r.builtins {
		b := b
		index[b.Name] = len(entries)
		entries = append(entries, Entry{
			Name: b.Name,
			load: func() (*Strategy, error) { return b, nil },
		})
	}

	for _, dir := range r.searchPaths {
		files, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("reading strategy directory %s: %w", dir, err)
		}

		for _, f := range files {
			if !f.Type().IsRegular() {
				continue
			}
			fileName := f.Name()
			if !fileNamePattern.MatchString(fileName) {
				continue
			}
			if strings.HasPrefix(strings.ToLower(fileName), "readme") {
				continue
			}

			name := strategyName(fileName)
			path := filepath.Join(dir, fileName)
			entry := Entry{
				Name: name,
				load: func() (*Strategy, error) { return LoadFile(name, path) },
			}

			if i, ok := index[name]; ok {
				// Project-local file overrides the built-in.
				entries[i] = entry
				continue
			}
			index[name] = len(entries)
			entries = append(entries, entry)
		}
	}

	return entries, nil
}

// Names returns the discovered strategy names in enumeration order.
func (r *Registry) Names() ([]string, error) {
	entries, err := r.Discover()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return names, nil
}

// Load resolves the configured name against the discovered set. Matching
// is by substring, case-insensitively, and the first match in enumeration
// order wins: a configured "git" resolves to a discovered "git-push". This
// tie-break is load-bearing for callers that rely on prefix matching and
// must not be tightened to exact equality.
func (r *Registry) Load(name string) (*Strategy, error) {
	entries, err := r.Discover()
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(strings.TrimSpace(name))
	for _, e := range entries {
		if strings.Contains(strings.ToLower(e.Name), needle) {
			return e.load()
		}
	}

	discovered := make([]string, len(entries))
	for i, e := range entries {
		discovered[i] = e.Name
	}
	return nil, &errors.UnknownStrategyError{Name: name, Discovered: discovered}
}

// strategyName derives the strategy name from a file name by trimming a
// YAML extension.
func strategyName(fileName string) string {
	for _, ext := range []string{".yml", ".yaml"} {
		if strings.HasSuffix(fileName, ext) {
			return strings.TrimSuffix(fileName, ext)
		}
	}
	return fileName
}
