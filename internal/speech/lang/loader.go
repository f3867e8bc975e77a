package lang

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// catalogFile is the YAML shape of one language catalog file.
type catalogFile struct {
	Languages map[string]string `yaml:"languages"`
}

// Loader loads and optionally hot-reloads language catalog files from a
// directory into a Catalog.
type Loader struct {
	dir     string
	catalog *Catalog
}

// NewLoader creates a loader feeding the given catalog.
func NewLoader(dir string, catalog *Catalog) *Loader {
	return &Loader{dir: dir, catalog: catalog}
}

// LoadAll merges all .yaml and .yml files from the configured directory
// into the catalog. A missing directory is not an error: the builtin
// table stays in effect.
func (l *Loader) LoadAll() error {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read language dir %q: %w", l.dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		path := filepath.Join(l.dir, entry.Name())
		if err := l.loadFile(path); err != nil {
			return fmt.Errorf("load %q: %w", path, err)
		}
	}
	return nil
}

func (l *Loader) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var cf catalogFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return fmt.Errorf("parse YAML: %w", err)
	}

	for name, code := range cf.Languages {
		if name == "" || code == "" {
			return fmt.Errorf("empty language name or code")
		}
	}

	l.catalog.Merge(cf.Languages)
	return nil
}

// WatchAndReload watches the catalog directory and reloads on changes.
// This blocks until the done channel is closed.
func (l *Loader) WatchAndReload(done <-chan struct{}) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(l.dir); err != nil {
		return fmt.Errorf("watch dir %q: %w", l.dir, err)
	}

	for {
		select {
		case <-done:
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				ext := filepath.Ext(event.Name)
				if ext == ".yaml" || ext == ".yml" {
					if err := l.LoadAll(); err != nil {
						slog.Warn("language catalog reload failed", slog.String("error", err.Error()))
					}
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}
