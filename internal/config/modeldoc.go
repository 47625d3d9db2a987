package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/gruntworks-dev/orchestrator/internal/logging"
)

// ModelEntry is one canonical model listed in the declarative model-config
// document (spec.md §6 "Model-config file").
type ModelEntry struct {
	Name                   string   `yaml:"name"`
	Aliases                []string `yaml:"aliases"`
	ContextWindow          int      `yaml:"context_window"`
	SupportsExtendedThink  bool     `yaml:"supports_extended_thinking"`
	SupportsSystemPrompts  bool     `yaml:"supports_system_prompts"`
	SupportsStreaming      bool     `yaml:"supports_streaming"`
	SupportsJSONMode       bool     `yaml:"supports_json_mode"`
	SupportsFunctionCall   bool     `yaml:"supports_function_calling"`
	SupportsImages         bool     `yaml:"supports_images"`
	MaxImageMB             int      `yaml:"max_image_mb"`
	CustomOnly             bool     `yaml:"custom_only"`
	FriendlyName           string   `yaml:"friendly_name"`
}

// ModelDoc is the parsed declarative model-config document.
type ModelDoc struct {
	Models []ModelEntry `yaml:"models"`
}

// ModelRegistryDoc loads a ModelDoc from disk and keeps it fresh via
// fsnotify, so a registry's Initialize picks up edits without a restart.
// Grounded on mercator-hq-jupiter's file-watch pattern for declarative
// config documents.
type ModelRegistryDoc struct {
	mu   sync.RWMutex
	doc  ModelDoc
	path string
	log  logging.Logger

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// LoadModelDoc reads and parses the model-config document at path. If path
// is empty, an empty document is returned (the registry then relies solely
// on provider-reported capabilities).
func LoadModelDoc(path string, log logging.Logger) (*ModelRegistryDoc, error) {
	if log == nil {
		log = logging.Noop{}
	}
	m := &ModelRegistryDoc{path: path, log: log}
	if path == "" {
		return m, nil
	}
	if err := m.reload(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *ModelRegistryDoc) reload() error {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return fmt.Errorf("read model-config %q: %w", m.path, err)
	}
	var doc ModelDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse model-config %q: %w", m.path, err)
	}
	m.mu.Lock()
	m.doc = doc
	m.mu.Unlock()
	return nil
}

// Watch begins watching the document file for changes until ctx is
// cancelled. Safe to call at most once per ModelRegistryDoc.
func (m *ModelRegistryDoc) Watch(ctx context.Context) error {
	if m.path == "" {
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := w.Add(m.path); err != nil {
		w.Close()
		return fmt.Errorf("watch model-config %q: %w", m.path, err)
	}
	m.watcher = w
	m.done = make(chan struct{})

	go func() {
		defer close(m.done)
		for {
			select {
			case <-ctx.Done():
				w.Close()
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					if err := m.reload(); err != nil {
						m.log.Warn(ctx, "model-config reload failed", logging.F("error", err.Error()))
					} else {
						m.log.Info(ctx, "model-config reloaded", logging.F("path", m.path))
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				m.log.Warn(ctx, "model-config watch error", logging.F("error", err.Error()))
			}
		}
	}()
	return nil
}

// Resolve finds the canonical model entry owning name (a canonical name or
// an alias, matched case-insensitively).
func (m *ModelRegistryDoc) Resolve(name string) (ModelEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	lower := strings.ToLower(name)
	for _, entry := range m.doc.Models {
		if strings.ToLower(entry.Name) == lower {
			return entry, true
		}
		for _, alias := range entry.Aliases {
			if strings.ToLower(alias) == lower {
				return entry, true
			}
		}
	}
	return ModelEntry{}, false
}

// All returns a snapshot of every model entry in the document.
func (m *ModelRegistryDoc) All() []ModelEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ModelEntry, len(m.doc.Models))
	copy(out, m.doc.Models)
	return out
}
