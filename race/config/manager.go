package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var (
	ErrTrackConfigNotFound = errors.New("track configuration not found")
)

// TrackConfigInfo is the listing view of one on-disk track config.
type TrackConfigInfo struct {
	Filename    string `json:"filename"`
	ConfigID    string `json:"config_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
}

// Manager loads and caches track configurations from a directory.
type Manager struct {
	configDir string
	configs   map[string]*TrackConfig
	mu        sync.RWMutex
}

// NewManager creates a manager over an existing config directory.
func NewManager(configDir string) (*Manager, error) {
	if _, err := os.Stat(configDir); os.IsNotExist(err) {
		return nil, fmt.Errorf("track config directory does not exist: %s", configDir)
	}
	return &Manager{
		configDir: configDir,
		configs:   make(map[string]*TrackConfig),
	}, nil
}

// LoadConfig loads a track configuration by name, caching on first use.
func (m *Manager) LoadConfig(name string) (*TrackConfig, error) {
	m.mu.RLock()
	if cfg, exists := m.configs[name]; exists {
		m.mu.RUnlock()
		return cfg, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if cfg, exists := m.configs[name]; exists {
		return cfg, nil
	}

	filename := name
	if !strings.HasSuffix(filename, ".json") {
		filename = name + ".json"
	}
	raw, err := os.ReadFile(filepath.Join(m.configDir, filename))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrTrackConfigNotFound
		}
		return nil, fmt.Errorf("read track config: %w", err)
	}

	cfg, err := ParseTrackConfig(raw)
	if err != nil {
		return nil, err
	}
	// Building proves the layout is a legal track before it is cached.
	if _, err := cfg.Build(); err != nil {
		return nil, err
	}

	m.configs[name] = cfg
	return cfg, nil
}

// ListConfigs scans the directory and returns every loadable track config.
// Invalid files are skipped rather than failing the listing.
func (m *Manager) ListConfigs() ([]*TrackConfigInfo, error) {
	entries, err := os.ReadDir(m.configDir)
	if err != nil {
		return nil, fmt.Errorf("read track config directory: %w", err)
	}

	var infos []*TrackConfigInfo
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ".json")
		cfg, err := m.LoadConfig(name)
		if err != nil {
			continue
		}
		infos = append(infos, &TrackConfigInfo{
			Filename:    entry.Name(),
			ConfigID:    name,
			Name:        cfg.Name,
			Description: cfg.Description,
			Width:       len(cfg.Layout[0]),
			Height:      len(cfg.Layout),
		})
	}
	return infos, nil
}
