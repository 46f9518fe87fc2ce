// Package config loads and manages the hub's configuration.
//
// ARCHITECTURE:
//
//  1. SEPARATION OF CONCERNS: HubConfig holds system-wide operator settings
//     (ticket engine timing, delivery chunk size, docker preflight binaries).
//     Per-repo state (manifests, destinations, flow runs) lives in the
//     StateStore, never here — config is not a place to stash mutable state.
//  2. SCHEMA VERSIONING: SchemaVersion must be bumped whenever a field's
//     meaning changes, so old config.yml files don't get silently
//     misinterpreted.
//  3. GLOBAL SINGLETON: a single process-wide Config is held behind a mutex,
//     loaded once at startup via Load, accessed by value via Get.
//  4. ATOMIC UPDATES: changes happen through Update* helpers that validate
//     before persisting; there is no direct field mutation path.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// CurrentSchemaVersion is the schema version written by this build.
const CurrentSchemaVersion = 1

// TicketFlowConfig controls Ticket Engine timing (spec §4.C).
type TicketFlowConfig struct {
	TurnCapDefault int           `yaml:"turn_cap_default"`
	StopTimeout    time.Duration `yaml:"stop_timeout"`
	TurnTimeout    time.Duration `yaml:"turn_timeout"`
}

// DeliveryConfig controls DeliveryRouter defaults (spec §4.E, §9).
type DeliveryConfig struct {
	ChunkSize     int    `yaml:"chunk_size"`
	TelegramToken string `yaml:"telegram_bot_token"`
	DiscordToken  string `yaml:"discord_bot_token"`
}

// DockerConfig controls the docker Destination's full-dev preflight profile (spec §4.F).
type DockerConfig struct {
	FullDevProfileBinaries []string `yaml:"full_dev_profile_binaries"`
}

// HubConfig is the hub's top-level configuration.
type HubConfig struct {
	SchemaVersion      int              `yaml:"schema_version"`
	HubRoot            string           `yaml:"hub_root"`
	DefaultDestination string           `yaml:"default_destination"` // "local" or "docker"
	TicketFlow         TicketFlowConfig `yaml:"ticket_flow"`
	Delivery           DeliveryConfig   `yaml:"delivery"`
	Docker             DockerConfig     `yaml:"docker"`
}

// Default returns the configuration used when no config.yml is present.
func Default(hubRoot string) *HubConfig {
	return &HubConfig{
		SchemaVersion:      CurrentSchemaVersion,
		HubRoot:            hubRoot,
		DefaultDestination: "local",
		TicketFlow: TicketFlowConfig{
			TurnCapDefault: 20,
			StopTimeout:    30 * time.Second,
			TurnTimeout:    10 * time.Minute,
		},
		Delivery: DeliveryConfig{
			ChunkSize: 3500,
		},
		Docker: DockerConfig{
			FullDevProfileBinaries: []string{"codex", "opencode", "python3", "git", "rg", "bash", "node", "pnpm"},
		},
	}
}

func (c *HubConfig) validate() error {
	if c.HubRoot == "" {
		return fmt.Errorf("hub_root must be set")
	}
	if c.TicketFlow.TurnCapDefault <= 0 {
		return fmt.Errorf("ticket_flow.turn_cap_default must be positive")
	}
	if c.TicketFlow.StopTimeout <= 0 {
		return fmt.Errorf("ticket_flow.stop_timeout must be positive")
	}
	if c.Delivery.ChunkSize <= 0 {
		return fmt.Errorf("delivery.chunk_size must be positive")
	}
	return nil
}

var (
	mu      sync.RWMutex
	current *HubConfig
)

func configPath(hubRoot string) string {
	return filepath.Join(hubRoot, ".codex-autorunner", "config.yml")
}

// Load reads <hubRoot>/.codex-autorunner/config.yml, falling back to
// defaults (and persisting them) if the file does not exist yet.
func Load(hubRoot string) (*HubConfig, error) {
	path := configPath(hubRoot)
	data, err := os.ReadFile(path) //nolint:gosec // path is derived from an operator-supplied hub root
	if os.IsNotExist(err) {
		cfg := Default(hubRoot)
		if werr := persist(cfg); werr != nil {
			return nil, werr
		}
		mu.Lock()
		current = cfg
		mu.Unlock()
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default(hubRoot)
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.HubRoot = hubRoot
	if cfg.SchemaVersion == 0 {
		cfg.SchemaVersion = CurrentSchemaVersion
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	mu.Lock()
	current = cfg
	mu.Unlock()
	return cfg, nil
}

// Get returns a copy of the currently loaded config.
func Get() (*HubConfig, error) {
	mu.RLock()
	defer mu.RUnlock()
	if current == nil {
		return nil, fmt.Errorf("config not loaded")
	}
	cp := *current
	return &cp, nil
}

func persist(cfg *HubConfig) error {
	dir := filepath.Dir(configPath(cfg.HubRoot))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	tmp := configPath(cfg.HubRoot) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil { //nolint:gosec // config is not secret material
		return fmt.Errorf("write temp config: %w", err)
	}
	if err := os.Rename(tmp, configPath(cfg.HubRoot)); err != nil {
		return fmt.Errorf("rename temp config: %w", err)
	}
	return nil
}

// Update applies fn to a copy of the current config, validates the result,
// persists it, and only then swaps it in as current — matching the
// validate-then-persist-then-swap discipline the rest of the hub expects.
func Update(fn func(*HubConfig)) (*HubConfig, error) {
	mu.Lock()
	defer mu.Unlock()
	if current == nil {
		return nil, fmt.Errorf("config not loaded")
	}
	cp := *current
	fn(&cp)
	if err := cp.validate(); err != nil {
		return nil, fmt.Errorf("invalid config update: %w", err)
	}
	if err := persist(&cp); err != nil {
		return nil, err
	}
	current = &cp
	out := *current
	return &out, nil
}
