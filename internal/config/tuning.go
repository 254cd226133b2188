package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// PlatformTuning carries optional per-platform overrides loaded from the
// APTSCAN_PLATFORMS_FILE YAML. Absent entries fall back to the built-in
// tables in the gate and registry.
type PlatformTuning struct {
	// Permits overrides the concurrency-gate permit count per platform tag.
	Permits map[string]int `yaml:"permits"`
	// Pacing overrides the post-scrape courtesy delay per platform tag,
	// as Go duration strings ("1s", "200ms").
	Pacing map[string]time.Duration `yaml:"pacing"`
}

// LoadPlatformTuning reads the tuning YAML at path. An empty path returns an
// empty tuning (all defaults).
func LoadPlatformTuning(path string) (*PlatformTuning, error) {
	t := &PlatformTuning{}
	if path == "" {
		return t, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("platform tuning: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, t); err != nil {
		return nil, fmt.Errorf("platform tuning: parse %s: %w", path, err)
	}
	for tag, n := range t.Permits {
		if n <= 0 {
			return nil, fmt.Errorf("platform tuning: permits for %q must be positive, got %d", tag, n)
		}
	}
	for tag, d := range t.Pacing {
		if d < 0 {
			return nil, fmt.Errorf("platform tuning: pacing for %q must be non-negative, got %s", tag, d)
		}
	}
	return t, nil
}
