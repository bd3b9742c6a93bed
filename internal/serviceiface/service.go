package serviceiface

import (
	"fmt"
	"strings"
	"time"
)

// Service is anything the app manager can start and stop in sequence.
type Service interface {
	Name() string
	Start() error
	Stop() error
}

// IntOption reads an integer from a services.yaml config map. YAML numbers may
// arrive as int or float64 and quoted values as string.
func IntOption(cfg map[string]interface{}, key string, def int) int {
	if cfg == nil {
		return def
	}
	switch t := cfg[key].(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	case string:
		var parsed int
		if _, err := fmt.Sscanf(strings.TrimSpace(t), "%d", &parsed); err == nil {
			return parsed
		}
	}
	return def
}

// StringOption reads a non-empty string from a config map.
func StringOption(cfg map[string]interface{}, key, def string) string {
	if cfg == nil {
		return def
	}
	if s, ok := cfg[key].(string); ok && strings.TrimSpace(s) != "" {
		return strings.TrimSpace(s)
	}
	return def
}

// DurationOption accepts "30s" style strings or a bare number of seconds.
func DurationOption(cfg map[string]interface{}, key string, def time.Duration) time.Duration {
	if cfg == nil {
		return def
	}
	switch t := cfg[key].(type) {
	case string:
		if d, err := time.ParseDuration(strings.TrimSpace(t)); err == nil {
			return d
		}
	case int:
		return time.Duration(t) * time.Second
	case float64:
		return time.Duration(t * float64(time.Second))
	}
	return def
}
