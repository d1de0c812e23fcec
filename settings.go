package websession

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

// ConfigReader reads application configuration by dotted key.
type ConfigReader interface {
	Get(key string, def any) any
}

// Settings is a ConfigReader over a tree of values, usually loaded from TOML.
type Settings struct {
	values map[string]any
}

// NewSettings wraps values. Nested maps are reachable through dotted keys.
func NewSettings(values map[string]any) *Settings {
	if values == nil {
		values = make(map[string]any)
	}
	return &Settings{values: values}
}

// LoadSettings reads a TOML file such as:
//
//	[session]
//	store = "file"
//	lifetime = 120
//	files = "storage/sessions"
func LoadSettings(path string) (*Settings, error) {
	var raw map[string]any
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return nil, fmt.Errorf("load session settings (%s): %w", path, err)
	}
	return NewSettings(raw), nil
}

// Get returns the value under key, or def.
func (s *Settings) Get(key string, def any) any {
	if v, ok := lookupPath(s.values, key); ok {
		return v
	}
	return def
}

func settingString(c ConfigReader, key, def string) string {
	if c == nil {
		return def
	}
	switch v := c.Get(key, def).(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return def
	}
}

func settingBool(c ConfigReader, key string, def bool) bool {
	if c == nil {
		return def
	}
	switch v := c.Get(key, def).(type) {
	case bool:
		return v
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return def
}

func settingInt(c ConfigReader, key string, def int) int {
	if c == nil {
		return def
	}
	switch v := c.Get(key, def).(type) {
	case int:
		return v
	case int64:
		return int(v)
	case int32:
		return int(v)
	case float64:
		return int(v)
	default:
		return def
	}
}

func settingStrings(c ConfigReader, key string, def []string) []string {
	if c == nil {
		return def
	}
	switch v := c.Get(key, def).(type) {
	case []string:
		return v
	case string:
		return strings.Split(v, ",")
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return def
	}
}
