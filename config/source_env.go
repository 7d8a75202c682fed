package config

import (
	"os"
	"strings"
)

// EnvSource maps prefixed environment variables to config keys:
// AUTOSELECT_BACKEND_BASE_URL -> backend.base_url. Single underscores
// inside a section name survive because the last two segments are
// joined; deeper keys use explicit bindings.
type EnvSource struct {
	prefix   string
	priority int
	bindings map[string]string
}

func NewEnvSource(prefix string, priority int) *EnvSource {
	return &EnvSource{
		prefix:   prefix,
		priority: priority,
		bindings: make(map[string]string),
	}
}

// Bind maps one config key to one environment variable explicitly,
// bypassing the prefix convention.
func (s *EnvSource) Bind(key, envKey string) *EnvSource {
	s.bindings[key] = envKey
	return s
}

func (s *EnvSource) Name() string { return "env:" + s.prefix }

func (s *EnvSource) Priority() int { return s.priority }

func (s *EnvSource) Load() (map[string]any, error) {
	out := make(map[string]any)

	for key, envKey := range s.bindings {
		if value := os.Getenv(envKey); value != "" {
			out[key] = value
		}
	}
	if s.prefix == "" {
		return out, nil
	}

	prefix := s.prefix + "_"
	for _, env := range os.Environ() {
		name, value, ok := strings.Cut(env, "=")
		if !ok || value == "" || !strings.HasPrefix(name, prefix) {
			continue
		}
		key := strings.ToLower(strings.TrimPrefix(name, prefix))
		// First underscore separates the section from the field;
		// the rest of the field keeps its underscores.
		section, field, ok := strings.Cut(key, "_")
		if !ok {
			out[key] = value
			continue
		}
		out[section+"."+field] = value
	}
	return out, nil
}
