package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// FileSource reads a YAML (or any viper-supported) file. A missing
// file is not an error: environment-specific overlays are optional.
type FileSource struct {
	path     string
	priority int
}

func NewFileSource(path string, priority int) *FileSource {
	return &FileSource{path: path, priority: priority}
}

func (s *FileSource) Name() string { return "file:" + s.path }

func (s *FileSource) Priority() int { return s.priority }

func (s *FileSource) Load() (map[string]any, error) {
	if _, err := os.Stat(s.path); err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("stat config file %s: %w", s.path, err)
	}

	v := viper.New()
	v.SetConfigFile(s.path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config file %s: %w", s.path, err)
	}
	return flatten("", v.AllSettings()), nil
}

// flatten converts nested maps to dot-separated keys:
// {"cache": {"sweep_interval": "1m"}} -> {"cache.sweep_interval": "1m"}.
func flatten(prefix string, data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for key, value := range data {
		full := key
		if prefix != "" {
			full = prefix + "." + key
		}
		if nested, ok := value.(map[string]any); ok {
			for nk, nv := range flatten(full, nested) {
				out[nk] = nv
			}
			continue
		}
		out[full] = value
	}
	return out
}
