package config

// FlagSource carries explicit command-line overrides. The CLI collects
// set flags into a flat key/value map; unset flags are simply absent so
// they never mask file or environment values.
type FlagSource struct {
	values   map[string]any
	priority int
}

func NewFlagSource(values map[string]any, priority int) *FlagSource {
	if values == nil {
		values = map[string]any{}
	}
	return &FlagSource{values: values, priority: priority}
}

func (s *FlagSource) Name() string { return "flags" }

func (s *FlagSource) Priority() int { return s.priority }

func (s *FlagSource) Load() (map[string]any, error) {
	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out, nil
}
