package logger

// ManagerConfig is the shared configuration for every module logger the
// manager builds.
type ManagerConfig struct {
	Level         string `mapstructure:"level"`
	AppName       string `mapstructure:"app_name"`
	BaseLogDir    string `mapstructure:"base_log_dir"`
	EnableConsole bool   `mapstructure:"enable_console"`
	EnableFile    bool   `mapstructure:"enable_file"`

	// Rotation settings, passed through to lumberjack.
	MaxSize    int  `mapstructure:"max_size"` // MB
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAge     int  `mapstructure:"max_age"` // days
	Compress   bool `mapstructure:"compress"`

	// Trace ID extraction from context.
	TraceIDKey       string `mapstructure:"trace_id_key"`
	TraceIDFieldName string `mapstructure:"trace_id_field_name"`
}

// DefaultManagerConfig returns the defaults used when a field is unset.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		Level:            "info",
		BaseLogDir:       "logs",
		EnableConsole:    true,
		EnableFile:       false,
		MaxSize:          100,
		MaxBackups:       5,
		MaxAge:           14,
		TraceIDKey:       "trace_id",
		TraceIDFieldName: "trace_id",
	}
}

// ApplyDefaults fills zero-valued fields with defaults.
func (c *ManagerConfig) ApplyDefaults() {
	def := DefaultManagerConfig()
	if c.Level == "" {
		c.Level = def.Level
	}
	if c.BaseLogDir == "" {
		c.BaseLogDir = def.BaseLogDir
	}
	if c.MaxSize <= 0 {
		c.MaxSize = def.MaxSize
	}
	if c.MaxBackups <= 0 {
		c.MaxBackups = def.MaxBackups
	}
	if c.MaxAge <= 0 {
		c.MaxAge = def.MaxAge
	}
	if c.TraceIDKey == "" {
		c.TraceIDKey = def.TraceIDKey
	}
	if c.TraceIDFieldName == "" {
		c.TraceIDFieldName = def.TraceIDFieldName
	}
}
