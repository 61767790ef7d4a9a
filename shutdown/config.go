package shutdown

import "time"

type Config struct {
	// Timeout bounds the whole shutdown; hooks still running are abandoned.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
	// HookTimeout bounds each hook. Zero means only Timeout applies.
	HookTimeout time.Duration `yaml:"hook_timeout" mapstructure:"hook_timeout"`
}

func DefaultConfig() *Config {
	return &Config{Timeout: 30 * time.Second}
}
