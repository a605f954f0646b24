package config

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Timeout:         30000, // 30 seconds
		FollowRedirects: BoolPtr(true),
		MaxRedirects:    10,
		ValidateSSL:     BoolPtr(true),
		Templating:      BoolPtr(false),
		Bail:            BoolPtr(false),
		NoColor:         BoolPtr(false),
		Log: LogConfig{
			Level:  "warn",
			Format: "console",
		},
	}
}
