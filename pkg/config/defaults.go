package config

// Default returns the built-in ServiceConfig defaults, used as the merge
// base so a YAML file only needs to set the fields it wants to override.
func Default() ServiceConfig {
	return ServiceConfig{
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
