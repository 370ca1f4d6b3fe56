package config

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validate checks the fields Load can't express via YAML types alone.
func validate(cfg ServiceConfig) error {
	if cfg.HTTP.Addr == "" {
		return NewValidationError("http", "", "addr", ErrMissingRequiredField)
	}
	if cfg.Log.Level != "" && !validLogLevels[cfg.Log.Level] {
		return NewValidationError("log", "", "level", ErrInvalidValue)
	}
	return nil
}
