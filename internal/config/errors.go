package config

import "fmt"

// ConfigurationError reports an invalid or missing configuration value. It
// is always fatal and raised before any phase runs.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "configuration: " + e.Reason
	}
	return fmt.Sprintf("configuration: %s: %s", e.Field, e.Reason)
}
