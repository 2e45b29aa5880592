package env

import "os"

// Get reads an environment variable, falling back when it is unset or
// empty. Used for knobs needed before the typed config is loaded, like
// the log format.
func Get(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
