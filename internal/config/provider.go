package config

import "maps"

// DirectorySettings returns the provider-specific settings handed to the DNS
// directory factory. The top-level token is exposed as "api_token" unless the
// settings map already carries one.
func (c *Config) DirectorySettings() map[string]string {
	settings := make(map[string]string, len(c.Settings)+1)
	maps.Copy(settings, c.Settings)
	if _, ok := settings["api_token"]; !ok && c.Token != "" {
		settings["api_token"] = c.Token
	}
	return settings
}
