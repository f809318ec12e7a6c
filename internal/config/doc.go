// Package config loads chatsync configuration from YAML with ${VAR}
// environment variable expansion and first-failure validation.
package config
