// Package config handles configuration loading and management for hitsession.
//
// It provides functionality for:
//   - Loading configuration from hitsession.json or hitsession.yaml files
//   - Default configuration values
//   - Merging command-line overrides over file settings
package config
