// Package config handles configuration loading for granite-client.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable
// expansion. The package provides validation and sensible defaults; every
// field left out of the file keeps its default.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from GRANITE_CONFIG environment variable
//  2. ./granite.yaml (current directory)
//  3. ~/.config/granite/client.yaml
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	backend:
//	  base_url: "${GRANITE_BACKEND_URL}"
package config
