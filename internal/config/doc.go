// Package config handles configuration loading for the campus assistant.
//
// # Configuration File
//
// Locations, in order:
//
//  1. Path given with -config
//  2. Path from the CAMPUS_CONFIG environment variable
//  3. ./campus.yaml or ./campus.toml
//  4. ~/.config/campus-assistant/config.yaml (or config.toml)
//
// When none exists the defaults are used. Files ending in .toml are decoded
// as TOML, anything else as YAML.
//
// # Environment Variables
//
// Values can reference environment variables with ${VAR_NAME}:
//
//	mockapi:
//	  jwt_secret: "${CAMPUS_JWT_SECRET}"
//
// Unset variables expand to the empty string. CAMPUS_API_URL, when set,
// replaces server.base_url after loading.
//
// # Example
//
//	server:
//	  base_url: "http://localhost:8000"
//	  request_timeout: "30s"
//	auth:
//	  token_path: ""
//	chat:
//	  stream_timeout: "5m"
//	logging:
//	  level: "info"
//	  format: "text"
//	mockapi:
//	  addr: "127.0.0.1:8000"
//	  database_path: "campus-mock.db"
//	  jwt_secret: "${CAMPUS_JWT_SECRET}"
//	  token_ttl: "24h"
//
// Durations use time.ParseDuration syntax.
package config
