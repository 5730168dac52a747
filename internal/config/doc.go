// Package config handles configuration loading for session-gateway.
//
// # Overview
//
// Configuration is loaded from YAML or TOML files with environment variable
// expansion. The package provides validation and sensible defaults for the
// watchdog policy knobs.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from SESSION_GATEWAY_CONFIG environment variable
//  2. ./gateway.yaml (current directory)
//  3. ~/.config/session-gateway/gateway.yaml
//
// Files ending in .toml are parsed as TOML; everything else is YAML.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	gateway:
//	  api_key: "${SESSION_GATEWAY_API_KEY}"
//
// Syntax: ${VAR_NAME}
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	watchdog:
//	  interval: "1m"
//	  reconnect_cooldown: "60s"
//	  start_qr_delay: "2s"
//
// Supported units: ns, us, ms, s, m, h
//
// # Watchdog Policy
//
// Unset watchdog knobs fall back to the defaults: one-minute check interval,
// 60s reconnect cooldown, 5 max automatic reconnect attempts, alert at 3
// consecutive failures, 2s pause between a successful start call and the
// first QR fetch.
package config
