// Package config loads, normalizes, and validates DailyBrief configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads an optional .env file, and honours
// environment fallbacks such as PERPLEXITY_API_KEY and OPENROUTER_API_KEY. The
// Config type centralizes every knob the daemon and CLI need, including the
// bounded waits around provider login, source processing, and audio synthesis.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
