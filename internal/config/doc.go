// Package config loads, normalizes, and validates pixelpost configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// PIXELFED_ACCESS_TOKEN and OPENROUTER_API_KEY. The Config type centralizes
// every knob the CLI needs so the queue file, archive directory and service
// credentials are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
