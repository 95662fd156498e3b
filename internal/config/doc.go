// Package config loads, normalizes, and validates oszshare configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// OSZSHARE_UPLOAD_KEY, either from the process environment or from a .env
// file stored next to the config file. Invalid server URLs fall back to the
// default share server and the expiry bounds are clamped into a consistent
// range instead of failing the load.
package config
