// Package config loads, normalizes, and validates kthgpt configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// OPENROUTER_API_KEY. The Config type centralizes every knob the daemon and CLI
// need: storage directories, AI backend credentials, the retry policies used
// for questions and summaries, and the job dispatch backend.
//
// Build the Config once at startup and pass it into constructors; no package
// reads configuration from globals.
package config
