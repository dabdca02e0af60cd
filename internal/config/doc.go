// Package config loads, defaults, normalizes, and validates scoreframe
// configuration from TOML.
//
// Load resolves the config path (explicit flag, then
// ~/.config/scoreframe/config.toml, then ./scoreframe.toml), merges the file
// over Default(), expands ~ in paths, and applies environment overrides for
// secrets (SCOREFRAME_API_TOKEN) and binary locations (SCOREFRAME_FFMPEG).
// Components receive the resulting struct explicitly; nothing reads ambient
// globals at request time.
package config
