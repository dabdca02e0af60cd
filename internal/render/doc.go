// Package render synthesizes the violin fingerboard visualization frames for
// a parsed score. Rendering is deterministic: a frame index always produces
// the same pixels, so output videos are reproducible across runs.
package render
