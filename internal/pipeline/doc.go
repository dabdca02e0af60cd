// Package pipeline orchestrates single-shot conversions of notation payloads
// into visualization videos: validate, parse, synthesize frames, encode.
// Requests share nothing; every run works in its own temp directory under a
// wall-clock budget and cleans up before returning.
package pipeline
