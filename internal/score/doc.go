// Package score parses MusicXML (and compressed MXL) payloads into the
// intermediate representation consumed by the frame synthesizer.
//
// All timing is resolved to a fixed integer resolution (TicksPerQuarter) at
// parse time; seconds exist only as a derived view through the score tempo,
// so event times never accumulate floating-point drift across long scores.
// Parts and voices are merged into a single time-ordered event stream while
// keeping per-voice identity for rendering.
package score
