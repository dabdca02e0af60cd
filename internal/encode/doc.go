// Package encode turns rendered frames into an MP4 container by streaming
// raw RGBA over ffmpeg's stdin, with optional sine-synth audio and optional
// ffprobe verification of the result.
package encode
