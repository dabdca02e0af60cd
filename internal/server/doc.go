// Package server exposes the conversion pipeline over HTTP: a convert
// endpoint carrying base64 payloads plus status and job-history surfaces.
package server
