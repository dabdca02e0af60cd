// Package services defines the error taxonomy shared by the conversion
// pipeline and its callers, plus context helpers for request correlation.
//
// Stage code wraps failures with one of the exported sentinel errors so the
// orchestrator and the API server can classify them without string matching.
// Code and HTTPStatus are the single source of truth for wire codes and
// response statuses; keep new failure classes here rather than inventing
// ad-hoc error types in stage packages.
package services
