// Package validation implements the acceptance policy applied to uploaded
// notation files before any parsing work begins.
//
// Checks are intentionally cheap and side-effect free: byte length against
// the configured limit, file extension, and container magic bytes. Anything
// deeper belongs to the score parser.
package validation
