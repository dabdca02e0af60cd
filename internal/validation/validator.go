package validation

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"scoreframe/internal/services"
)

// Reason identifies why a payload was rejected before processing.
type Reason string

const (
	ReasonEmptyPayload         Reason = "empty payload"
	ReasonSizeExceedsLimit     Reason = "size exceeds limit"
	ReasonUnsupportedExtension Reason = "unsupported file extension"
	ReasonMalformedContainer   Reason = "malformed container"
)

// Extensions accepted for upload. MXL is the compressed MusicXML container.
var acceptedExtensions = map[string]struct{}{
	".musicxml": {},
	".xml":      {},
	".mxl":      {},
}

var (
	zipMagic = []byte("PK")
	utf8BOM  = []byte{0xEF, 0xBB, 0xBF}
)

// RejectionError reports a failed pre-check. It wraps services.ErrValidation
// so callers can classify it without importing this package.
type RejectionError struct {
	Reason Reason
	Detail string
}

func (e *RejectionError) Error() string {
	if e.Detail == "" {
		return string(e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Detail)
}

func (e *RejectionError) Unwrap() error { return services.ErrValidation }

// ReasonOf extracts the rejection reason from an error chain, if present.
func ReasonOf(err error) (Reason, bool) {
	var rejection *RejectionError
	if errors.As(err, &rejection) {
		return rejection.Reason, true
	}
	return "", false
}

// Check runs the acceptance policy against an incoming payload. It performs
// only cheap structural checks (length, extension, magic bytes) and never
// attempts a full parse. A nil return means the payload may proceed to the
// parser.
func Check(data []byte, filename string, maxBytes int64) error {
	if len(data) == 0 {
		return &RejectionError{Reason: ReasonEmptyPayload}
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return &RejectionError{
			Reason: ReasonSizeExceedsLimit,
			Detail: fmt.Sprintf("%d bytes exceeds limit of %d", len(data), maxBytes),
		}
	}

	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(filename)))
	if _, ok := acceptedExtensions[ext]; !ok {
		return &RejectionError{
			Reason: ReasonUnsupportedExtension,
			Detail: fmt.Sprintf("%q is not a supported notation file", filename),
		}
	}

	switch ext {
	case ".mxl":
		if !bytes.HasPrefix(data, zipMagic) {
			return &RejectionError{
				Reason: ReasonMalformedContainer,
				Detail: "mxl payload is not a zip archive",
			}
		}
	default:
		if !looksLikeXML(data) {
			return &RejectionError{
				Reason: ReasonMalformedContainer,
				Detail: "payload does not begin with an XML element",
			}
		}
	}
	return nil
}

// looksLikeXML reports whether the payload starts with '<' after an optional
// UTF-8 BOM and leading whitespace.
func looksLikeXML(data []byte) bool {
	data = bytes.TrimPrefix(data, utf8BOM)
	data = bytes.TrimLeft(data, " \t\r\n")
	return len(data) > 0 && data[0] == '<'
}
