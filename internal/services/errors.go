package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Sentinel markers for pipeline stage failures. Every error that crosses a
// stage boundary is tagged with exactly one of these so callers can classify
// it without inspecting message text.
var (
	ErrValidation = errors.New("validation error")
	ErrParse      = errors.New("parse error")
	ErrSynthesis  = errors.New("synthesis error")
	ErrEncode     = errors.New("encode error")
	ErrTimeout    = errors.New("timeout")
	ErrInternal   = errors.New("internal error")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrInternal
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Code returns the stable wire code for a classified error. Unclassified
// errors report internal_error so callers never see an empty code.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrParse):
		return "parse_error"
	case errors.Is(err, ErrSynthesis):
		return "synthesis_error"
	case errors.Is(err, ErrEncode):
		return "encode_error"
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout_error"
	default:
		return "internal_error"
	}
}

// HTTPStatus maps a classified error to the response status the API server
// should emit.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrParse):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Details carries the user-facing portions of a classified error.
type Details struct {
	Code    string
	Message string
}

// ErrorDetails extracts the stable code and the human-readable message from a
// classified error. The sentinel prefix is stripped from the message so it is
// not repeated on the wire.
func ErrorDetails(err error) Details {
	if err == nil {
		return Details{}
	}
	message := err.Error()
	for _, marker := range []error{ErrValidation, ErrParse, ErrSynthesis, ErrEncode, ErrTimeout, ErrInternal} {
		prefix := marker.Error() + ": "
		if strings.HasPrefix(message, prefix) {
			message = strings.TrimPrefix(message, prefix)
			break
		}
	}
	return Details{Code: Code(err), Message: strings.TrimSpace(message)}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "stage failure"
	}
	return strings.Join(parts, ": ")
}
