// Package errors provides structured error handling for the room service.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// CodeNotFound covers unknown room codes and missing documents.
	CodeNotFound Code = "NOT_FOUND"

	// CodeDuplicateID reports a create collision on an existing document id.
	CodeDuplicateID Code = "DUPLICATE_ID"

	// CodeBadInput reports a field validation failure.
	CodeBadInput Code = "BAD_INPUT"

	// CodeUnauthorized reports an ownership check failure on update.
	CodeUnauthorized Code = "UNAUTHORIZED"

	// CodeUnknownRequest reports a request matching no route or operation.
	CodeUnknownRequest Code = "UNKNOWN_REQUEST"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeNotFound, CodeUnknownRequest:
		return http.StatusNotFound
	case CodeDuplicateID:
		return http.StatusConflict
	case CodeBadInput:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
