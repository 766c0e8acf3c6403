// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across the client data layer.
var (
	// ErrTransport indicates the request never produced an HTTP response (dial, timeout, reset).
	ErrTransport = errors.New("transport failure")

	// ErrValidation indicates the server rejected the input (4xx with a message).
	ErrValidation = errors.New("validation failed")

	// ErrUnauthorized indicates an absent, invalid or expired credential (HTTP 401).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the credential lacks permission for the operation.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a business-rule violation such as a duplicate resource.
	ErrConflict = errors.New("conflict")

	// ErrServer indicates a 5xx response.
	ErrServer = errors.New("server error")

	// ErrMalformedResponse indicates a 2xx body that does not match the expected schema.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrNotAuthenticated indicates no usable token is stored (route guard).
	ErrNotAuthenticated = errors.New("not authenticated")
)
