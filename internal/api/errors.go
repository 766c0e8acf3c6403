package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/and161185/mediadesk/internal/convert"
	"github.com/and161185/mediadesk/internal/errs"
)

// Error is the typed failure of a backend operation. It unwraps to one of the
// errs sentinels so callers can branch with errors.Is.
type Error struct {
	Op      string // "GET /blogs"
	Status  int    // 0 for transport failures
	Message string // server message, verbatim
	Errors  []convert.FieldError
	Kind    error
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s: %v: %s", e.Op, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %d %s", e.Op, e.Status, e.Message)
}

func (e *Error) Unwrap() error { return e.Kind }

// Message returns the text to show a user for err: the server's message when there
// is one, otherwise the error string.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var ae *Error
	if errors.As(err, &ae) && ae.Message != "" {
		return ae.Message
	}
	return err.Error()
}

// kindForStatus maps an HTTP status to its sentinel.
func kindForStatus(code int) error {
	switch {
	case code == http.StatusUnauthorized:
		return errs.ErrUnauthorized
	case code == http.StatusForbidden:
		return errs.ErrForbidden
	case code == http.StatusNotFound:
		return errs.ErrNotFound
	case code == http.StatusConflict:
		return errs.ErrConflict
	case code >= 500:
		return errs.ErrServer
	default:
		return errs.ErrValidation
	}
}
