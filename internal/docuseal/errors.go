package docuseal

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type Code string

const (
	CodeTemplateNotFound   Code = "TEMPLATE_NOT_FOUND"
	CodeServiceUnavailable Code = "SERVICE_UNAVAILABLE"
	CodeUnauthorized       Code = "UNAUTHORIZED"
	CodeInvalidRequest     Code = "INVALID_REQUEST"
)

var hints = map[Code]string{
	CodeTemplateNotFound:   "The form template no longer exists in DocuSeal. Check the template id or pick another template.",
	CodeServiceUnavailable: "DocuSeal could not be reached. Try again in a few minutes.",
	CodeUnauthorized:       "DocuSeal rejected the API key. Ask an administrator to update the DocuSeal configuration.",
	CodeInvalidRequest:     "DocuSeal rejected the request. Check the employee email and the template signer roles.",
}

// Error is a DocuSeal failure classified into one of the codes above.
type Error struct {
	Code    Code
	Status  int // upstream HTTP status, 0 for transport errors
	Message string
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("docuseal: %s (%d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("docuseal: %s: %s", e.Code, e.Message)
}

// Hint is a user-facing remediation message.
func (e *Error) Hint() string { return hints[e.Code] }

// Temporary reports whether the request may succeed if retried.
func (e *Error) Temporary() bool { return e.Code == CodeServiceUnavailable }

// AsError extracts a *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

// classify maps an upstream status and body to an Error.
func classify(status int, body []byte) *Error {
	msg := strings.TrimSpace(string(body))
	if len(msg) > 300 {
		msg = msg[:300]
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	e := &Error{Status: status, Message: msg}
	switch {
	case status == http.StatusNotFound:
		e.Code = CodeTemplateNotFound
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		e.Code = CodeUnauthorized
	case status == http.StatusTooManyRequests, status >= 500:
		e.Code = CodeServiceUnavailable
	default:
		e.Code = CodeInvalidRequest
	}
	return e
}
