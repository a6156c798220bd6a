package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// Problem is an RFC 7807 style error body.
type Problem struct {
	Type     string      `json:"type,omitempty"`
	Title    string      `json:"title"`
	Status   int         `json:"status"`
	Detail   string      `json:"detail,omitempty"`
	Instance string      `json:"instance,omitempty"`
	Extra    interface{} `json:"extra,omitempty"`
}

// FieldError points a validation failure at one input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *FieldError) Error() string { return e.Field + ": " + e.Message }

func NewFieldError(field, format string, args ...any) *FieldError {
	return &FieldError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func WriteProblem(w http.ResponseWriter, status int, title, detail string, extra any) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Problem{
		Title:  title,
		Status: status,
		Detail: detail,
		Extra:  extra,
	})
}

// WriteBadRequest writes a 400; a *FieldError anywhere in err's chain becomes extra.field.
func WriteBadRequest(w http.ResponseWriter, err error) {
	var fe *FieldError
	if errors.As(err, &fe) {
		WriteProblem(w, http.StatusBadRequest, "Bad Request", fe.Message, fe)
		return
	}
	WriteProblem(w, http.StatusBadRequest, "Bad Request", err.Error(), nil)
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// DecodeJSON reads a bounded JSON body and rejects unknown trailing data.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("invalid json: %w", err)
	}
	return nil
}
