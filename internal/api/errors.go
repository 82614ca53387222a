package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// FieldError is one server-side validation failure.
type FieldError struct {
	Field   string
	Message string
}

// UnmarshalJSON accepts both {field, message} and the {path|param, msg}
// shape produced by express-validator style backends.
func (f *FieldError) UnmarshalJSON(data []byte) error {
	var raw struct {
		Field   string `json:"field"`
		Path    string `json:"path"`
		Param   string `json:"param"`
		Message string `json:"message"`
		Msg     string `json:"msg"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	f.Field = firstNonEmpty(raw.Field, raw.Path, raw.Param)
	f.Message = firstNonEmpty(raw.Message, raw.Msg)
	return nil
}

// Error is a non-2xx response from the API.
type Error struct {
	Status  int
	Message string
	Fields  []FieldError
	Body    []byte
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api: %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("api: %d %s", e.Status, http.StatusText(e.Status))
}

// newError decodes the {message, errors} envelope from body.
func newError(status int, body []byte) *Error {
	e := &Error{Status: status, Body: body}
	var env struct {
		Message string          `json:"message"`
		Error   string          `json:"error"`
		Errors  json.RawMessage `json:"errors"`
	}
	if json.Unmarshal(body, &env) != nil {
		return e
	}
	e.Message = firstNonEmpty(env.Message, env.Error)
	if len(env.Errors) > 0 {
		var list []FieldError
		if json.Unmarshal(env.Errors, &list) == nil {
			e.Fields = list
		} else {
			// {"field": "message"} map form
			var m map[string]string
			if json.Unmarshal(env.Errors, &m) == nil {
				for k, v := range m {
					e.Fields = append(e.Fields, FieldError{Field: k, Message: v})
				}
			}
		}
	}
	return e
}

// IsUnauthorized reports whether err is a 401 from the API.
func IsUnauthorized(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

// Message returns the user-facing text for err: the server message when one
// was sent, a connection notice for ErrNoConnection, else fallback.
func Message(err error, fallback string) string {
	if errors.Is(err, ErrNoConnection) {
		return "Unable to reach the server. Please check your connection."
	}
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
