// Package apperr defines the error taxonomy used across the engine and a
// single helper for converting it into the HTTP response envelope.
package apperr

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Kind classifies an error into one of the taxonomy buckets from the error
// handling design: validation, auth, transient infra, business rejection,
// broker rejection, or a fatal invariant breach.
type Kind int

const (
	KindValidation Kind = iota
	KindAuth
	KindTransient
	KindBusinessRejection
	KindBrokerRejection
	KindFatal
)

// Error wraps a Kind with a human-readable message and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func Validation(message string) *Error { return New(KindValidation, message) }
func Auth(message string) *Error       { return New(KindAuth, message) }
func Transient(message string, cause error) *Error {
	return Wrap(KindTransient, message, cause)
}
func Fatal(message string) *Error { return New(KindFatal, message) }

// statusFor maps a Kind to the HTTP status codes enumerated in the external
// interfaces section: 400 validation, 401 auth, 500 transient/fatal.
// Business rejections never reach HTTP — the decision pipeline records them
// as AIDecisionLog rows and returns a normal "skip", never an error.
func statusFor(k Kind) int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindTransient, KindFatal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Envelope is the response shape every ingress endpoint returns.
type Envelope struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// WriteHTTP converts any error into the standard JSON envelope, never
// leaking a stack trace to the caller.
func WriteHTTP(w http.ResponseWriter, err error) {
	var ae *Error
	status := http.StatusInternalServerError
	msg := "internal error"
	if errors.As(err, &ae) {
		status = statusFor(ae.Kind)
		msg = ae.Message
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Envelope{Status: "error", Message: msg})
}

// WriteJSON writes a success envelope merged with extra data fields.
func WriteJSON(w http.ResponseWriter, status int, data map[string]any) {
	if data == nil {
		data = map[string]any{}
	}
	if _, ok := data["status"]; !ok {
		data["status"] = "success"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
