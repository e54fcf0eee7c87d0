// Package httpjson implements the JSON request/response conventions shared
// by the service HTTP APIs.
package httpjson

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	platformerrors "github.com/dkapsis/pms/internal/platform/errors"
)

// maxBodyBytes caps JSON request bodies. Attachment uploads use multipart
// parsing and are not subject to this limit.
const maxBodyBytes = 1 << 20

// errorBody is the machine-readable failure envelope.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// Write serializes payload as JSON with the given status code.
func Write(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode response: %v", err)
	}
}

// WriteError maps err onto the HTTP error envelope.
//
// Internal and unknown errors keep their cause out of the response body;
// clients get a generic message while the detail goes to the log.
func WriteError(w http.ResponseWriter, err error) {
	code := platformerrors.GetCode(err)
	status := code.HTTPStatus()

	message := err.Error()
	if status == http.StatusInternalServerError {
		log.Printf("internal error: %v", err)
		message = "an unexpected error occurred"
	}

	var details map[string]string
	var appErr *platformerrors.Error
	if errors.As(err, &appErr) {
		details = appErr.Metadata
	}

	Write(w, status, errorBody{Error: errorDetail{
		Code:    string(code),
		Message: message,
		Details: details,
	}})
}

// Decode reads a JSON request body into target.
func Decode(r *http.Request, target any) error {
	body := http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	defer func() {
		_, _ = io.Copy(io.Discard, body)
	}()
	if err := json.NewDecoder(body).Decode(target); err != nil {
		return platformerrors.Wrap(platformerrors.CodeInvalidBody, "invalid JSON body", err)
	}
	return nil
}
