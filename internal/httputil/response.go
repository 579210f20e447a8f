package httputil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	svcerrors "github.com/R3E-Network/attestation_layer/internal/errors"
)

// MaxRequestBodyBytes bounds JSON request bodies accepted by the REST layer.
const MaxRequestBodyBytes = 1 << 20

// ErrorBody is the JSON error envelope.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes one failed request.
type ErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// WriteJSON writes a JSON response.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// WriteError renders err as an ErrorBody, using the ServiceError status when present.
func WriteError(w http.ResponseWriter, err error) {
	se, ok := svcerrors.As(err)
	if !ok {
		se = svcerrors.Internal("internal error", err)
	}
	status := se.HTTPStatus
	if status == 0 {
		status = http.StatusInternalServerError
	}
	WriteJSON(w, status, ErrorBody{Error: ErrorDetail{
		Code:    string(se.Code),
		Message: se.Message,
		Details: se.Details,
	}})
}

// BadRequest writes a 400 with message.
func BadRequest(w http.ResponseWriter, message string) {
	WriteError(w, svcerrors.BadRequest(message))
}

// DecodeJSON decodes the request body into v, writing a 400 and returning false on failure.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil {
		BadRequest(w, "empty request body")
		return false
	}
	body, err := ReadAllStrict(r.Body, MaxRequestBodyBytes)
	if err != nil {
		BadRequest(w, fmt.Sprintf("read body: %v", err))
		return false
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		BadRequest(w, "empty request body")
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		BadRequest(w, fmt.Sprintf("invalid JSON: %v", err))
		return false
	}
	return true
}
