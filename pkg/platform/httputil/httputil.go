// Package httputil renders domain results as JSON HTTP responses.
package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	dErrors "custodia/pkg/domain-errors"
)

const maxBodyBytes = 1 << 20

var statusByCode = map[dErrors.Code]int{
	dErrors.CodeBadRequest:          http.StatusBadRequest,
	dErrors.CodeValidation:          http.StatusBadRequest,
	dErrors.CodeInvalidInput:        http.StatusBadRequest,
	dErrors.CodeInvalidRequest:      http.StatusBadRequest,
	dErrors.CodeInvalidAmount:       http.StatusBadRequest,
	dErrors.CodeOutOfRange:          http.StatusBadRequest,
	dErrors.CodeInvalidReference:    http.StatusBadRequest,
	dErrors.CodeArrayLengthMismatch: http.StatusBadRequest,
	dErrors.CodeProofExpired:        http.StatusUnprocessableEntity,
	dErrors.CodeProofNotYetValid:    http.StatusUnprocessableEntity,
	dErrors.CodeComplianceRejected:  http.StatusUnprocessableEntity,
	dErrors.CodeInsufficientBalance: http.StatusUnprocessableEntity,
	dErrors.CodeNotFound:            http.StatusNotFound,
	dErrors.CodeDuplicateEntity:     http.StatusConflict,
	dErrors.CodeConflict:            http.StatusConflict,
	dErrors.CodeInvalidState:        http.StatusConflict,
	dErrors.CodeNotDefaulted:        http.StatusConflict,
	dErrors.CodeInvariantViolation:  http.StatusConflict,
	dErrors.CodeReentrantCall:       http.StatusConflict,
	dErrors.CodeUnauthorized:        http.StatusForbidden,
	dErrors.CodeForbidden:           http.StatusForbidden,
	dErrors.CodeTimeout:             http.StatusServiceUnavailable,
	dErrors.CodeInternal:            http.StatusInternalServerError,
}

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
	Reason           string `json:"reason,omitempty"`
}

// StatusFor maps a domain error code to an HTTP status.
func StatusFor(code dErrors.Code) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// WriteError writes err as a JSON error. Internal errors never expose their
// description.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	resp := ErrorResponse{Error: string(code)}
	if code != dErrors.CodeInternal {
		if de, ok := dErrors.As(err); ok {
			resp.ErrorDescription = de.Message
			resp.Reason = de.Reason
		}
	}
	WriteJSON(w, StatusFor(code), resp)
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// DecodeJSON decodes a bounded request body into dst, rejecting unknown
// fields. An empty body leaves dst at its zero value.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid JSON body")
	}
	return nil
}

// Validatable requests normalize and check themselves after decoding.
type Validatable interface {
	Validate() error
}

// DecodeAndPrepare decodes the body into a new T and validates it. On
// failure it writes the error response and returns false.
func DecodeAndPrepare[T any, PT interface {
	*T
	Validatable
}](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (*T, bool) {
	req := PT(new(T))
	if err := DecodeJSON(r, req); err != nil {
		logger.WarnContext(ctx, "failed to decode request body",
			"request_id", requestID,
			"error", err,
		)
		WriteError(w, err)
		return nil, false
	}
	if err := req.Validate(); err != nil {
		logger.WarnContext(ctx, "invalid request",
			"request_id", requestID,
			"error", err,
		)
		WriteError(w, err)
		return nil, false
	}
	return (*T)(req), true
}

// LogFailure logs err at warn when it maps to a client error and at error
// otherwise.
func LogFailure(ctx context.Context, logger *slog.Logger, msg string, err error, attrs ...any) {
	attrs = append(attrs, "error", err)
	if StatusFor(dErrors.CodeOf(err)) >= http.StatusInternalServerError {
		logger.ErrorContext(ctx, msg, attrs...)
		return
	}
	logger.WarnContext(ctx, msg, attrs...)
}
