package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"virtnet/internal/domain"
	"virtnet/internal/netaddr"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// MessageResponse is the body of the mutation endpoints
type MessageResponse struct {
	Message string `json:"message"`
	Result  any    `json:"result,omitempty"`
}

func writeJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("failed to encode JSON", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, msg, details string, statusCode int) {
	writeJSON(w, ErrorResponse{Error: msg, Details: details}, statusCode)
}

// statusFor maps an operation error onto a response status. Caller mistakes
// are 400 even when a source reported them; source failures are 500, or 504
// when the source did not answer in time.
func statusFor(err error) int {
	var verrs validator.ValidationErrors
	switch {
	case errors.Is(err, netaddr.ErrInvalidCIDR),
		errors.Is(err, netaddr.ErrTooManySubnets),
		errors.Is(err, domain.ErrUnknownKind),
		errors.Is(err, domain.ErrNotExpandable),
		errors.Is(err, domain.ErrInvalidSeed),
		errors.As(err, &verrs),
		isBadRequest(err):
		return http.StatusBadRequest
	}
	var ae *domain.AdapterError
	if errors.As(err, &ae) && ae.Timeout() {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// badRequestError marks malformed bodies so they map to 400
type badRequestError struct{ err error }

func (e badRequestError) Error() string { return e.err.Error() }
func (e badRequestError) Unwrap() error { return e.err }

func badRequest(err error) error {
	return badRequestError{err}
}

func isBadRequest(err error) bool {
	var br badRequestError
	return errors.As(err, &br)
}
