package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	nativecommon "lendingcore/native/common"
	"lendingcore/native/lending"
)

// ErrorBody is the JSON envelope of every failed request.
type ErrorBody struct {
	Error     string `json:"error"`
	Kind      string `json:"kind"`
	RequestID string `json:"requestId,omitempty"`
}

// statusFor maps engine errors onto HTTP status codes and a stable kind.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, nativecommon.ErrModulePaused):
		return http.StatusServiceUnavailable, "paused"
	case errors.Is(err, lending.ErrReserveNotListed):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, lending.ErrSolvency):
		return http.StatusConflict, "solvency"
	case errors.Is(err, lending.ErrPrecondition):
		return http.StatusUnprocessableEntity, "precondition"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// publicMessage hides infrastructure and invariant details from callers.
func publicMessage(err error, status int) string {
	if status == http.StatusInternalServerError || status == http.StatusGatewayTimeout {
		return http.StatusText(status)
	}
	var engineErr *lending.Error
	if errors.As(err, &engineErr) {
		return engineErr.Reason
	}
	return err.Error()
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Service) writeError(w http.ResponseWriter, r *http.Request, action string, err error) {
	status, kind := statusFor(err)
	if status == http.StatusInternalServerError {
		s.log().Error("lending request failed",
			"action", action,
			"request_id", requestID(r.Context()),
			"error", err)
	}
	writeJSON(w, status, ErrorBody{
		Error:     publicMessage(err, status),
		Kind:      kind,
		RequestID: requestID(r.Context()),
	})
}
