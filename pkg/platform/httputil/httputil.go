// Package httputil holds the JSON response and request helpers shared by
// every handler package.
package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	dErrors "presence/pkg/domain-errors"
	"presence/pkg/platform/validation"
)

// Detailer is implemented by errors that carry structured figures worth
// returning to the client (for example a geofence rejection).
type Detailer interface {
	Details() map[string]any
}

type errorResponse struct {
	Error            string         `json:"error"`
	ErrorDescription string         `json:"error_description,omitempty"`
	Details          map[string]any `json:"details,omitempty"`
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps err to a status code and a JSON error body. Internal
// errors never leak their message.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	status := StatusFor(code)

	resp := errorResponse{Error: string(code)}
	if code != dErrors.CodeInternal {
		var de *dErrors.Error
		if errors.As(err, &de) {
			resp.ErrorDescription = de.Message
		}
		var d Detailer
		if errors.As(err, &d) {
			resp.Details = d.Details()
		}
	}
	WriteJSON(w, status, resp)
}

// StatusFor returns the HTTP status for a domain error code.
func StatusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeConflict, dErrors.CodeInvariantViolation:
		return http.StatusConflict
	case dErrors.CodeGeofenceViolation:
		return http.StatusUnprocessableEntity
	case dErrors.CodeValidation, dErrors.CodeBadRequest, dErrors.CodeInvalidInput:
		return http.StatusBadRequest
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden:
		return http.StatusForbidden
	case dErrors.CodeUnavailable:
		return http.StatusServiceUnavailable
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Normalizable is implemented by request bodies that trim or canonicalize
// their fields before validation.
type Normalizable interface {
	Normalize()
}

// Validatable is implemented by request bodies with rules beyond struct tags.
type Validatable interface {
	Validate() error
}

// DecodeAndPrepare decodes a JSON body into T, normalizes it, then runs
// struct-tag validation followed by Validate when T implements it. On failure
// it writes the error response and returns ok=false.
func DecodeAndPrepare[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (*T, bool) {
	var req T
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		logger.WarnContext(ctx, "failed to decode request body",
			"error", err,
			"request_id", requestID,
		)
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid json payload"))
		return nil, false
	}
	if n, ok := any(&req).(Normalizable); ok {
		n.Normalize()
	}
	err := validation.Struct(&req)
	if err == nil {
		if v, ok := any(&req).(Validatable); ok {
			err = v.Validate()
		}
	}
	if err != nil {
		logger.WarnContext(ctx, "invalid request",
			"error", err,
			"request_id", requestID,
		)
		WriteError(w, err)
		return nil, false
	}
	return &req, true
}

// ParseTimeParam parses an optional RFC3339 query value. An empty value
// yields nil.
func ParseTimeParam(v, name string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, name+" must be an RFC3339 timestamp")
	}
	return &t, nil
}
