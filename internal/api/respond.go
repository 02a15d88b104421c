package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"studiobook/internal/booking"
	"studiobook/internal/clock"
	"studiobook/internal/manager"
	"studiobook/internal/settings"

	"github.com/go-playground/validator/v10"
)

// apiError is the error envelope returned to clients.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Details any    `json:"details,omitempty"`
}

func (e *apiError) Error() string { return e.Message }

var (
	errInternal     = &apiError{Code: "internal", Message: "internal server error", Status: http.StatusInternalServerError}
	errUnauthorized = &apiError{Code: "unauthorized", Message: "missing or invalid admin key", Status: http.StatusUnauthorized}
	errRateLimited  = &apiError{Code: "rate_limited", Message: "too many requests", Status: http.StatusTooManyRequests}
	errUnavailable  = &apiError{Code: "availability_error", Message: "unable to compute availability", Status: http.StatusUnprocessableEntity}
)

func badRequest(format string, args ...any) *apiError {
	return &apiError{Code: "bad_request", Message: fmt.Sprintf(format, args...), Status: http.StatusBadRequest}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, e *apiError) {
	writeJSON(w, e.Status, e)
}

func (s *Server) readJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest("invalid JSON body: %v", err)
	}
	return nil
}

// decode reads a JSON body and validates it.
func (s *Server) decode(r *http.Request, v any) error {
	if err := s.readJSON(r, v); err != nil {
		return err
	}
	if err := s.validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			details := make([]booking.ValidationError, 0, len(verrs))
			for _, fe := range verrs {
				details = append(details, booking.ValidationError{
					Field:   fe.Field(),
					Message: fmt.Sprintf("failed %s validation", fe.Tag()),
				})
			}
			return &apiError{Code: "validation_failed", Message: "request validation failed", Status: http.StatusBadRequest, Details: details}
		}
		return badRequest("%v", err)
	}
	return nil
}

// respondErr maps service errors onto the error envelope.
func (s *Server) respondErr(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, s.toAPIError(r, err))
}

func (s *Server) toAPIError(r *http.Request, err error) *apiError {
	var (
		apiErr *apiError
		verrs  booking.ValidationErrors
	)
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.As(err, &verrs):
		return &apiError{Code: "validation_failed", Message: "request validation failed", Status: http.StatusBadRequest, Details: verrs}
	case errors.Is(err, settings.ErrInvalid):
		return &apiError{Code: "invalid_settings", Message: err.Error(), Status: http.StatusBadRequest}
	case errors.Is(err, booking.ErrNotFound), errors.Is(err, manager.ErrNotFound):
		return &apiError{Code: "not_found", Message: err.Error(), Status: http.StatusNotFound}
	case errors.Is(err, booking.ErrInvalidStep), errors.Is(err, booking.ErrIncomplete):
		return &apiError{Code: "invalid_step", Message: err.Error(), Status: http.StatusConflict}
	case errors.Is(err, booking.ErrUnavailable):
		return &apiError{Code: "slot_unavailable", Message: err.Error(), Status: http.StatusConflict}
	case errors.Is(err, manager.ErrAlreadyDecided):
		return &apiError{Code: "already_decided", Message: err.Error(), Status: http.StatusConflict}
	case errors.Is(err, manager.ErrNoteRequired):
		return &apiError{Code: "note_required", Message: err.Error(), Status: http.StatusBadRequest}
	case errors.Is(err, clock.ErrMalformedTime):
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("Malformed slot configuration")
		return errUnavailable
	}

	s.logger.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("Request failed")
	return errInternal
}
