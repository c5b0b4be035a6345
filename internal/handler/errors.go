package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/sourcetrak/internal/apiclient"
	"github.com/iliyamo/sourcetrak/internal/entry"
	"github.com/iliyamo/sourcetrak/internal/record"
	"github.com/iliyamo/sourcetrak/internal/service"
	"github.com/iliyamo/sourcetrak/internal/session"
)

// Error codes returned next to the message so clients can branch without
// parsing text.
const (
	codeValidation   = "validation"
	codeCredentials  = "invalid_credentials"
	codeConflict     = "conflict"
	codeNotFound     = "not_found"
	codeEmptyBatch   = "empty_batch"
	codeUnauthorized = "unauthorized"
	codeUnavailable  = "backend_unavailable"
	codeBackend      = "backend_error"
	codeBusy         = "busy"
	codeSuperseded   = "superseded"
	codeNotEligible  = "not_eligible"
)

// writeError maps err onto a status and a JSON body {"error", "code"}.
// Backend text is passed through when present, otherwise fallback is used.
func writeError(c echo.Context, err error, fallback string) error {
	status, code := classify(err)
	msg := apiclient.Message(err, fallback)
	if code == codeValidation || code == codeEmptyBatch || code == codeBusy || code == codeSuperseded || code == codeNotEligible {
		msg = err.Error()
	}
	if status >= 500 {
		log.Printf("handler: %s %s: %v", c.Request().Method, c.Path(), err)
	}
	return c.JSON(status, echo.Map{"error": msg, "code": code})
}

func classify(err error) (int, string) {
	var fe *entry.FieldError
	switch {
	case errors.As(err, &fe),
		errors.Is(err, entry.ErrBatchRequired),
		errors.Is(err, session.ErrPasswordMismatch),
		errors.Is(err, session.ErrPasswordTooShort),
		errors.Is(err, session.ErrInvalidRole):
		return http.StatusBadRequest, codeValidation
	case errors.Is(err, entry.ErrBusy), errors.Is(err, entry.ErrAlreadyDone):
		return http.StatusConflict, codeBusy
	case errors.Is(err, service.ErrSuperseded):
		return http.StatusConflict, codeSuperseded
	case errors.Is(err, service.ErrNotEligible):
		return http.StatusForbidden, codeNotEligible
	case errors.Is(err, record.ErrEmptyBatch):
		return http.StatusNotFound, codeEmptyBatch
	case errors.Is(err, apiclient.ErrInvalidCredentials):
		return http.StatusUnauthorized, codeCredentials
	case errors.Is(err, apiclient.ErrUnauthorized):
		return http.StatusUnauthorized, codeUnauthorized
	case errors.Is(err, apiclient.ErrConflict):
		return http.StatusConflict, codeConflict
	case errors.Is(err, apiclient.ErrNotFound):
		return http.StatusNotFound, codeNotFound
	case errors.Is(err, apiclient.ErrNetwork):
		return http.StatusServiceUnavailable, codeUnavailable
	}
	return http.StatusBadGateway, codeBackend
}
