// Package http exposes the ledger as a JSON API.
//
// This file implements a small builder for JSON responses and the mapping
// from ledger error kinds to HTTP status codes.

package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"ttclub/internal/core"
	"ttclub/internal/log"
)

// ResponseBuilder provides a fluent API for building API responses.
type ResponseBuilder struct {
	statusCode  int
	headers     map[string]string
	contentType string
	body        []byte
	payload     any
}

// NewResponse creates a new response builder with default 200 status.
func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

// JSON sets a value to be encoded as the response body.
func (b *ResponseBuilder) JSON(v any) *ResponseBuilder {
	b.payload = v
	b.body = nil
	return b
}

// Raw sets pre-encoded content, used for cached exports.
func (b *ResponseBuilder) Raw(contentType string, content []byte) *ResponseBuilder {
	b.contentType = contentType
	b.body = content
	b.payload = nil
	return b
}

// Attachment marks the response as a file download.
func (b *ResponseBuilder) Attachment(filename string) *ResponseBuilder {
	return b.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
}

// Write sends the built response to the http.ResponseWriter.
func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	body, contentType := b.body, b.contentType
	if b.payload != nil {
		encoded, err := json.Marshal(b.payload)
		if err != nil {
			http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
			return
		}
		body, contentType = append(encoded, '\n'), "application/json; charset=utf-8"
	}

	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	w.WriteHeader(b.statusCode)
	if len(body) > 0 && b.statusCode != http.StatusNoContent {
		_, _ = w.Write(body)
	}
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// ErrorResponse creates a JSON error response.
func ErrorResponse(statusCode int, kind, message string) *ResponseBuilder {
	return NewResponse().Status(statusCode).JSON(errorBody{Error: message, Kind: kind})
}

func BadRequestError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, "bad_request", message)
}

func NotFoundError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusNotFound, "not_found", message)
}

func ServiceUnavailableError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusServiceUnavailable, "unavailable", message)
}

func TooManyRequestsError() *ResponseBuilder {
	return ErrorResponse(http.StatusTooManyRequests, "rate_limited", "rate limit exceeded, please try again later")
}

// DomainError maps a ledger error to a status by its kind. Unknown errors
// become a 500 whose message does not leak internals.
func DomainError(err error) *ResponseBuilder {
	switch {
	case errors.Is(err, core.ErrNotFound):
		return ErrorResponse(http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, core.ErrDuplicate):
		return ErrorResponse(http.StatusConflict, "duplicate", err.Error())
	case errors.Is(err, core.ErrConflict):
		return ErrorResponse(http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, core.ErrValidation):
		return ErrorResponse(http.StatusUnprocessableEntity, "validation", err.Error())
	case errors.Is(err, core.ErrMalformedImport):
		return ErrorResponse(http.StatusBadRequest, "malformed_import", err.Error())
	case errors.Is(err, errBadRequest):
		return BadRequestError(err.Error())
	default:
		return ErrorResponse(http.StatusInternalServerError, "internal", "internal server error")
	}
}

// writeError logs server-side failures and writes the mapped response.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	resp := DomainError(err)
	if resp.statusCode >= 500 {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			log.FieldError, err.Error(),
			log.FieldPath, r.URL.Path)
	}
	resp.Write(w)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	NewResponse().Status(status).JSON(v).Write(w)
}
