package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	json "github.com/goccy/go-json"
	"github.com/helixml/cinerag/application/service"
	"github.com/helixml/cinerag/domain/catalog"
	"github.com/helixml/cinerag/domain/profile"
	"github.com/helixml/cinerag/domain/search"
	"github.com/helixml/cinerag/internal/database"
)

// Sentinel errors for errors.Is matching.
var (
	ErrAuthentication = errors.New("authentication failed")
	ErrServer         = errors.New("server error")
)

// APIError is an error with an explicit HTTP status.
type APIError struct {
	code    int
	message string
	cause   error
}

// NewAPIError creates a new APIError.
func NewAPIError(code int, message string, cause error) *APIError {
	return &APIError{code: code, message: message, cause: cause}
}

// Code returns the HTTP status code.
func (e *APIError) Code() int { return e.code }

// Message returns the client-facing message.
func (e *APIError) Message() string { return e.message }

func (e *APIError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("api error %d: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("api error %d: %s", e.code, e.message)
}

// Unwrap returns the underlying cause.
func (e *APIError) Unwrap() error { return e.cause }

// BadRequest creates a 400 APIError.
func BadRequest(message string, cause error) *APIError {
	return NewAPIError(http.StatusBadRequest, message, cause)
}

// AuthenticationError indicates a missing or invalid API key.
type AuthenticationError struct {
	reason string
}

// NewAuthenticationError creates a new AuthenticationError.
func NewAuthenticationError(reason string) *AuthenticationError {
	return &AuthenticationError{reason: reason}
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrAuthentication.Error(), e.reason)
}

// Is matches ErrAuthentication.
func (e *AuthenticationError) Is(target error) bool { return target == ErrAuthentication }

// ServerError is a 5xx failure reported to the client.
type ServerError struct {
	status  int
	message string
}

// NewServerError creates a new ServerError.
func NewServerError(status int, message string) *ServerError {
	return &ServerError{status: status, message: message}
}

// StatusCode returns the HTTP status code.
func (e *ServerError) StatusCode() int { return e.status }

// Message returns the client-facing message.
func (e *ServerError) Message() string { return e.message }

func (e *ServerError) Error() string {
	return fmt.Sprintf("%s %d: %s", ErrServer.Error(), e.status, e.message)
}

// Is matches ErrServer.
func (e *ServerError) Is(target error) bool { return target == ErrServer }

// JSONAPIError represents a JSON:API error object.
type JSONAPIError struct {
	Status string `json:"status"`
	Title  string `json:"title"`
	Detail string `json:"detail,omitempty"`
	ID     string `json:"id,omitempty"`
}

// JSONAPIErrorResponse represents a JSON:API error response wrapper.
type JSONAPIErrorResponse struct {
	Errors []JSONAPIError `json:"errors"`
}

// StatusFor maps an error to its HTTP status and title.
func StatusFor(err error) (int, string) {
	var (
		apiErr    *APIError
		serverErr *ServerError
	)

	switch {
	case errors.As(err, &apiErr):
		return apiErr.Code(), "API Error"
	case errors.As(err, &serverErr):
		return serverErr.StatusCode(), "Server Error"
	case errors.Is(err, ErrAuthentication):
		return http.StatusUnauthorized, "Authentication Failed"
	case errors.Is(err, catalog.ErrNotFound), errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound, "Not Found"
	case errors.Is(err, search.ErrEmptyInput),
		errors.Is(err, profile.ErrInvalidRating),
		errors.Is(err, service.ErrUnknownMood):
		return http.StatusBadRequest, "Validation Error"
	case errors.Is(err, search.ErrNoEmbeddingData):
		return http.StatusUnprocessableEntity, "No Embedding Data"
	case errors.Is(err, search.ErrUpstreamUnavailable), errors.Is(err, service.ErrClientClosed):
		return http.StatusServiceUnavailable, "Service Unavailable"
	}
	return http.StatusInternalServerError, "Internal Server Error"
}

// WriteError writes a JSON:API formatted error response.
func WriteError(w http.ResponseWriter, r *http.Request, err error, logger *slog.Logger) {
	status, title := StatusFor(err)

	detail := err.Error()
	var (
		apiErr    *APIError
		serverErr *ServerError
	)
	switch {
	case errors.As(err, &apiErr):
		detail = apiErr.Message()
	case errors.As(err, &serverErr):
		detail = serverErr.Message()
	case status == http.StatusInternalServerError:
		detail = http.StatusText(status)
	}

	correlationID := GetCorrelationID(r.Context())

	if logger != nil {
		level := slog.LevelWarn
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		logger.Log(r.Context(), level, "request error",
			"correlation_id", correlationID,
			"status", status,
			"error", err.Error(),
			"path", r.URL.Path,
		)
	}

	resp := JSONAPIErrorResponse{
		Errors: []JSONAPIError{
			{
				Status: http.StatusText(status),
				Title:  title,
				Detail: detail,
				ID:     correlationID,
			},
		},
	}

	w.Header().Set("Content-Type", "application/vnd.api+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// WriteJSON writes a JSON response.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
