package mockserver

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// APIError is the JSON body of every error answer of the mock service.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Details)
	}
	return e.Message
}

func badRequest(details string) *APIError {
	return &APIError{Code: http.StatusBadRequest, Message: statusMessage(http.StatusBadRequest), Details: details}
}

// errorHandler renders echo and handler errors as APIError bodies.
func (s *Server) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var (
		apiErr *APIError
		he     *echo.HTTPError
	)
	switch {
	case errors.As(err, &apiErr):
	case errors.As(err, &he):
		apiErr = &APIError{
			Code:    he.Code,
			Message: statusMessage(he.Code),
			Details: fmt.Sprintf("%v", he.Message),
		}
	default:
		apiErr = &APIError{
			Code:    http.StatusInternalServerError,
			Message: statusMessage(http.StatusInternalServerError),
			Details: err.Error(),
		}
	}

	if err := c.JSON(apiErr.Code, apiErr); err != nil {
		s.logger.Error("failed to write error response", "error", err)
	}
}

func statusMessage(code int) string {
	switch code {
	case http.StatusBadRequest:
		return "Bad request"
	case http.StatusNotFound:
		return "Resource not found"
	case http.StatusMethodNotAllowed:
		return "Method not allowed"
	case http.StatusTooManyRequests:
		return "Too many requests"
	case http.StatusInternalServerError:
		return "Internal server error"
	}
	return http.StatusText(code)
}
