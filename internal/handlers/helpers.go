package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wkeng/jiradash/internal/models"
)

// RequireMethod validates that the HTTP request uses the specified method.
// Returns true if the method matches, false otherwise (and writes error response).
func RequireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

// WriteJSON writes a JSON response with the specified status code and data.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a standard success JSON response.
func WriteSuccess(w http.ResponseWriter, message string) error {
	return WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": message,
	})
}

// WriteError writes a standard error JSON response.
func WriteError(w http.ResponseWriter, statusCode int, message string) error {
	return WriteJSON(w, statusCode, map[string]string{
		"status": "error",
		"error":  message,
	})
}

// WriteQueryError maps a query-layer error to the right status code.
func WriteQueryError(w http.ResponseWriter, err error) error {
	return WriteError(w, statusForError(err), userMessage(err))
}

// statusForError maps the error taxonomy to HTTP status codes.
func statusForError(err error) int {
	switch {
	case models.IsAuthError(err):
		return http.StatusUnauthorized
	case models.IsConfigurationError(err):
		return http.StatusServiceUnavailable
	default:
		var connErr *models.ConnectionError
		if errors.As(err, &connErr) {
			return http.StatusBadGateway
		}
		return http.StatusInternalServerError
	}
}

// userMessage renders an error for display. Typed errors carry messages
// written for users; anything else gets a generic line so internals do not
// leak into pages.
func userMessage(err error) string {
	var (
		configErr   *models.ConfigurationError
		authErr     *models.AuthenticationError
		connErr     *models.ConnectionError
		stateErr    *models.StateMismatchError
		exchangeErr *models.TokenExchangeError
		instanceErr *models.UnauthorizedInstanceError
		qErr        *models.QueryError
	)
	switch {
	case errors.As(err, &configErr):
		return configErr.Error()
	case errors.As(err, &stateErr):
		return "Sign-in could not be verified. Please try logging in again."
	case errors.As(err, &exchangeErr):
		return "Sign-in failed while confirming your identity. Please try again."
	case errors.As(err, &instanceErr):
		return instanceErr.Error()
	case errors.As(err, &authErr):
		return "Jira rejected the configured credentials."
	case errors.As(err, &connErr):
		return "Could not reach Jira. Check the connection and try again."
	case errors.As(err, &qErr):
		return "Failed to load " + qErr.Operation + " data."
	default:
		return "Something went wrong. Please try again."
	}
}
