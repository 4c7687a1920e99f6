package http

import (
	"encoding/json"
	"net/http"
)

// ErrorCode is the machine-readable error_code of an error response
type ErrorCode string

const (
	CodeValidation           ErrorCode = "VALIDATION_ERROR"
	CodeNotFound             ErrorCode = "RESOURCE_NOT_FOUND_ERROR"
	CodeInvalidCredentials   ErrorCode = "INVALID_CREDENTIALS_ERROR"
	CodeUnauthorized         ErrorCode = "UNAUTHORIZED_ERROR"
	CodeForbidden            ErrorCode = "FORBIDDEN_ERROR"
	CodeUnknownRoute         ErrorCode = "UNKNOWN_ROUTE_ERROR"
	CodeTooManyRequests      ErrorCode = "TOO_MANY_REQUESTS_ERROR"
	CodeDependency           ErrorCode = "DEPENDENCY_ERROR"
	CodeServer               ErrorCode = "SERVER_ERROR"
	CodeIncorrectOldPassword ErrorCode = "INCORRECT_OLD_PASSWORD_ERROR"
	CodeBadRequest           ErrorCode = "BAD_REQUEST_ERROR"
)

// ErrorResponse represents a standard API error response
type ErrorResponse struct {
	Success      bool                `json:"success"`
	ErrorCode    ErrorCode           `json:"error_code"`
	ErrorMessage string              `json:"error_message"`
	Errors       map[string][]string `json:"errors"`
}

// WriteError writes a JSON error response with the given status code
func WriteError(w http.ResponseWriter, statusCode int, code ErrorCode, message string) {
	WriteErrorWithFields(w, statusCode, code, message, nil)
}

// WriteErrorWithFields writes an error response carrying per-field messages
func WriteErrorWithFields(w http.ResponseWriter, statusCode int, code ErrorCode, message string, fields map[string][]string) {
	if fields == nil {
		fields = map[string][]string{}
	}

	writeJSON(w, statusCode, ErrorResponse{
		Success:      false,
		ErrorCode:    code,
		ErrorMessage: message,
		Errors:       fields,
	})
}

// Common error writers for consistency
func WriteValidationError(w http.ResponseWriter, fields map[string][]string) {
	WriteErrorWithFields(w, http.StatusUnprocessableEntity, CodeValidation, "The given data was invalid.", fields)
}

func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeBadRequest, message)
}

func WriteInvalidCredentials(w http.ResponseWriter) {
	WriteError(w, http.StatusUnauthorized, CodeInvalidCredentials, "Invalid credentials.")
}

func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, CodeUnauthorized, message)
}

func WriteForbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, CodeForbidden, message)
}

func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeNotFound, message)
}

func WriteUnknownRoute(w http.ResponseWriter) {
	WriteError(w, http.StatusNotFound, CodeUnknownRoute, "The requested route does not exist.")
}

func WriteTooManyRequests(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusTooManyRequests, CodeTooManyRequests, message)
}

func WriteDependencyError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusServiceUnavailable, CodeDependency, message)
}

func WriteIncorrectOldPassword(w http.ResponseWriter) {
	WriteErrorWithFields(w, http.StatusUnprocessableEntity, CodeIncorrectOldPassword,
		"The old password is incorrect.",
		map[string][]string{"old_password": {"The old password is incorrect."}})
}

func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeServer, message)
}

func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}
