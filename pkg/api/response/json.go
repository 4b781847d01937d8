// Package response provides HTTP response utilities.
package response

import (
	"encoding/json"
	"net/http"
)

// JSON writes data as a JSON body with statusCode. The body is encoded
// before any header is sent, so an unencodable value becomes a clean 500.
func JSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if data == nil {
		w.WriteHeader(statusCode)
		return
	}

	body, err := json.Marshal(data)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"code":"` + ErrCodeInternalServer + `","message":"failed to encode response"}}` + "\n"))
		return
	}
	w.WriteHeader(statusCode)
	_, _ = w.Write(append(body, '\n'))
}

// Error writes an error response with the given status code and error details.
func Error(w http.ResponseWriter, statusCode int, code, message string, requestID string) {
	errResp := ErrorResponse{
		Error: ErrorDetail{
			Code:      code,
			Message:   message,
			RequestID: requestID,
		},
	}
	JSON(w, statusCode, errResp)
}

// ValidationError writes a 400 listing the offending fields.
func ValidationError(w http.ResponseWriter, fields map[string]string, requestID string) {
	details := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		details[k] = v
	}
	ErrorWithDetails(w, http.StatusBadRequest, ErrCodeValidationFailed, "request validation failed", details, requestID)
}

// ErrorWithDetails writes an error response with additional details.
func ErrorWithDetails(w http.ResponseWriter, statusCode int, code, message string, details map[string]interface{}, requestID string) {
	errResp := ErrorResponse{
		Error: ErrorDetail{
			Code:      code,
			Message:   message,
			Details:   details,
			RequestID: requestID,
		},
	}
	JSON(w, statusCode, errResp)
}
