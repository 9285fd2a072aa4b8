// internal/common/utils/response.go
// Standardized API responses

package utils

import (
	"encoding/json"
	"net/http"

	"github.com/sonuprasad23/spark/internal/common/apperr"
)

// Response is the standard API response structure
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorBody  `json:"error,omitempty"`
}

// ErrorBody is the error part of a failed response
type ErrorBody struct {
	Code    apperr.Code `json:"code"`
	Message string      `json:"message"`
}

// RespondWithJSON sends a JSON response with the specified status code and payload
func RespondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"success":false,"error":{"code":"internal","message":"error marshaling JSON"}}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

// RespondWithData sends a success response with data wrapped in the standard format
func RespondWithData(w http.ResponseWriter, code int, data interface{}) {
	RespondWithJSON(w, code, Response{Success: true, Data: data})
}

// RespondWithError maps err to its HTTP status and sends the standard error body
func RespondWithError(w http.ResponseWriter, err error) {
	code := apperr.CodeOf(err)
	RespondWithJSON(w, apperr.HTTPStatus(code), Response{
		Success: false,
		Error:   &ErrorBody{Code: code, Message: apperr.MessageOf(err)},
	})
}

// DecodeJSON decodes the request body into dst and validates it
func DecodeJSON(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperr.InvalidArgument("invalid request body")
	}
	return ValidateStruct(dst)
}
