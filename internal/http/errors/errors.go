// Package errors writes API error responses and logs them with the request
// id so a client-reported failure can be matched to a log line.
package errors

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

type errorBody struct {
	Error string `json:"error"`
}

// JSON writes an error response with the given status and client-safe
// message.
func JSON(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: message})
}

// InternalError logs err and answers with a generic 500 body. The real error
// never reaches the client.
func InternalError(w http.ResponseWriter, r *http.Request, err error, message string) {
	log.Error().
		Err(err).
		Str("request_id", middleware.GetReqID(r.Context())).
		Str("path", r.URL.Path).
		Msg(message)
	JSON(w, http.StatusInternalServerError, "internal server error")
}

// BadRequest logs err at warn level and passes clientMessage through.
func BadRequest(w http.ResponseWriter, r *http.Request, err error, clientMessage string) {
	log.Warn().
		Err(err).
		Str("request_id", middleware.GetReqID(r.Context())).
		Str("path", r.URL.Path).
		Msg("bad request")
	JSON(w, http.StatusBadRequest, clientMessage)
}

// LogError records an error that did not abort the response.
func LogError(r *http.Request, message string, err error) {
	log.Error().
		Err(err).
		Str("request_id", middleware.GetReqID(r.Context())).
		Str("path", r.URL.Path).
		Msg(message)
}
