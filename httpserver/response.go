package httpserver

import (
	"net/http"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

// Response is the envelope every endpoint answers with.
//
//	{
//	  "data": {"items": [...]},
//	  "errors": [{"field": "https://ckan2.multimediagdansk.pl", "message": "partial data: ..."}],
//	  "message": "partial data"
//	}
//
// Errors may accompany Data: a degraded mirror read still answers 200 with
// the failures listed.
type Response[T any] struct {
	Data    T       `json:"data,omitempty"`
	Errors  []Error `json:"errors,omitempty"`
	Message string  `json:"message,omitempty"`
}

// Error is one entry of Response.Errors. Field names the source of the
// failure: a request parameter, a dependency or an upstream host.
type Error struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// WriteJSON encodes response before writing any header, so an encoding
// failure still produces a well-formed 500.
func WriteJSON[T any](w http.ResponseWriter, statusCode int, response Response[T]) {
	body, err := json.Marshal(response)
	if err != nil {
		log.Error().
			Err(err).
			Int("status_code", statusCode).
			Msg("failed to encode JSON response")

		statusCode = http.StatusInternalServerError
		body = []byte(`{"errors":[{"field":"server","message":"response encoding failed"}],"message":"internal server error"}`)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, _ = w.Write(append(body, '\n'))
}

// WriteError writes a response with no data.
//
//	httpserver.WriteError(w, http.StatusBadRequest,
//	    "invalid request",
//	    httpserver.Error{Field: "ids", Message: "is required"},
//	)
func WriteError(w http.ResponseWriter, statusCode int, message string, errors ...Error) {
	WriteJSON(w, statusCode, Response[any]{
		Errors:  errors,
		Message: message,
	})
}

// WriteSuccess writes a response with data and no errors.
func WriteSuccess[T any](w http.ResponseWriter, statusCode int, data T, message string) {
	WriteJSON(w, statusCode, Response[T]{
		Data:    data,
		Message: message,
	})
}
