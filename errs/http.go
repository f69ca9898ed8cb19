package errs

import (
	"net/http"

	"github.com/goccy/go-json"

	"sociapi/logging"
)

var codes = map[string]int{
	EINVALID:      http.StatusBadRequest,
	ENOTFOUND:     http.StatusNotFound,
	EFORBIDDEN:    http.StatusForbidden,
	EUNAUTHORIZED: http.StatusUnauthorized,
	ECONFLICT:     http.StatusConflict,
	ESTATE:        http.StatusConflict,
	ESELF:         http.StatusBadRequest,
	EPARENT:       http.StatusBadRequest,
	EINTERNAL:     http.StatusInternalServerError,
}

// StatusCode returns the http status matching the code of err.
func StatusCode(err error) int {
	if status, ok := codes[ErrorCode(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// ReturnError writes err to the client as {"error": message} with the
// status matching its code. Internal errors are logged and hidden.
func ReturnError(w http.ResponseWriter, r *http.Request, err error) {
	code := ErrorCode(err)
	if code == EINTERNAL {
		LogError(r, err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(StatusCode(err))
	_ = json.NewEncoder(w).Encode(&ErrorResponse{Error: ErrorMessage(err)})
}

// ErrorResponse is the json body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// LogError logs err together with the request it occurred in.
func LogError(r *http.Request, err error) {
	logging.Ctx(r.Context()).Error().
		Err(err).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Msg("request failed")
}
