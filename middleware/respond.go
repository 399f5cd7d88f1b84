package middleware

import (
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/MrEthical07/authcore"
)

type errorBody struct {
	Success bool              `json:"success"`
	Error   string            `json:"error"`
	Errors  map[string]string `json:"errors,omitempty"`
	Details string            `json:"details,omitempty"`
}

// Responder writes JSON responses. Development adds the underlying cause of
// an error to the body as "details".
type Responder struct {
	Logger      *slog.Logger
	Development bool
}

// ResponderFor returns the Responder matching e's logger and mode.
func ResponderFor(e *authcore.Engine) Responder {
	return Responder{Logger: e.Logger(), Development: e.DevelopmentMode()}
}

// JSON writes v with status.
func (rs Responder) JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil && rs.Logger != nil {
		rs.Logger.Warn("middleware: encode response", "error", err)
	}
}

// Error writes err as an error body. Errors that are not *authcore.AuthError
// are reported as 500 "Internal Server Error"; server-side failures are logged.
func (rs Responder) Error(w http.ResponseWriter, r *http.Request, err error) {
	ae, ok := authcore.AsAuthError(err)
	if !ok {
		ae = &authcore.AuthError{Kind: authcore.KindInternal, Message: authcore.ErrInternal.Message, Err: err}
	}
	status := ae.StatusCode()

	if status >= http.StatusInternalServerError && rs.Logger != nil {
		rs.Logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"error", err,
		)
	}
	if ae.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(ae.RetryAfter.Seconds()))))
	}

	body := errorBody{Error: ae.Message, Errors: ae.Fields}
	if rs.Development && ae.Err != nil {
		body.Details = ae.Err.Error()
	}
	rs.JSON(w, status, body)
}
