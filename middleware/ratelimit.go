package middleware

import (
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/internal"
)

// KeyFunc picks the subject a request is counted against. An empty result
// skips rate limiting for the request.
type KeyFunc func(*http.Request) string

// ByClientIP counts requests per caller IP, preferring the address set by
// ClientInfo.
func ByClientIP(r *http.Request) string {
	if ip := authcore.ClientIPFromContext(r.Context()); ip != "" {
		return "ip:" + ip
	}
	return "ip:" + remoteIP(r)
}

// ByAPIKeyOrIP counts requests per API key when one is present and per
// caller IP otherwise. Raw keys are digested before use.
func ByAPIKeyOrIP(r *http.Request) string {
	if info := authcore.APIKeyInfoFromContext(r.Context()); info != nil {
		return "key:" + info.ID
	}
	if key := strings.TrimSpace(r.Header.Get(APIKeyHeader)); key != "" {
		return "key:" + internal.Digest(key)
	}
	return ByClientIP(r)
}

// RateLimit applies policy to every request, keyed by key (ByClientIP when
// nil). For authcore.AuthPolicy every request is counted before the handler
// runs and refunded when the response succeeds (status < 400), so only
// failed attempts keep their count.
func RateLimit(e *authcore.Engine, policy authcore.RateLimitPolicy, key KeyFunc) func(http.Handler) http.Handler {
	rs := ResponderFor(e)
	if key == nil {
		key = ByClientIP
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject := key(r)
			if subject == "" {
				next.ServeHTTP(w, r)
				return
			}

			status, err := e.CheckRateLimit(r.Context(), policy, subject)
			setRateHeaders(w, status)
			if err != nil {
				rs.Error(w, r, err)
				return
			}
			if policy != authcore.AuthPolicy {
				next.ServeHTTP(w, r)
				return
			}

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			if rec.status < http.StatusBadRequest {
				e.RefundRateLimit(r.Context(), policy, subject)
			}
		})
	}
}

func setRateHeaders(w http.ResponseWriter, s authcore.RateLimitStatus) {
	if s.Limit <= 0 {
		return
	}
	h := w.Header()
	h.Set("RateLimit-Limit", strconv.Itoa(s.Limit))
	h.Set("RateLimit-Remaining", strconv.Itoa(s.Remaining))
	if s.ResetIn > 0 {
		h.Set("RateLimit-Reset", strconv.Itoa(int(math.Ceil(s.ResetIn.Seconds()))))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (s *statusRecorder) WriteHeader(code int) {
	if !s.wroteHeader {
		s.status = code
		s.wroteHeader = true
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	s.wroteHeader = true
	return s.ResponseWriter.Write(b)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}
