package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/middleware"
)

// Options tunes NewRouter.
type Options struct {
	// TrustProxy honours X-Forwarded-For and X-Forwarded-Host.
	TrustProxy bool
	// TracerProvider receives request spans; nil uses the global provider.
	TracerProvider trace.TracerProvider
	// Metrics, when set, is mounted at GET /metrics.
	Metrics http.Handler
	// Logger receives one line per request; nil uses the Engine's logger.
	Logger *slog.Logger
}

type api struct {
	engine *authcore.Engine
	rs     middleware.Responder
}

// NewRouter returns the HTTP surface of e.
func NewRouter(e *authcore.Engine, opts Options) *mux.Router {
	logger := opts.Logger
	if logger == nil {
		logger = e.Logger()
	}
	a := &api{engine: e, rs: middleware.ResponderFor(e)}

	r := mux.NewRouter()
	r.Use(
		middleware.Trace(opts.TracerProvider),
		accessLog(logger),
		middleware.ClientInfo(opts.TrustProxy),
	)
	r.NotFoundHandler = http.HandlerFunc(a.notFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(a.methodNotAllowed)

	r.HandleFunc("/health", a.health).Methods(http.MethodGet)
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics).Methods(http.MethodGet)
	}

	apiRouter := r.PathPrefix("/api").Subrouter()
	apiRouter.Use(middleware.RateLimit(e, authcore.GeneralPolicy, middleware.ByClientIP))

	bearer := middleware.Bearer(e)
	admin := func(h http.HandlerFunc) http.Handler {
		return bearer(middleware.RequireRole(e, authcore.RoleAdmin)(h))
	}
	authLimit := middleware.RateLimit(e, authcore.AuthPolicy, middleware.ByClientIP)

	auth := apiRouter.PathPrefix("/auth").Subrouter()
	auth.Handle("/register", authLimit(http.HandlerFunc(a.register))).Methods(http.MethodPost)
	auth.Handle("/login", authLimit(http.HandlerFunc(a.login))).Methods(http.MethodPost)
	auth.HandleFunc("/refresh", a.refresh).Methods(http.MethodPost)
	auth.Handle("/logout", bearer(http.HandlerFunc(a.logout))).Methods(http.MethodPost)
	auth.Handle("/logout-all", bearer(http.HandlerFunc(a.logoutAll))).Methods(http.MethodPost)
	auth.Handle("/me", bearer(http.HandlerFunc(a.me))).Methods(http.MethodGet)
	auth.Handle("/sessions", bearer(http.HandlerFunc(a.sessions))).Methods(http.MethodGet)
	auth.Handle("/send-verification", bearer(http.HandlerFunc(a.sendVerification))).Methods(http.MethodPost)
	auth.HandleFunc("/verify-email", a.verifyEmail).Methods(http.MethodPost, http.MethodGet)
	auth.HandleFunc("/forgot-password", a.forgotPassword).Methods(http.MethodPost)
	auth.HandleFunc("/reset-password", a.resetPassword).Methods(http.MethodPost)

	keys := apiRouter.PathPrefix("/keys").Subrouter()
	keys.Use(bearer)
	keys.HandleFunc("", a.createKey).Methods(http.MethodPost)
	keys.HandleFunc("", a.listKeys).Methods(http.MethodGet)
	keys.HandleFunc("/stats", a.keyStats).Methods(http.MethodGet)
	keys.HandleFunc("/{id}", a.getKey).Methods(http.MethodGet)
	keys.HandleFunc("/{id}", a.updateKey).Methods(http.MethodPatch)
	keys.HandleFunc("/{id}/revoke", a.revokeKey).Methods(http.MethodPost)
	keys.HandleFunc("/{id}", a.deleteKey).Methods(http.MethodDelete)

	users := apiRouter.PathPrefix("/users").Subrouter()
	targetID := func(r *http.Request) string { return mux.Vars(r)["id"] }
	users.Handle("", admin(a.listUsers)).Methods(http.MethodGet)
	users.Handle("/stats", admin(a.userStats)).Methods(http.MethodGet)
	users.Handle("/{id}", admin(a.getUser)).Methods(http.MethodGet)
	users.Handle("/{id}", admin(a.updateUser)).Methods(http.MethodPut)
	users.Handle("/{id}", admin(a.deleteUser)).Methods(http.MethodDelete)
	users.Handle("/{id}/ban", admin(a.banUser)).Methods(http.MethodPost)
	users.Handle("/{id}/unban", admin(a.unbanUser)).Methods(http.MethodPost)
	users.Handle("/{id}/role", bearer(middleware.RequireRole(e, authcore.RoleAdmin)(
		middleware.ForbidSelf(e, targetID, authcore.ErrSelfRoleChange.Message)(http.HandlerFunc(a.changeRole)),
	))).Methods(http.MethodPatch)

	activities := apiRouter.PathPrefix("/activities").Subrouter()
	activities.Handle("/me", bearer(http.HandlerFunc(a.myActivities))).Methods(http.MethodGet)
	activities.Handle("/stats", admin(a.activityStats)).Methods(http.MethodGet)
	activities.Handle("/cleanup", admin(a.cleanupActivities)).Methods(http.MethodDelete)
	activities.Handle("", admin(a.listActivities)).Methods(http.MethodGet)

	demo := apiRouter.PathPrefix("/demo").Subrouter()
	demo.Handle("/api-key-only", middleware.APIKey(e, "")(http.HandlerFunc(a.demoKeyOnly))).Methods(http.MethodGet)
	demo.Handle("/read-only", middleware.APIKey(e, authcore.PermissionRead)(http.HandlerFunc(a.demoRead))).Methods(http.MethodGet)
	demo.Handle("/write-required", middleware.APIKey(e, authcore.PermissionWrite)(http.HandlerFunc(a.demoWrite))).Methods(http.MethodPost)
	demo.Handle("/flexible", middleware.Flexible(e, "")(http.HandlerFunc(a.demoFlexible))).Methods(http.MethodGet)
	demo.Handle("/verified-only", bearer(middleware.RequireVerified(e)(http.HandlerFunc(a.demoVerified)))).Methods(http.MethodGet)

	return r
}

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func (a *api) ok(w http.ResponseWriter, status int, message string, data any) {
	a.rs.JSON(w, status, envelope{Success: true, Message: message, Data: data})
}

func (a *api) health(w http.ResponseWriter, r *http.Request) {
	if err := a.engine.Ping(r.Context()); err != nil {
		a.rs.Error(w, r, err)
		return
	}
	a.ok(w, http.StatusOK, "Server is running", map[string]string{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *api) notFound(w http.ResponseWriter, r *http.Request) {
	a.rs.Error(w, r, &authcore.AuthError{Kind: authcore.KindNotFound, Message: "Not Found - " + r.URL.RequestURI()})
}

func (a *api) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	a.rs.JSON(w, http.StatusMethodNotAllowed, map[string]any{
		"success": false,
		"error":   "Method " + r.Method + " not allowed on " + r.URL.Path,
	})
}

// accessLog writes one structured line per request.
func accessLog(logger *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration", time.Since(start),
			)
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status  int
	written bool
}

func (s *statusWriter) WriteHeader(code int) {
	if !s.written {
		s.status = code
		s.written = true
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusWriter) Write(b []byte) (int, error) {
	s.written = true
	return s.ResponseWriter.Write(b)
}
