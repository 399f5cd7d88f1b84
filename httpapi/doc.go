// Package httpapi serves authcore.Engine over JSON/HTTP with gorilla/mux.
//
// Routes (all under /api):
//
//	POST   /auth/register, /auth/login, /auth/refresh
//	POST   /auth/logout, /auth/logout-all           Bearer
//	GET    /auth/me, /auth/sessions                 Bearer
//	POST   /auth/send-verification                  Bearer
//	POST   /auth/verify-email, /auth/forgot-password, /auth/reset-password
//	*      /keys...                                 Bearer
//	*      /users...                                Bearer + admin
//	GET    /activities/me                           Bearer
//	*      /activities...                           Bearer + admin
//	*      /demo...                                 API key or Bearer
//
// Successful responses are {"success":true,"message":...,"data":...};
// failures are written by middleware.Responder.
package httpapi
