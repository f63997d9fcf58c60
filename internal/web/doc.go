// Package web holds the browser-facing plumbing shared by HTTP handlers:
// scs-backed browser sessions that pin each browser to an application
// client id, CSRF protection and security headers.
//
// The browser session carries nothing but the client id. Sign-in state
// belongs to the identity backend, keyed by that id, so clearing cookies
// simply starts a fresh signed-out client.
//
// Middleware order on the router:
//
//	router.Use(web.SecurityHeadersMiddleware())
//	router.Use(web.CSRFMiddleware(secret, secure)) // optional
//	router.Use(sessions.SessionLoadSave())
//
// CSRF must run first. It replaces the request, which would drop a session
// context loaded before it.
package web
