// Package api hosts the HTTP server, middleware, and handlers. Notable routes:
//   - GET/POST /api/bookmarks and GET/PUT/DELETE /api/bookmarks/{id}.
//   - GET /snapshot/{id} and /favicon/{id} for captured artifacts.
//   - GET /login, POST /auth/login and GET /logout when auth is enabled.
//   - GET /healthz, /readyz and /metrics for operators.
//
// Everything else is served from the static directory.
package api
